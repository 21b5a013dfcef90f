package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// Ledger marks open positions to market and detects exits. It never
// touches accounts; settlement bookkeeping is the AccountLedger's job.
type Ledger struct {
	params Params
}

// NewLedger creates a position ledger with the given params.
func NewLedger(params Params) *Ledger {
	return &Ledger{params: params}
}

// Settle recomputes PnL for every OPEN position against the tick and
// closes those that hit an exit. Exit priority within one tick:
// holding timeout, then stop, then target. Closed positions are
// returned in justClosed and never mutated again.
func (l *Ledger) Settle(s *State, tick domain.Tick) (justClosed []*domain.Position) {
	for _, pos := range s.Positions {
		if !pos.IsOpen() {
			continue
		}

		pos.PnL, pos.PnLPercent = markToMarket(pos, tick.Price)

		if reason, hit := l.exitReason(pos, tick); hit {
			pos.Status = domain.PositionClosed
			pos.Reason = reason
			pos.ClosedAt = tick.Timestamp
			justClosed = append(justClosed, pos)
			continue
		}

		if l.params.Trailing.Enabled {
			l.updateTrailing(pos, tick.Price)
		}
	}
	return justClosed
}

// markToMarket returns absolute PnL and PnL as percent of margin.
func markToMarket(pos *domain.Position, price float64) (pnl, pnlPercent float64) {
	diff := price - pos.EntryPrice
	if pos.Side == domain.SideShort {
		diff = pos.EntryPrice - price
	}
	pnl = diff * (pos.Size / pos.EntryPrice)
	pnlPercent = pnl / pos.Margin() * 100
	return pnl, pnlPercent
}

// exitReason checks the exit conditions in fixed priority order.
func (l *Ledger) exitReason(pos *domain.Position, tick domain.Tick) (domain.CloseReason, bool) {
	if tick.Timestamp.Sub(pos.OpenedAt) > l.params.MaxHolding {
		return domain.CloseTimeout, true
	}
	if stopHit(pos, tick.Price) {
		return domain.CloseStop, true
	}
	if targetHit(pos, tick.Price) {
		return domain.CloseTarget, true
	}
	return "", false
}

func stopHit(pos *domain.Position, price float64) bool {
	if pos.StopLoss <= 0 {
		return false
	}
	if pos.Side == domain.SideLong {
		return price <= pos.StopLoss
	}
	return price >= pos.StopLoss
}

func targetHit(pos *domain.Position, price float64) bool {
	if pos.TakeProfit <= 0 {
		return false
	}
	if pos.Side == domain.SideLong {
		return price >= pos.TakeProfit
	}
	return price <= pos.TakeProfit
}

// updateTrailing arms the trailing stop once unrealized pnl crosses the
// activation threshold and thereafter ratchets the stop toward price.
// The stop only ever tightens.
func (l *Ledger) updateTrailing(pos *domain.Position, price float64) {
	t := l.params.Trailing

	if !pos.Trailing {
		if pos.PnLPercent >= t.Activate {
			pos.Trailing = true
			// Lock a minimal gain at activation.
			tighten(pos, lockInStop(pos, t.LockIn))
		}
		return
	}

	if pos.Side == domain.SideLong {
		tighten(pos, price*(1-t.Offset))
	} else {
		tighten(pos, price*(1+t.Offset))
	}
}

// lockInStop is the stop level that secures a small gain over entry.
func lockInStop(pos *domain.Position, lockIn float64) float64 {
	if pos.Side == domain.SideLong {
		return pos.EntryPrice * (1 + lockIn)
	}
	return pos.EntryPrice * (1 - lockIn)
}

// tighten moves the stop to candidate only if that is stricter for the
// position's side.
func tighten(pos *domain.Position, candidate float64) {
	if pos.Side == domain.SideLong {
		if candidate > pos.StopLoss {
			pos.StopLoss = candidate
		}
		return
	}
	if pos.StopLoss <= 0 || candidate < pos.StopLoss {
		pos.StopLoss = candidate
	}
}
