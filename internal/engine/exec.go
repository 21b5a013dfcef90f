package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
	"github.com/google/uuid"
)

// Executor translates accepted decisions into position opens and closes
// against the store, applying sizing, leverage and slippage rules.
// Invariant-violating requests (eliminated account, already positioned,
// balance under the margin floor) are silent no-ops: they are expected
// races between scheduler readiness and oracle latency.
type Executor struct {
	params Params
}

// NewExecutor creates a trade execution adapter.
func NewExecutor(params Params) *Executor {
	return &Executor{params: params}
}

// OpenPosition opens a position for the account per the decision,
// debiting the margin from its balance immediately. Returns the new
// position, or ok=false when the request is rejected.
func (ex *Executor) OpenPosition(s *State, accountID string, d domain.Decision, tick domain.Tick) (*domain.Position, bool) {
	acct := s.Account(accountID)
	if acct == nil || acct.Status != domain.AccountActive {
		return nil, false
	}
	if s.OpenPosition(accountID) != nil {
		return nil, false
	}
	if acct.Balance < ex.params.MinMargin {
		return nil, false
	}

	risk := clamp(d.RiskFraction, ex.params.RiskMin, ex.params.RiskMax)
	margin := acct.Balance * risk
	leverage := clamp(d.Leverage, 1, ex.params.MaxLeverage)
	if d.Leverage <= 0 {
		leverage = ex.params.DefaultLeverage
	}

	side := d.EntrySide()
	fill := ex.fillPrice(tick.Price, side)

	pos := &domain.Position{
		ID:         uuid.New().String(),
		AgentID:    accountID,
		Symbol:     ex.params.Symbol,
		Side:       side,
		EntryPrice: fill,
		Size:       margin * leverage,
		Leverage:   leverage,
		StopLoss:   ex.sanitizeStop(side, fill, d.StopLoss),
		TakeProfit: ex.sanitizeTarget(side, fill, d.TakeProfit),
		OpenedAt:   tick.Timestamp,
		Status:     domain.PositionOpen,
	}

	acct.Balance -= margin
	s.Positions = append(s.Positions, pos)
	return pos, true
}

// ClosePosition flips the account's open position to CLOSED with the
// given reason. PnL realization happens on the next account-ledger
// pass, consistent with automatic exits. Returns the position, or
// ok=false when the account has nothing open.
func (ex *Executor) ClosePosition(s *State, accountID string, reason domain.CloseReason, tick domain.Tick) (*domain.Position, bool) {
	pos := s.OpenPosition(accountID)
	if pos == nil {
		return nil, false
	}
	pos.PnL, pos.PnLPercent = markToMarket(pos, tick.Price)
	pos.Status = domain.PositionClosed
	pos.Reason = reason
	pos.ClosedAt = tick.Timestamp
	return pos, true
}

// fillPrice applies the fixed slippage offset in the direction
// unfavorable to the trader: buys fill above mid, sells below.
func (ex *Executor) fillPrice(mid float64, side domain.Side) float64 {
	if side == domain.SideLong {
		return mid * (1 + ex.params.Slippage)
	}
	return mid * (1 - ex.params.Slippage)
}

// sanitizeStop replaces a missing or wrong-side stop with the default
// percentage of the fill price.
func (ex *Executor) sanitizeStop(side domain.Side, fill, stop float64) float64 {
	if side == domain.SideLong {
		if stop <= 0 || stop >= fill {
			return fill * (1 - ex.params.DefaultStopPct)
		}
		return stop
	}
	if stop <= 0 || stop <= fill {
		return fill * (1 + ex.params.DefaultStopPct)
	}
	return stop
}

// sanitizeTarget replaces a missing or wrong-side target with the
// default percentage of the fill price.
func (ex *Executor) sanitizeTarget(side domain.Side, fill, target float64) float64 {
	if side == domain.SideLong {
		if target <= 0 || target <= fill {
			return fill * (1 + ex.params.DefaultTargetPct)
		}
		return target
	}
	if target <= 0 || target >= fill {
		return fill * (1 - ex.params.DefaultTargetPct)
	}
	return target
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
