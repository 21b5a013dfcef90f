package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// AccountLedger reconciles account balances and equity against position
// closes and detects bankruptcy.
type AccountLedger struct {
	params Params
}

// NewAccountLedger creates an account ledger with the given params.
func NewAccountLedger(params Params) *AccountLedger {
	return &AccountLedger{params: params}
}

// Settle realizes just-closed positions into balances and win/loss
// history, recomputes every account's equity from its open positions,
// and wipes accounts whose equity fell to the elimination floor.
// The floor check runs strictly after realization, so a trade that
// bankrupts an account is still recorded with its true PnL first.
// Returns the ids of accounts eliminated in this pass.
func (al *AccountLedger) Settle(s *State, justClosed []*domain.Position) (eliminated []string) {
	byAgent := make(map[string][]*domain.Position, len(justClosed))
	for _, pos := range justClosed {
		byAgent[pos.AgentID] = append(byAgent[pos.AgentID], pos)
	}

	for _, acct := range s.Accounts {
		for _, pos := range byAgent[acct.ID] {
			// Realized PnL plus the committed collateral back.
			acct.Balance += pos.PnL + pos.Margin()
			if pos.PnL > 0 {
				acct.RecordOutcome(domain.OutcomeWin)
			} else {
				acct.RecordOutcome(domain.OutcomeLoss)
			}
		}

		acct.Equity = al.equity(s, acct)

		if acct.Status != domain.AccountEliminated && acct.Equity <= al.params.EliminationFloor {
			acct.Balance = 0
			acct.Equity = 0
			acct.Status = domain.AccountEliminated
			eliminated = append(eliminated, acct.ID)
		}
	}
	return eliminated
}

// equity is balance plus locked margin plus unrealized PnL of the
// account's open positions.
func (al *AccountLedger) equity(s *State, acct *domain.Account) float64 {
	eq := acct.Balance
	for _, pos := range s.Positions {
		if pos.AgentID != acct.ID || !pos.IsOpen() {
			continue
		}
		eq += pos.Margin() + pos.PnL
	}
	return eq
}

// Refinance resets an ELIMINATED account to the restart value and
// reactivates it. This is the only way out of ELIMINATED. Returns
// false for unknown accounts.
func (al *AccountLedger) Refinance(s *State, accountID string) bool {
	acct := s.Account(accountID)
	if acct == nil {
		return false
	}
	acct.Balance = al.params.RestartBalance
	acct.Equity = al.params.RestartBalance
	acct.Status = domain.AccountActive
	acct.Countdown = acct.DecisionInterval
	return true
}
