package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// Scheduler gates when each agent may request a new decision: a
// per-account second countdown plus an in-flight latch that bounds
// request concurrency to one per account. Latches are process-local
// and never persisted; after a restart nothing can be outstanding.
type Scheduler struct {
	inflight map[string]bool
}

// NewScheduler creates a scheduler with no requests outstanding.
func NewScheduler() *Scheduler {
	return &Scheduler{inflight: make(map[string]bool)}
}

// TickCountdowns decrements every non-eliminated account's countdown by
// one second, flooring at zero. Callers only invoke this while the
// phase permits trading.
func (sc *Scheduler) TickCountdowns(s *State) {
	for _, acct := range s.Accounts {
		if acct.Status == domain.AccountEliminated {
			continue
		}
		if acct.Countdown > 0 {
			acct.Countdown--
		}
	}
}

// Ready returns the accounts whose countdown elapsed and that have no
// request outstanding.
func (sc *Scheduler) Ready(s *State) []*domain.Account {
	var ready []*domain.Account
	for _, acct := range s.Accounts {
		if acct.Status != domain.AccountActive {
			continue
		}
		if acct.Countdown > 0 || sc.inflight[acct.ID] {
			continue
		}
		ready = append(ready, acct)
	}
	return ready
}

// MarkInFlight latches the account and resets its countdown to the
// configured interval. The reset happens at request-issue time so the
// cadence is independent of oracle latency.
func (sc *Scheduler) MarkInFlight(acct *domain.Account) {
	sc.inflight[acct.ID] = true
	acct.Countdown = acct.DecisionInterval
}

// Clear releases the latch after a response or failure. Always called,
// so a broken oracle can only delay an agent, never stall it forever.
func (sc *Scheduler) Clear(accountID string) {
	delete(sc.inflight, accountID)
}

// InFlight reports whether a request is outstanding for the account.
func (sc *Scheduler) InFlight(accountID string) bool {
	return sc.inflight[accountID]
}
