package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// State is the single store of tick-scoped mutable state. It is owned
// by the engine's run goroutine; components receive it by reference and
// never keep private copies.
type State struct {
	Accounts  []*domain.Account
	Positions []*domain.Position
	Phase     domain.PhaseState
	Session   int // whole-session seconds remaining
	Events    []domain.Event
	Prices    []float64
	LastTick  *domain.Tick
}

// Account returns the account with the given id, or nil.
func (s *State) Account(id string) *domain.Account {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// OpenPosition returns the agent's OPEN position, or nil if flat.
// At most one exists per agent.
func (s *State) OpenPosition(agentID string) *domain.Position {
	for _, p := range s.Positions {
		if p.AgentID == agentID && p.IsOpen() {
			return p
		}
	}
	return nil
}

// OpenPositions returns all OPEN positions.
func (s *State) OpenPositions() []*domain.Position {
	var open []*domain.Position
	for _, p := range s.Positions {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open
}

// appendPrice records a price in the bounded history.
func (s *State) appendPrice(price float64, bound int) {
	s.Prices = append(s.Prices, price)
	if len(s.Prices) > bound {
		s.Prices = s.Prices[len(s.Prices)-bound:]
	}
}

// appendEvent records an event in the bounded tail.
func (s *State) appendEvent(ev domain.Event, bound int) {
	s.Events = append(s.Events, ev)
	if len(s.Events) > bound {
		s.Events = s.Events[len(s.Events)-bound:]
	}
}

// TrendUp reports whether price is above the start of the recorded
// history window. Used by the deterministic fallback.
func (s *State) TrendUp() bool {
	if len(s.Prices) < 2 {
		return true
	}
	return s.Prices[len(s.Prices)-1] > s.Prices[0]
}
