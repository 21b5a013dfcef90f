package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// PhaseController runs the two-state ACTIVE/DISCUSSION cycle on the 1s
// clock. Settlement is unaffected by phase; only decision countdowns
// freeze outside ACTIVE.
type PhaseController struct {
	params Params
}

// NewPhaseController creates a phase controller.
func NewPhaseController(params Params) *PhaseController {
	return &PhaseController{params: params}
}

// Initial returns the starting phase state.
func (pc *PhaseController) Initial() domain.PhaseState {
	return domain.PhaseState{Phase: domain.PhaseActive, Remaining: pc.params.ActiveSeconds}
}

// Tick advances the shared countdown by one second. When it reaches
// zero the phase flips, the countdown resets to the other phase's
// duration, and the transition notice to broadcast is returned.
func (pc *PhaseController) Tick(s *State) (notice string, transitioned bool) {
	if s.Phase.Remaining > 1 {
		s.Phase.Remaining--
		return "", false
	}

	if s.Phase.Phase == domain.PhaseActive {
		s.Phase = domain.PhaseState{Phase: domain.PhaseDiscussion, Remaining: pc.params.DiscussionSeconds}
		return "Trading break. Agents are reviewing the last session.", true
	}
	s.Phase = domain.PhaseState{Phase: domain.PhaseActive, Remaining: pc.params.ActiveSeconds}
	return "Back to work. Positions open.", true
}

// Trading reports whether new decisions may currently be requested.
func (pc *PhaseController) Trading(s *State) bool {
	return s.Phase.Phase == domain.PhaseActive
}
