package domain

// Phase is the shared scheduling mode. During ACTIVE agents may request
// decisions; during DISCUSSION their countdowns freeze while open
// positions keep marking to market.
type Phase string

const (
	PhaseActive     Phase = "ACTIVE"
	PhaseDiscussion Phase = "DISCUSSION"
)

// PhaseState is the current phase plus its remaining whole seconds.
type PhaseState struct {
	Phase     Phase `json:"phase"`
	Remaining int   `json:"remaining"`
}
