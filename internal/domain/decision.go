package domain

// Action is the strict tagged variant an oracle payload is coerced into
// at the boundary. Anything else the oracle proposes is mapped to the
// nearest allowed action before it reaches the engine.
type Action string

const (
	ActionOpenLong  Action = "OPEN_LONG"
	ActionOpenShort Action = "OPEN_SHORT"
	ActionHold      Action = "HOLD"
	ActionClose     Action = "CLOSE"
)

// Decision is a validated trading decision for one agent.
type Decision struct {
	Action       Action  `json:"action"`
	Leverage     float64 `json:"leverage"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	RiskFraction float64 `json:"risk_fraction"`
	Confidence   float64 `json:"confidence"`
	Rationale    string  `json:"rationale"`
	// Fallback marks decisions synthesized locally after an oracle
	// failure; they surface as a "could not decide" notice.
	Fallback bool `json:"fallback"`
}

// Entry reports whether the decision opens a new position.
func (d Decision) Entry() bool {
	return d.Action == ActionOpenLong || d.Action == ActionOpenShort
}

// EntrySide maps an entry action to a position side.
func (d Decision) EntrySide() Side {
	if d.Action == ActionOpenShort {
		return SideShort
	}
	return SideLong
}
