package domain

// AccountStatus represents whether an agent may still trade.
type AccountStatus string

const (
	AccountActive     AccountStatus = "ACTIVE"
	AccountEliminated AccountStatus = "ELIMINATED"
)

// Outcome is the recorded result of one closed trade.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// RecentOutcomeBound caps the per-account recent history used for
// in-context learning.
const RecentOutcomeBound = 10

// Account is one competing trader's bookkeeping. Display metadata
// (Name, Style, Model) is opaque to the engine; it only flows into
// oracle prompts and events.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Style string `json:"style"`
	Model string `json:"model"`

	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	// Recent holds the last outcomes, most recent first.
	Recent []Outcome `json:"recent"`

	// Countdown is seconds until the next allowed decision;
	// DecisionInterval is what it resets to when a request is issued.
	Countdown        int `json:"countdown"`
	DecisionInterval int `json:"decision_interval"`

	Status AccountStatus `json:"status"`
}

// RecordOutcome prepends an outcome to the bounded recent history and
// bumps the matching counter.
func (a *Account) RecordOutcome(o Outcome) {
	if o == OutcomeWin {
		a.Wins++
	} else {
		a.Losses++
	}
	a.Recent = append([]Outcome{o}, a.Recent...)
	if len(a.Recent) > RecentOutcomeBound {
		a.Recent = a.Recent[:RecentOutcomeBound]
	}
}

// WinRate returns the win fraction over the bounded recent history,
// or 0 when there is none.
func (a Account) WinRate() float64 {
	if len(a.Recent) == 0 {
		return 0
	}
	wins := 0
	for _, o := range a.Recent {
		if o == OutcomeWin {
			wins++
		}
	}
	return float64(wins) / float64(len(a.Recent))
}
