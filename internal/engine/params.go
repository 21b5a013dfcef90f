package engine

import "time"

// TrailingParams controls the optional trailing-stop policy. Activate
// is in pnl percent of margin; LockIn and Offset are fractions of the
// entry price and current price respectively.
type TrailingParams struct {
	Enabled  bool
	Activate float64
	LockIn   float64
	Offset   float64
}

// Params are the engine's tunable constants. Zero values are replaced
// by defaults in New.
type Params struct {
	Symbol string

	InitialBalance   float64
	RestartBalance   float64
	EliminationFloor float64
	MinMargin        float64

	RiskMin  float64 // min fraction of balance per trade
	RiskMax  float64 // max fraction of balance per trade
	Slippage float64 // relative fill offset against the trader

	DefaultLeverage  float64
	MaxLeverage      float64
	DefaultStopPct   float64 // stop distance when the oracle omits one
	DefaultTargetPct float64

	MaxHolding time.Duration

	ActiveSeconds     int
	DiscussionSeconds int
	DecisionInterval  int // default seconds between decisions
	SessionSeconds    int

	PriceHistory int // bounded tick history for prompts and fallback
	EventTail    int // bounded event tail kept in state

	Trailing TrailingParams
}

// DefaultParams returns the competition defaults.
func DefaultParams() Params {
	return Params{
		Symbol:            "BTCUSDT",
		InitialBalance:    1000,
		RestartBalance:    1000,
		EliminationFloor:  10,
		MinMargin:         10,
		RiskMin:           0.05,
		RiskMax:           0.50,
		Slippage:          0.0002,
		DefaultLeverage:   20,
		MaxLeverage:       50,
		DefaultStopPct:    0.005,
		DefaultTargetPct:  0.01,
		MaxHolding:        3 * time.Hour,
		ActiveSeconds:     300,
		DiscussionSeconds: 120,
		DecisionInterval:  30,
		SessionSeconds:    8 * 60 * 60,
		PriceHistory:      300,
		EventTail:         50,
		Trailing: TrailingParams{
			Enabled:  true,
			Activate: 20,
			LockIn:   0.002,
			Offset:   0.003,
		},
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Symbol == "" {
		p.Symbol = d.Symbol
	}
	if p.InitialBalance <= 0 {
		p.InitialBalance = d.InitialBalance
	}
	if p.RestartBalance <= 0 {
		p.RestartBalance = d.RestartBalance
	}
	if p.EliminationFloor <= 0 {
		p.EliminationFloor = d.EliminationFloor
	}
	if p.MinMargin <= 0 {
		p.MinMargin = d.MinMargin
	}
	if p.RiskMin <= 0 {
		p.RiskMin = d.RiskMin
	}
	if p.RiskMax <= 0 {
		p.RiskMax = d.RiskMax
	}
	if p.Slippage <= 0 {
		p.Slippage = d.Slippage
	}
	if p.DefaultLeverage <= 0 {
		p.DefaultLeverage = d.DefaultLeverage
	}
	if p.MaxLeverage <= 0 {
		p.MaxLeverage = d.MaxLeverage
	}
	if p.DefaultStopPct <= 0 {
		p.DefaultStopPct = d.DefaultStopPct
	}
	if p.DefaultTargetPct <= 0 {
		p.DefaultTargetPct = d.DefaultTargetPct
	}
	if p.MaxHolding <= 0 {
		p.MaxHolding = d.MaxHolding
	}
	if p.ActiveSeconds <= 0 {
		p.ActiveSeconds = d.ActiveSeconds
	}
	if p.DiscussionSeconds <= 0 {
		p.DiscussionSeconds = d.DiscussionSeconds
	}
	if p.DecisionInterval <= 0 {
		p.DecisionInterval = d.DecisionInterval
	}
	if p.SessionSeconds <= 0 {
		p.SessionSeconds = d.SessionSeconds
	}
	if p.PriceHistory <= 0 {
		p.PriceHistory = d.PriceHistory
	}
	if p.EventTail <= 0 {
		p.EventTail = d.EventTail
	}
	return p
}
