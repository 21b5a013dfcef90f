package engine

import (
	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// fallbackDecision is the deterministic substitute applied when the
// oracle fails or times out: hold an open position, otherwise follow
// the recent trend. hasPosition and trendUp are captured at
// request-issue time so the computation needs no state access.
func fallbackDecision(p Params, hasPosition, trendUp bool) domain.Decision {
	if hasPosition {
		return domain.Decision{
			Action:    domain.ActionHold,
			Rationale: "could not decide, holding",
			Fallback:  true,
		}
	}

	action := domain.ActionOpenLong
	if !trendUp {
		action = domain.ActionOpenShort
	}
	return domain.Decision{
		Action:       action,
		Leverage:     p.DefaultLeverage / 2,
		RiskFraction: p.RiskMin,
		Rationale:    "could not decide, following the trend",
		Fallback:     true,
	}
}

// coerceForPositionState maps a disallowed action to the nearest
// allowed one for the agent's current position state: flat agents are
// forced into an entry along the trend, positioned agents into HOLD.
// This runs at apply time because the position state may have changed
// between request issue and response.
func coerceForPositionState(d domain.Decision, hasPosition, trendUp bool) domain.Decision {
	if hasPosition {
		if d.Action == domain.ActionHold || d.Action == domain.ActionClose {
			return d
		}
		d.Action = domain.ActionHold
		return d
	}

	if d.Entry() {
		return d
	}
	d.Action = domain.ActionOpenLong
	if !trendUp {
		d.Action = domain.ActionOpenShort
	}
	return d
}
