package ports

import (
	"context"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// DecisionContext is everything an oracle gets to see when proposing a
// decision for one agent.
type DecisionContext struct {
	Account  domain.Account
	Position *domain.Position // open position, nil if flat
	Prices   []float64        // recent prices, oldest first
	Trend    domain.Trend
	Chat     []string // recent event lines, oldest first
	Headline *domain.NewsItem
}

// Oracle proposes trading decisions and social commentary. It may be
// slow, unavailable, or return garbage. Implementations coerce
// payloads into valid Decisions, and callers still guard against
// disallowed actions for the agent's position state.
type Oracle interface {
	// RequestDecision proposes an action for the agent. The returned
	// decision is structurally valid but not yet checked against the
	// agent's position state.
	RequestDecision(ctx context.Context, dc DecisionContext) (domain.Decision, error)

	// RequestReaction produces one short comment from reactor about
	// trader's just-opened position. Best effort.
	RequestReaction(ctx context.Context, reactor domain.Account, trader string, pos domain.Position) (string, error)
}
