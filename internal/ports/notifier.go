package ports

import (
	"context"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// EventSink consumes the engine's append-only event log. Events arrive
// in generation order.
type EventSink interface {
	// Publish delivers one event. Implementations must not block the
	// tick loop for long.
	Publish(ctx context.Context, ev domain.Event) error

	// Leaderboard presents the current standings.
	Leaderboard(ctx context.Context, accounts []domain.Account) error
}
