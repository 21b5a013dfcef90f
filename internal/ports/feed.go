package ports

import (
	"context"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// PriceFeed delivers price samples at whatever cadence the venue trades.
// The engine treats each delivery as one settlement trigger and drives
// its own 1s clock independently.
type PriceFeed interface {
	// Subscribe starts the feed and returns the tick channel. The
	// channel closes when the context is cancelled.
	Subscribe(ctx context.Context) (<-chan domain.Tick, error)
}
