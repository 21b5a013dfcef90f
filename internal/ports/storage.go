package ports

import (
	"context"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// SnapshotStore persists the engine's full state as an opaque blob so a
// host process can reload it across restarts, plus an append-only
// closed-trade history.
type SnapshotStore interface {
	// SaveSnapshot replaces the stored snapshot atomically.
	SaveSnapshot(ctx context.Context, blob []byte) error

	// LoadSnapshot returns the stored snapshot, or (nil, nil) when no
	// snapshot exists yet.
	LoadSnapshot(ctx context.Context) ([]byte, error)

	// SaveClosedTrade appends one closed position to the history table.
	SaveClosedTrade(ctx context.Context, pos domain.Position) error

	// GetClosedTrades returns the most recent closed trades, newest
	// first, up to limit.
	GetClosedTrades(ctx context.Context, limit int) ([]domain.Position, error)

	// Close releases the underlying database.
	Close() error
}
