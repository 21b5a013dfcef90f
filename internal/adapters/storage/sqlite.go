// Package storage persists engine snapshots and the closed-trade
// history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Exactly one row: the latest engine state blob. History lives in
-- closed_trades, not here.
CREATE TABLE IF NOT EXISTS snapshots (
    id       INTEGER PRIMARY KEY CHECK (id = 1),
    taken_at DATETIME NOT NULL,
    state    BLOB     NOT NULL
);

-- One row per settled position.
CREATE TABLE IF NOT EXISTS closed_trades (
    id          TEXT PRIMARY KEY,
    agent_id    TEXT NOT NULL,
    symbol      TEXT NOT NULL,
    side        TEXT NOT NULL,
    entry_price REAL NOT NULL,
    size        REAL NOT NULL,
    leverage    REAL NOT NULL,
    pnl         REAL NOT NULL,
    pnl_percent REAL NOT NULL,
    reason      TEXT NOT NULL,
    opened_at   DATETIME NOT NULL,
    closed_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_agent  ON closed_trades(agent_id);
CREATE INDEX IF NOT EXISTS idx_trades_closed ON closed_trades(closed_at DESC);
`

// retentionTrades keeps the trade history bounded; old sessions have
// no value beyond this window.
const retentionTrades = 30 * 24 * time.Hour

// SQLiteStore implements ports.SnapshotStore using SQLite (pure Go, no
// CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path,
// applies the schema and prunes old trades.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveSnapshot replaces the single persisted state blob.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, taken_at, state) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			taken_at = excluded.taken_at,
			state    = excluded.state
	`, time.Now().UTC(), blob)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: upsert: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted state blob, or (nil, nil) when no
// snapshot has been saved yet.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM snapshots WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.LoadSnapshot: query: %w", err)
	}
	return blob, nil
}

// SaveClosedTrade appends one settled position to the history.
func (s *SQLiteStore) SaveClosedTrade(ctx context.Context, pos domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO closed_trades
			(id, agent_id, symbol, side, entry_price, size, leverage,
			 pnl, pnl_percent, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pos.ID,
		pos.AgentID,
		pos.Symbol,
		string(pos.Side),
		pos.EntryPrice,
		pos.Size,
		pos.Leverage,
		pos.PnL,
		pos.PnLPercent,
		string(pos.Reason),
		pos.OpenedAt.UTC(),
		pos.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveClosedTrade: insert %s: %w", pos.ID, err)
	}
	return nil
}

// GetClosedTrades returns the most recent settled positions, newest
// first. limit <= 0 means no limit.
func (s *SQLiteStore) GetClosedTrades(ctx context.Context, limit int) ([]domain.Position, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, symbol, side, entry_price, size, leverage,
		       pnl, pnl_percent, reason, opened_at, closed_at
		FROM closed_trades
		ORDER BY closed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetClosedTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Position
	for rows.Next() {
		var pos domain.Position
		var side, reason string

		if err := rows.Scan(
			&pos.ID,
			&pos.AgentID,
			&pos.Symbol,
			&side,
			&pos.EntryPrice,
			&pos.Size,
			&pos.Leverage,
			&pos.PnL,
			&pos.PnLPercent,
			&reason,
			&pos.OpenedAt,
			&pos.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.GetClosedTrades: scan row: %w", err)
		}

		pos.Side = domain.Side(side)
		pos.Reason = domain.CloseReason(reason)
		pos.Status = domain.PositionClosed
		trades = append(trades, pos)
	}
	return trades, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// pruneOld drops trades outside the retention window to keep the DB
// small.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionTrades)
	s.db.ExecContext(ctx, `DELETE FROM closed_trades WHERE closed_at < ?`, cutoff)
}
