package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/neuroarena/internal/domain"
)

// Snapshot is the serializable image of the engine's full state. All
// slices persist and restore atomically so the ledger never reloads a
// partial view. In-flight oracle latches are deliberately absent:
// nothing can be outstanding across a restart.
type Snapshot struct {
	TakenAt   time.Time          `json:"taken_at"`
	Symbol    string             `json:"symbol"`
	Accounts  []domain.Account   `json:"accounts"`
	Positions []domain.Position  `json:"positions"`
	Phase     domain.PhaseState  `json:"phase"`
	Session   int                `json:"session"`
	Events    []domain.Event     `json:"events"`
}

// snapshot captures the current state.
func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{
		TakenAt: time.Now().UTC(),
		Symbol:  e.params.Symbol,
		Phase:   e.state.Phase,
		Session: e.state.Session,
		Events:  append([]domain.Event(nil), e.state.Events...),
	}
	for _, a := range e.state.Accounts {
		snap.Accounts = append(snap.Accounts, *a)
	}
	for _, p := range e.state.Positions {
		snap.Positions = append(snap.Positions, *p)
	}
	return snap
}

// snapshotBlob captures and encodes the current state.
func (e *Engine) snapshotBlob() ([]byte, error) {
	blob, err := json.Marshal(e.snapshot())
	if err != nil {
		return nil, fmt.Errorf("engine.snapshotBlob: encode snapshot: %w", err)
	}
	return blob, nil
}

// restore replaces the engine state with the snapshot's. Positions
// restore with their saved status, so already-applied exits are never
// re-triggered.
func (e *Engine) restore(snap Snapshot) {
	s := &State{
		Phase:   snap.Phase,
		Session: snap.Session,
		Events:  append([]domain.Event(nil), snap.Events...),
	}
	for i := range snap.Accounts {
		a := snap.Accounts[i]
		s.Accounts = append(s.Accounts, &a)
	}
	for i := range snap.Positions {
		p := snap.Positions[i]
		s.Positions = append(s.Positions, &p)
	}
	if s.Phase.Phase == "" {
		s.Phase = e.phases.Initial()
	}
	if s.Session <= 0 {
		s.Session = e.params.SessionSeconds
	}
	e.state = s
}

// Restore loads engine state from a snapshot blob produced by
// Snapshot. Must be called before Run.
func (e *Engine) Restore(blob []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return fmt.Errorf("engine.Restore: decode snapshot: %w", err)
	}
	e.restore(snap)
	return nil
}
