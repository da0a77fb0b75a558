// Package storage keeps harness-side records of trading sessions: state
// blob checkpoints in pebble and a line-oriented cycle journal.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Checkpoint is the trader data a session held after one cycle. Account
// optionally carries the venue's view of the session (positions, cash)
// for harnesses that simulate the exchange themselves.
type Checkpoint struct {
	Session    string          `json:"session"`
	Timestamp  int64           `json:"timestamp"`
	TraderData string          `json:"traderData"`
	Account    json.RawMessage `json:"account,omitempty"`
	SavedAt    time.Time       `json:"savedAt"`
}

// CheckpointStore persists checkpoints per session in tick order.
type CheckpointStore interface {
	SaveCheckpoint(cp Checkpoint) error
	LatestCheckpoint(session string) (Checkpoint, bool, error)
	Checkpoints(session string, limit int) ([]Checkpoint, error)
	DeleteSession(session string) error
}

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

// SaveCheckpoint writes cp, replacing any checkpoint at the same tick.
func (s *PebbleStore) SaveCheckpoint(cp Checkpoint) error {
	if err := validSession(cp.Session); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.db.Set(checkpointKey(cp.Session, cp.Timestamp), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the checkpoint with the highest tick.
func (s *PebbleStore) LatestCheckpoint(session string) (Checkpoint, bool, error) {
	cps, err := s.Checkpoints(session, 1)
	if err != nil || len(cps) == 0 {
		return Checkpoint{}, false, err
	}
	return cps[0], true, nil
}

// Checkpoints returns up to limit checkpoints, newest first. limit <= 0 returns all.
func (s *PebbleStore) Checkpoints(session string, limit int) ([]Checkpoint, error) {
	if err := validSession(session); err != nil {
		return nil, err
	}
	prefix := checkpointPrefix(session)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var out []Checkpoint
	for iter.Last(); iter.Valid(); iter.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var cp Checkpoint
		if err := json.Unmarshal(iter.Value(), &cp); err != nil {
			return nil, fmt.Errorf("checkpoint %s@%d: %w", session, tickFromKey(iter.Key()[len(prefix):]), err)
		}
		out = append(out, cp)
	}
	return out, nil
}

// DeleteSession drops every checkpoint of session.
func (s *PebbleStore) DeleteSession(session string) error {
	if err := validSession(session); err != nil {
		return err
	}
	prefix := checkpointPrefix(session)
	if err := s.db.DeleteRange(prefix, keyUpperBound(prefix), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

var _ CheckpointStore = (*PebbleStore)(nil)
