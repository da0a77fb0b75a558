package storage

import (
	"sort"
	"sync"
)

// MemoryStore is a CheckpointStore for tests and for runs without a data dir.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]map[int64]Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[int64]Checkpoint)}
}

func (s *MemoryStore) SaveCheckpoint(cp Checkpoint) error {
	if err := validSession(cp.Session); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byTick, ok := s.sessions[cp.Session]
	if !ok {
		byTick = make(map[int64]Checkpoint)
		s.sessions[cp.Session] = byTick
	}
	byTick[cp.Timestamp] = cp
	return nil
}

func (s *MemoryStore) LatestCheckpoint(session string) (Checkpoint, bool, error) {
	cps, err := s.Checkpoints(session, 1)
	if err != nil || len(cps) == 0 {
		return Checkpoint{}, false, err
	}
	return cps[0], true, nil
}

func (s *MemoryStore) Checkpoints(session string, limit int) ([]Checkpoint, error) {
	if err := validSession(session); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byTick := s.sessions[session]
	out := make([]Checkpoint, 0, len(byTick))
	for _, cp := range byTick {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteSession(session string) error {
	if err := validSession(session); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	return nil
}

var _ CheckpointStore = (*MemoryStore)(nil)
