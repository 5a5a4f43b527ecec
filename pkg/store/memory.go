package store

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when history is disabled
type MemoryStore struct {
	mu       sync.RWMutex
	launches map[string]*Launch
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{launches: make(map[string]*Launch)}
}

// RecordLaunch stores a copy of l
func (s *MemoryStore) RecordLaunch(l *Launch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = NewLaunchID()
	}
	cp := *l
	s.launches[l.ID] = &cp
	return nil
}

// RecordExit marks a launch as ended
func (s *MemoryStore) RecordExit(id string, endedAt time.Time, exitCode int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.launches[id]
	if !ok {
		return ErrLaunchNotFound
	}
	l.EndedAt = &endedAt
	l.ExitCode = &exitCode
	l.ExitReason = reason
	return nil
}

// GetLaunch returns a copy of the launch with the given ID
func (s *MemoryStore) GetLaunch(id string) (*Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.launches[id]
	if !ok {
		return nil, ErrLaunchNotFound
	}
	cp := *l
	return &cp, nil
}

// ListLaunches returns launches newest first
func (s *MemoryStore) ListLaunches(service string, limit int) ([]Launch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Launch, 0, len(s.launches))
	for _, l := range s.launches {
		if service != "" && l.Service != service {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune removes launches started before the cutoff
func (s *MemoryStore) Prune(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, l := range s.launches {
		if l.StartedAt.Before(before) {
			delete(s.launches, id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
