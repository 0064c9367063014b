// Copyright © 2025 Admin Road Engineering.

package breaker

import (
	"context"
	"sync"
	"time"
)

type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
	openUntil   time.Time
}

// MemoryStore keeps circuit state in a process-local map guarded by a
// mutex. Correct for single-process deployments only: multiple workers
// each holding their own MemoryStore diverge, which is why production
// deployments must use the shared redis store.
type MemoryStore struct {
	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{circuits: make(map[string]*circuit)}
}

// Kind implements Store.
func (s *MemoryStore) Kind() string { return "memory" }

func (s *MemoryStore) get(id string) *circuit {
	c, ok := s.circuits[id]
	if !ok {
		c = &circuit{state: Closed}
		s.circuits[id] = c
	}
	return c
}

// Allow implements Store.
func (s *MemoryStore) Allow(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(id)
	switch c.state {
	case Open:
		if now.Before(c.openUntil) {
			return false, nil
		}
		c.state = HalfOpen
		return true, nil
	default:
		return true, nil
	}
}

// MarkSuccess implements Store.
func (s *MemoryStore) MarkSuccess(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(id)
	c.state = Closed
	c.failures = 0
	c.openUntil = time.Time{}
	return nil
}

// MarkFailure implements Store.
func (s *MemoryStore) MarkFailure(_ context.Context, id string, now time.Time, threshold int, openFor time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(id)
	c.failures++
	c.lastFailure = now
	if c.state == HalfOpen || c.failures >= threshold {
		c.state = Open
		c.openUntil = now.Add(openFor)
	}
	return nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.circuits, id)
	return nil
}

// Snapshot implements Store.
func (s *MemoryStore) Snapshot(_ context.Context, id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.circuits[id]
	if !ok {
		return Snapshot{State: Closed}, nil
	}
	return Snapshot{
		State:        c.state,
		FailureCount: c.failures,
		LastFailure:  c.lastFailure,
		OpenUntil:    c.openUntil,
	}, nil
}
