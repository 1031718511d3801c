// Package inmem provides a process-local memory.Store backed by a map.
// It does not persist across process restarts; callers needing
// durability use memory/mongo instead (§4.D).
package inmem

import (
	"context"
	"sync"

	"github.com/loopforge/agentrun/memory"
	"github.com/loopforge/agentrun/message"
)

// Store is a memory.Store keyed by run ID. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	byRun map[string][]message.Message
}

// New returns an empty Store.
func New() *Store {
	return &Store{byRun: make(map[string][]message.Message)}
}

// Append adds msgs to runID's log. Defensive copies prevent a caller from
// mutating the stored log through the slice it passed in.
func (s *Store) Append(_ context.Context, runID string, msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]message.Message, len(msgs))
	copy(cp, msgs)
	s.byRun[runID] = append(s.byRun[runID], cp...)
	return nil
}

// Load returns a defensive copy of runID's log.
func (s *Store) Load(_ context.Context, runID string) ([]message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.byRun[runID]
	out := make([]message.Message, len(log))
	copy(out, log)
	return out, nil
}

// Reset discards runID's log.
func (s *Store) Reset(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byRun, runID)
	return nil
}

// ApproxTokenCount estimates runID's log footprint via memory.ApproxTokenCount.
func (s *Store) ApproxTokenCount(_ context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memory.ApproxTokenCount(s.byRun[runID]), nil
}

// Len returns the number of messages stored for runID.
func (s *Store) Len(_ context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byRun[runID]), nil
}
