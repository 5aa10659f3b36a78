// Package memstore implements the task store port in process memory.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/port/taskstore"
)

// Store keeps tasks in a map guarded by a RWMutex. Stored tasks are owned by
// the map; callers only ever see clones.
type Store struct {
	mu        sync.RWMutex
	tasks     map[string]*batch.Task
	retention time.Duration
	now       func() time.Time // for testing
}

var _ taskstore.Store = (*Store)(nil)

// New creates an empty store. Tasks finished longer ago than retention are
// removed by Sweep; a zero retention disables eviction.
func New(retention time.Duration) *Store {
	return &Store{
		tasks:     make(map[string]*batch.Task),
		retention: retention,
		now:       time.Now,
	}
}

// Create stores a copy of t.
func (s *Store) Create(_ context.Context, t *batch.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("create task: %w: id is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("create task %s: %w", t.ID, domain.ErrConflict)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Update applies fn to a copy and swaps it in only if fn succeeds, so readers
// never observe a half-applied mutation.
func (s *Store) Update(_ context.Context, id string, fn taskstore.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
	}
	if current.Status.IsTerminal() {
		return fmt.Errorf("update task %s: %w", id, batch.ErrTerminal)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.tasks[id] = next
	return nil
}

// Get returns a snapshot of the task.
func (s *Store) Get(_ context.Context, id string) (*batch.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

// Delete evicts the task.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored tasks (for metrics and testing).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Sweep removes terminal tasks whose last update is older than the retention
// window and returns how many were evicted. Running tasks are never evicted.
func (s *Store) Sweep() int {
	if s.retention <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	evicted := 0
	for id, t := range s.tasks {
		if t.Status.IsTerminal() && t.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			evicted++
		}
	}
	return evicted
}

// StartSweeper spawns a goroutine that calls Sweep every interval.
// Returns a cancel function that stops the goroutine.
func (s *Store) StartSweeper(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 || s.retention <= 0 {
		return cancel
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					slog.Debug("task store swept", "evicted", n)
				}
			}
		}
	}()
	return cancel
}
