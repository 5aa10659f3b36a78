// Package kvstore implements the task store port on top of a byte cache
// (ristretto, NATS KV or both tiered). Tasks are stored as JSON documents.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/port/cache"
	"github.com/Strob0t/DomainLens/internal/port/taskstore"
	"github.com/Strob0t/DomainLens/internal/resilience"
)

const keyPrefix = "task:"

// Store serializes tasks into a cache.Cache. Update is atomic per task id
// within this process; across processes only the orchestrator that created
// a task writes it.
type Store struct {
	cache   cache.Cache
	ttl     time.Duration
	breaker *resilience.Breaker
	locks   keyLocks
}

var _ taskstore.Store = (*Store)(nil)

// New creates a store. Entries expire after ttl (zero keeps them until
// deleted). breaker may be nil for in-process caches.
func New(c cache.Cache, ttl time.Duration, breaker *resilience.Breaker) *Store {
	return &Store{
		cache:   c,
		ttl:     ttl,
		breaker: breaker,
		locks:   keyLocks{m: make(map[string]*keyLock)},
	}
}

// Create stores t unless a task with the same id exists.
func (s *Store) Create(ctx context.Context, t *batch.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("create task: %w: id is required", domain.ErrValidation)
	}

	unlock := s.locks.lock(t.ID)
	defer unlock()

	_, found, err := s.load(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	if found {
		return fmt.Errorf("create task %s: %w", t.ID, domain.ErrConflict)
	}
	if err := s.save(ctx, t); err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

// Update loads the task, applies fn and writes it back as one value.
func (s *Store) Update(ctx context.Context, id string, fn taskstore.Mutation) error {
	unlock := s.locks.lock(id)
	defer unlock()

	t, found, err := s.load(ctx, id)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("update task %s: %w", id, batch.ErrTerminal)
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := s.save(ctx, t); err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

// Get decodes a fresh copy of the stored task.
func (s *Store) Get(ctx context.Context, id string) (*batch.Task, error) {
	t, found, err := s.load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

// Delete evicts the task.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.breaker.Execute(func() error {
		return s.cache.Delete(ctx, keyPrefix+id)
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w: %w", id, taskstore.ErrUnavailable, err)
	}
	return nil
}

// BreakerState reports the circuit breaker state for health checks.
func (s *Store) BreakerState() string {
	return s.breaker.State()
}

func (s *Store) load(ctx context.Context, id string) (*batch.Task, bool, error) {
	var (
		data  []byte
		found bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		data, found, err = s.cache.Get(ctx, keyPrefix+id)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", taskstore.ErrUnavailable, err)
	}
	if !found {
		return nil, false, nil
	}

	var t batch.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false, fmt.Errorf("decode task: %w", err)
	}
	return &t, true, nil
}

func (s *Store) save(ctx context.Context, t *batch.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	err = s.breaker.Execute(func() error {
		return s.cache.Set(ctx, keyPrefix+t.ID, data, s.ttl)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", taskstore.ErrUnavailable, err)
	}
	return nil
}

// keyLocks hands out one mutex per key and forgets it once unused.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &keyLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
