package kvstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/DomainLens/internal/adapter/kvstore"
	"github.com/Strob0t/DomainLens/internal/adapter/ristretto"
	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/port/taskstore"
	"github.com/Strob0t/DomainLens/internal/port/taskstore/storetest"
	"github.com/Strob0t/DomainLens/internal/resilience"
)

// memCache is a thread-safe in-memory cache.Cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func (m *memCache) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func TestCompliance_MemCache(t *testing.T) {
	storetest.RunComplianceTests(t, kvstore.New(newMemCache(), time.Hour, resilience.NewBreaker(5, time.Second)))
}

func TestCompliance_Ristretto(t *testing.T) {
	c, err := ristretto.New(16 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	storetest.RunComplianceTests(t, kvstore.New(c, time.Hour, nil))
}

func TestCreateDuplicate(t *testing.T) {
	s := kvstore.New(newMemCache(), time.Hour, nil)
	ctx := context.Background()

	if err := s.Create(ctx, batch.New("dup", nil, time.Now())); err != nil {
		t.Fatal(err)
	}
	err := s.Create(ctx, batch.New("dup", nil, time.Now()))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBackendFailureIsUnavailable(t *testing.T) {
	mc := newMemCache()
	breaker := resilience.NewBreaker(2, time.Minute)
	s := kvstore.New(mc, time.Hour, breaker)
	ctx := context.Background()

	if err := s.Create(ctx, batch.New("down", nil, time.Now())); err != nil {
		t.Fatal(err)
	}

	mc.fail(errors.New("connection refused"))
	for range 2 {
		_, err := s.Get(ctx, "down")
		if !errors.Is(err, taskstore.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	}
	if s.BreakerState() != "open" {
		t.Fatalf("breaker state = %q, want open", s.BreakerState())
	}

	mc.fail(nil)
	_, err := s.Get(ctx, "down")
	if !errors.Is(err, resilience.ErrCircuitOpen) || !errors.Is(err, taskstore.ErrUnavailable) {
		t.Fatalf("expected open circuit while breaker is open, got %v", err)
	}
}

func TestFailedMutationNotWritten(t *testing.T) {
	s := kvstore.New(newMemCache(), time.Hour, nil)
	ctx := context.Background()
	now := time.Now()

	if err := s.Create(ctx, batch.New("keep", []string{"https://a.com"}, now)); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	err := s.Update(ctx, "keep", func(task *batch.Task) error {
		task.Domains = nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, err := s.Get(ctx, "keep")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Domains) != 1 {
		t.Fatalf("failed mutation leaked: %v", got.Domains)
	}
}
