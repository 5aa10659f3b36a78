package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/DomainLens/internal/middleware"
)

// memCache is an in-memory cache.Cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"task_id":"task-%d"}`, n)
	})
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"domains":["a.com"]}`))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_ReplaysResponse(t *testing.T) {
	var calls atomic.Int32
	h := middleware.Idempotency(newMemCache(), time.Hour)(countingHandler(&calls, http.StatusAccepted))

	first := post(h, "/analyze", "key-1")
	second := post(h, "/analyze", "key-1")

	if calls.Load() != 1 {
		t.Fatalf("handler called %d times, want 1", calls.Load())
	}
	if second.Code != http.StatusAccepted {
		t.Fatalf("replayed status = %d, want 202", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q != original %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected Idempotent-Replayed header on replay")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Error("expected Content-Type replayed")
	}
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	var calls atomic.Int32
	h := middleware.Idempotency(newMemCache(), time.Hour)(countingHandler(&calls, http.StatusAccepted))

	post(h, "/analyze", "")
	post(h, "/analyze", "")

	if calls.Load() != 2 {
		t.Fatalf("handler called %d times, want 2", calls.Load())
	}
}

func TestIdempotency_KeysScopedToPath(t *testing.T) {
	var calls atomic.Int32
	h := middleware.Idempotency(newMemCache(), time.Hour)(countingHandler(&calls, http.StatusAccepted))

	post(h, "/analyze", "shared")
	post(h, "/upload", "shared")

	if calls.Load() != 2 {
		t.Fatalf("handler called %d times, want 2", calls.Load())
	}
}

func TestIdempotency_ErrorsNotCached(t *testing.T) {
	var calls atomic.Int32
	h := middleware.Idempotency(newMemCache(), time.Hour)(countingHandler(&calls, http.StatusInternalServerError))

	post(h, "/analyze", "retry-me")
	post(h, "/analyze", "retry-me")

	if calls.Load() != 2 {
		t.Fatalf("failed responses must not be replayed, handler called %d times", calls.Load())
	}
}

func TestIdempotency_GetIgnored(t *testing.T) {
	var calls atomic.Int32
	h := middleware.Idempotency(newMemCache(), time.Hour)(countingHandler(&calls, http.StatusOK))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/status/x", http.NoBody)
		req.Header.Set("Idempotency-Key", "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls.Load() != 2 {
		t.Fatalf("GET must not be deduplicated, handler called %d times", calls.Load())
	}
}

func TestIdempotency_ConcurrentDuplicateConflicts(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	slow := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(entered) })
		<-release
		w.WriteHeader(http.StatusAccepted)
	})
	h := middleware.Idempotency(newMemCache(), time.Hour)(slow)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- post(h, "/analyze", "dup") }()
	<-entered

	second := post(h, "/analyze", "dup")
	if second.Code != http.StatusConflict {
		t.Fatalf("concurrent duplicate status = %d, want 409", second.Code)
	}

	close(release)
	if first := <-done; first.Code != http.StatusAccepted {
		t.Fatalf("first status = %d, want 202", first.Code)
	}
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	var calls atomic.Int32
	h := middleware.Idempotency(newMemCache(), time.Hour)(countingHandler(&calls, http.StatusAccepted))

	rec := post(h, "/analyze", strings.Repeat("k", 300))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run for an invalid key")
	}
}
