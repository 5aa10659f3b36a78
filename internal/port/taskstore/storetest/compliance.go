// Package storetest provides a compliance suite shared by taskstore.Store
// implementations.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/DomainLens/internal/domain"
	"github.com/Strob0t/DomainLens/internal/domain/analysis"
	"github.com/Strob0t/DomainLens/internal/domain/batch"
	"github.com/Strob0t/DomainLens/internal/port/taskstore"
)

// RunComplianceTests runs the standard compliance suite against a Store.
func RunComplianceTests(t *testing.T, s taskstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		task := batch.New("create-get", []string{"https://example.com"}, time.Now())
		if err := s.Create(ctx, task); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, "create-get")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != batch.StatusStarting || got.Progress != 0 {
			t.Fatalf("expected starting at 0, got %s at %v", got.Status, got.Progress)
		}
		if len(got.Domains) != 1 || got.Domains[0] != "https://example.com" {
			t.Fatalf("unexpected domains %v", got.Domains)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, err := s.Get(ctx, "never-created")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateMiss", func(t *testing.T) {
		err := s.Update(ctx, "never-created", func(*batch.Task) error { return nil })
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateApplies", func(t *testing.T) {
		now := time.Now()
		if err := s.Create(ctx, batch.New("update", nil, now)); err != nil {
			t.Fatal(err)
		}
		err := s.Update(ctx, "update", func(task *batch.Task) error {
			if err := task.StartProcessing(now); err != nil {
				return err
			}
			return task.AdvanceProgress(40, now)
		})
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, "update")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != batch.StatusProcessing || got.Progress != 40 {
			t.Fatalf("expected processing at 40, got %s at %v", got.Status, got.Progress)
		}
	})

	t.Run("FailedMutationDiscarded", func(t *testing.T) {
		if err := s.Create(ctx, batch.New("discard", nil, time.Now())); err != nil {
			t.Fatal(err)
		}
		boom := errors.New("boom")
		err := s.Update(ctx, "discard", func(task *batch.Task) error {
			task.Progress = 99
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected mutation error, got %v", err)
		}
		got, err := s.Get(ctx, "discard")
		if err != nil {
			t.Fatal(err)
		}
		if got.Progress != 0 {
			t.Fatalf("aborted mutation leaked: progress %v", got.Progress)
		}
	})

	t.Run("TerminalIsImmutable", func(t *testing.T) {
		now := time.Now()
		task := batch.New("terminal", nil, now)
		_ = task.StartProcessing(now)
		results := []analysis.Result{analysis.Success("https://example.com", 2, "")}
		_ = task.Complete(results, analysis.Summarize(results), now)
		if err := s.Create(ctx, task); err != nil {
			t.Fatal(err)
		}

		called := false
		err := s.Update(ctx, "terminal", func(*batch.Task) error {
			called = true
			return nil
		})
		if !errors.Is(err, batch.ErrTerminal) {
			t.Fatalf("expected ErrTerminal, got %v", err)
		}
		if called {
			t.Fatal("mutation must not run on a terminal task")
		}
	})

	t.Run("SnapshotIsolation", func(t *testing.T) {
		if err := s.Create(ctx, batch.New("snapshot", []string{"https://a.example"}, time.Now())); err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, "snapshot")
		if err != nil {
			t.Fatal(err)
		}
		got.Domains[0] = "mutated"
		got.Progress = 77

		again, err := s.Get(ctx, "snapshot")
		if err != nil {
			t.Fatal(err)
		}
		if again.Domains[0] != "https://a.example" || again.Progress != 0 {
			t.Fatal("mutating a snapshot leaked into the store")
		}
	})

	t.Run("ConcurrentUpdatesNotLost", func(t *testing.T) {
		now := time.Now()
		task := batch.New("concurrent", nil, now)
		_ = task.StartProcessing(now)
		if err := s.Create(ctx, task); err != nil {
			t.Fatal(err)
		}

		const writers = 50
		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Update(ctx, "concurrent", func(task *batch.Task) error {
					task.Domains = append(task.Domains, "x")
					return nil
				})
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, "concurrent")
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Domains) != writers {
			t.Fatalf("expected %d appended domains, got %d", writers, len(got.Domains))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.Create(ctx, batch.New("delete", nil, time.Now())); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, "delete"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, "delete"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after Delete, got %v", err)
		}
		if err := s.Delete(ctx, "delete"); err != nil {
			t.Fatalf("Delete of evicted task should not error: %v", err)
		}
	})
}
