package batch

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/DomainLens/internal/domain/analysis"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusStarting, StatusProcessing, true},
		{StatusStarting, StatusFailed, true},
		{StatusStarting, StatusCompleted, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusStarting, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestLifecycleCompleted(t *testing.T) {
	now := time.Now()
	task := New("t1", []string{"https://example.com"}, now)
	if task.Status != StatusStarting || task.Progress != 0 {
		t.Fatalf("expected starting task at 0%%, got %s at %v", task.Status, task.Progress)
	}

	if err := task.StartProcessing(now); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}

	results := []analysis.Result{analysis.Success("https://example.com", 3, "")}
	if err := task.Complete(results, analysis.Summarize(results), now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", task.Progress)
	}
	if task.Summary == nil || task.Summary.TotalDomains != 1 {
		t.Fatalf("expected summary attached, got %+v", task.Summary)
	}

	if err := task.Fail("late", now); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal on terminal task, got %v", err)
	}
	if err := task.AdvanceProgress(50, now); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal from AdvanceProgress, got %v", err)
	}
}

func TestCompleteFromStartingIsRejected(t *testing.T) {
	task := New("t1", nil, time.Now())
	err := task.Complete(nil, analysis.Summary{}, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if task.Status != StatusStarting {
		t.Fatalf("status must be unchanged, got %s", task.Status)
	}
}

func TestAdvanceProgressMonotonic(t *testing.T) {
	now := time.Now()
	task := New("t1", nil, now)
	_ = task.StartProcessing(now)

	steps := []struct {
		in, want float64
	}{
		{25, 25},
		{10, 25},
		{50, 50},
		{100, 50},
		{75, 75},
	}
	for _, s := range steps {
		if err := task.AdvanceProgress(s.in, now); err != nil {
			t.Fatalf("AdvanceProgress(%v): %v", s.in, err)
		}
		if task.Progress != s.want {
			t.Fatalf("after AdvanceProgress(%v) expected %v, got %v", s.in, s.want, task.Progress)
		}
	}
}

func TestFailClearsResults(t *testing.T) {
	now := time.Now()
	task := New("t1", nil, now)
	_ = task.StartProcessing(now)

	if err := task.Fail(ErrCancelled, now); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if task.Status != StatusFailed || task.Error != "cancelled" {
		t.Fatalf("expected failed/cancelled, got %s/%q", task.Status, task.Error)
	}
	if task.Results != nil || task.Summary != nil {
		t.Fatal("failed task must not carry results or summary")
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	task := New("t1", []string{"https://a.example"}, now)
	_ = task.StartProcessing(now)
	results := []analysis.Result{analysis.Success("https://a.example", 1, "")}
	_ = task.Complete(results, analysis.Summarize(results), now)

	c := task.Clone()
	c.Results[0].Score = 9
	c.Summary.TotalDomains = 42
	c.Domains[0] = "mutated"

	if task.Results[0].Score != 1 || task.Summary.TotalDomains != 1 || task.Domains[0] != "https://a.example" {
		t.Fatal("mutating the clone leaked into the original")
	}
}
