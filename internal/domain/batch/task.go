// Package batch defines the Task entity that tracks one batch analysis job.
package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/DomainLens/internal/domain/analysis"
)

// Status represents the current state of a task.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrCancelled is the error message recorded on a task abandoned by its client.
const ErrCancelled = "cancelled"

// ErrTerminal is returned when a mutation targets a completed or failed task.
var ErrTerminal = errors.New("task is already finished")

// ErrInvalidTransition is returned for a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// Task is a batch analysis job. Results and Summary are set only when
// completed; Error only when failed.
type Task struct {
	ID        string            `json:"task_id"`
	Status    Status            `json:"status"`
	Progress  float64           `json:"progress"`
	Domains   []string          `json:"domains,omitempty"`
	Results   []analysis.Result `json:"results,omitempty"`
	Summary   *analysis.Summary `json:"summary,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New creates a task in the starting state.
func New(id string, domains []string, now time.Time) *Task {
	return &Task{
		ID:        id,
		Status:    StatusStarting,
		Domains:   domains,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether s admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusStarting:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Clone returns a deep copy safe to hand to readers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Domains != nil {
		c.Domains = append([]string(nil), t.Domains...)
	}
	if t.Results != nil {
		c.Results = append([]analysis.Result(nil), t.Results...)
	}
	if t.Summary != nil {
		s := *t.Summary
		c.Summary = &s
	}
	return &c
}

// StartProcessing moves a starting task into processing.
func (t *Task) StartProcessing(now time.Time) error {
	if err := t.transition(StatusProcessing); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// AdvanceProgress raises progress to p. Lower values are ignored so that
// progress never decreases; values at or above 100 are held back for Complete.
func (t *Task) AdvanceProgress(p float64, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrTerminal
	}
	if p >= 100 || p <= t.Progress {
		return nil
	}
	t.Progress = p
	t.UpdatedAt = now
	return nil
}

// Complete attaches results and summary and finalizes the task.
func (t *Task) Complete(results []analysis.Result, summary analysis.Summary, now time.Time) error {
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	t.Results = results
	t.Summary = &summary
	t.Progress = 100
	t.UpdatedAt = now
	return nil
}

// Fail finalizes the task with an orchestration-level error message.
func (t *Task) Fail(reason string, now time.Time) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.Error = reason
	t.Results = nil
	t.Summary = nil
	t.UpdatedAt = now
	return nil
}

func (t *Task) transition(to Status) error {
	if t.Status.IsTerminal() {
		return ErrTerminal
	}
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	return nil
}
