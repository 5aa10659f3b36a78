// Package taskstore defines the port interface for batch task state.
package taskstore

import (
	"context"
	"errors"

	"github.com/Strob0t/DomainLens/internal/domain/batch"
)

// ErrUnavailable wraps failures of a remote store backend, including an
// open circuit breaker.
var ErrUnavailable = errors.New("task store unavailable")

// Mutation changes a task in place. Returning an error aborts the update and
// leaves the stored task untouched.
type Mutation func(t *batch.Task) error

// Store holds task state keyed by task id.
//
// Only the orchestrator run that created a task calls Update for it; every
// other caller reads through Get, which returns a complete snapshot.
type Store interface {
	// Create stores a new task. The id is assigned by the caller.
	Create(ctx context.Context, t *batch.Task) error

	// Update applies fn atomically to the task with the given id.
	// Terminal tasks are immutable and yield batch.ErrTerminal.
	Update(ctx context.Context, id string, fn Mutation) error

	// Get returns a deep copy of the task or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, id string) (*batch.Task, error)

	// Delete evicts a task. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
