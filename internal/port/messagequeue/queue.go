// Package messagequeue defines the message bus port (interface).
package messagequeue

import "context"

// Publisher is the port interface for emitting batch lifecycle events.
type Publisher interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// IsConnected reports whether the bus is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by DomainLens.
const (
	SubjectPrefix         = "analysis."
	SubjectBatchCompleted = "analysis.batch.completed"
	SubjectBatchFailed    = "analysis.batch.failed"
)
