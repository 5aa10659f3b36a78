package messagequeue

import "github.com/Strob0t/DomainLens/internal/domain/analysis"

// BatchEventPayload is the schema for analysis.batch.* messages.
type BatchEventPayload struct {
	TaskID  string            `json:"task_id"`
	Status  string            `json:"status"`
	Summary *analysis.Summary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty"`
}
