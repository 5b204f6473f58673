package domain

import (
	"time"
)

// InteractionStatus represents the lifecycle state of a scheduled interaction.
type InteractionStatus string

const (
	// InteractionScheduled means the interaction is waiting for its execution time.
	InteractionScheduled InteractionStatus = "scheduled"

	// InteractionCompleted means the interaction executed successfully.
	InteractionCompleted InteractionStatus = "completed"

	// InteractionFailed means the interaction execution failed.
	InteractionFailed InteractionStatus = "failed"
)

// IsTerminal returns true if the status ends the interaction's lifecycle.
func (s InteractionStatus) IsTerminal() bool {
	return s == InteractionCompleted || s == InteractionFailed
}

// DefaultMaxAttempts is the default retry budget for a scheduled interaction.
const DefaultMaxAttempts = 3

// Interaction is a deferred social-media action tracked by the scheduler.
type Interaction struct {
	ID          string            `json:"id"`
	Type        ActionType        `json:"type"`
	Target      string            `json:"target"`
	ScheduledAt time.Time         `json:"scheduled_time"`
	Priority    float64           `json:"priority"`
	Status      InteractionStatus `json:"status"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	CreatedAt   time.Time         `json:"created_at"`
	ExecutedAt  *time.Time        `json:"executed_at,omitempty"`
}

// ExecutionLogEntry records one execution attempt of an interaction.
// The log is append-only and capped to the most recent entries when persisted.
type ExecutionLogEntry struct {
	ID        string         `json:"id"`
	Type      ActionType     `json:"type"`
	Target    string         `json:"target"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Result    map[string]any `json:"result,omitempty"`
}
