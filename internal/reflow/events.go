package reflow

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType classifies execution lifecycle events.
type EventType string

const (
	EventStarted              EventType = "started"
	EventBlockStarted         EventType = "block_started"
	EventBlockCompleted       EventType = "block_completed"
	EventBlockError           EventType = "block_error"
	EventEarlyTermination     EventType = "early_termination"
	EventVerificationRequired EventType = "human_verification_required"
	EventCompleted            EventType = "completed"
	EventFailed               EventType = "failed"
)

// Event is a single entry on the shared execution event stream. All runs
// multiplex onto one stream; consumers filter by ExecutionID.
type Event struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	BlockID     string         `json:"block_id,omitempty"`
	Type        EventType      `json:"type"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewID generates a prefixed short id, e.g. "exec-4f9d12ab".
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + raw[:8]
}
