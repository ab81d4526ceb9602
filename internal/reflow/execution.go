package reflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ExecutionState is the lifecycle state of one workflow run.
type ExecutionState string

const (
	StatePending   ExecutionState = "pending"
	StateRunning   ExecutionState = "running"
	StateCompleted ExecutionState = "completed"
	StateFailed    ExecutionState = "failed"
	StateCancelled ExecutionState = "cancelled"
)

// BlockState is the lifecycle state of one block within a run.
type BlockState string

const (
	BlockPending   BlockState = "pending"
	BlockActive    BlockState = "active"
	BlockCompleted BlockState = "completed"
	BlockFailed    BlockState = "failed"
	BlockSkipped   BlockState = "skipped"
)

// BlockExecutionResult is the record of a single block attempt. Created
// once, never mutated afterward.
type BlockExecutionResult struct {
	BlockID        string         `json:"block_id"`
	BlockType      BlockType      `json:"block_type"`
	Output         string         `json:"output,omitempty"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Successful     bool           `json:"successful"`
	ContextUpdates map[string]any `json:"context_updates,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ExecutionError is an error recorded against a run, inspected by Fallback
// blocks when choosing an escalation path.
type ExecutionError struct {
	BlockID   string    `json:"block_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionContext is the accumulating state of one workflow run. It is
// owned exclusively by the run's orchestration goroutine and mutated only
// by the orchestrator; it is never shared across executions.
type ExecutionContext struct {
	ExecutionID  string                 `json:"execution_id"`
	WorkflowID   string                 `json:"workflow_id"`
	Inputs       map[string]any         `json:"inputs,omitempty"`
	State        ExecutionState         `json:"state"`
	BlockResults []BlockExecutionResult `json:"block_results"`
	Variables    map[string]any         `json:"variables"`
	Errors       []ExecutionError       `json:"errors,omitempty"`
	StartTime    time.Time              `json:"start_time"`
	EndTime      time.Time              `json:"end_time,omitempty"`
}

// NewExecutionContext creates the context for a fresh run.
func NewExecutionContext(executionID, workflowID string, inputs map[string]any) *ExecutionContext {
	ec := &ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Inputs:      inputs,
		State:       StatePending,
		Variables:   make(map[string]any),
		StartTime:   time.Now(),
	}
	for k, v := range inputs {
		ec.Variables[k] = v
	}
	return ec
}

// Record appends a block result and merges its context updates into the
// accumulated variables.
func (ec *ExecutionContext) Record(res BlockExecutionResult) {
	ec.BlockResults = append(ec.BlockResults, res)
	for k, v := range res.ContextUpdates {
		ec.Variables[k] = v
	}
}

// RecordError appends an execution error.
func (ec *ExecutionContext) RecordError(blockID string, err error) {
	ec.Errors = append(ec.Errors, ExecutionError{
		BlockID:   blockID,
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// HasGoal reports whether a Goal block has written its goal into context.
func (ec *ExecutionContext) HasGoal() bool {
	g, ok := ec.Variables["goal"].(string)
	return ok && g != ""
}

// Goal returns the declared goal, falling back to the "message" input.
func (ec *ExecutionContext) Goal() string {
	if g, ok := ec.Variables["goal"].(string); ok && g != "" {
		return g
	}
	if m, ok := ec.Variables["message"].(string); ok {
		return m
	}
	return ""
}

// LastOutput returns the output of the most recent successful block that
// produced one.
func (ec *ExecutionContext) LastOutput() string {
	for i := len(ec.BlockResults) - 1; i >= 0; i-- {
		r := ec.BlockResults[i]
		if r.Successful && r.Output != "" {
			return r.Output
		}
	}
	return ""
}

// ContextText renders the accumulated variables as a deterministic text
// digest for inclusion in LLM prompts. Keys are sorted; internal keys
// (double-underscore prefix) are omitted.
func (ec *ExecutionContext) ContextText() string {
	keys := make([]string, 0, len(ec.Variables))
	for k := range ec.Variables {
		if strings.HasPrefix(k, "__") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, ec.Variables[k])
	}
	return b.String()
}

// WorkflowExecutionResult is the externally visible outcome of a run.
type WorkflowExecutionResult struct {
	ExecutionID  string                 `json:"execution_id"`
	WorkflowID   string                 `json:"workflow_id"`
	FinalState   ExecutionState         `json:"final_state"`
	Successful   bool                   `json:"successful"`
	Duration     time.Duration          `json:"duration"`
	BlockResults []BlockExecutionResult `json:"block_results"`
	FinalOutput  string                 `json:"final_output,omitempty"`
}
