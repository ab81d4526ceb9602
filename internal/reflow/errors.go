package reflow

import (
	"errors"
	"fmt"
)

// ValidationKind classifies structural workflow validation failures.
type ValidationKind string

const (
	ValidationEmpty     ValidationKind = "empty"
	ValidationStructure ValidationKind = "structure"
	ValidationCycle     ValidationKind = "cycle"
	ValidationNoEntry   ValidationKind = "no_entry"
)

// ValidationError reports a structurally invalid workflow. It is raised
// before any block runs; no partial execution state exists when it occurs.
type ValidationError struct {
	Workflow string
	Kind     ValidationKind
	Detail   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %q invalid (%s): %s", e.Workflow, e.Kind, e.Detail)
}

// IsValidation reports whether err is a ValidationError of the given kind.
// An empty kind matches any validation error.
func IsValidation(err error, kind ValidationKind) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return kind == "" || ve.Kind == kind
}

// BlockExecutionError is attached to a single block result. Non-fatal by
// default: the orchestrator records it and continues unless the failing
// block is Goal or Exit, or the run is configured to stop on first error.
type BlockExecutionError struct {
	BlockID string
	Type    BlockType
	Err     error
}

func (e *BlockExecutionError) Error() string {
	return fmt.Sprintf("block %q (%s): %v", e.BlockID, e.Type, e.Err)
}

func (e *BlockExecutionError) Unwrap() error { return e.Err }

// ProviderError wraps a failure from the LLM provider collaborator. On
// Reasoning and Gateway blocks it surfaces as a BlockExecutionError.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrVerificationTimeout marks a human verification request that was not
// resolved within its timeout. It converts into a failed block result, not
// a run abort.
var ErrVerificationTimeout = errors.New("human verification timed out")

// ErrExecutionNotFound is returned by the execution registry for unknown ids.
var ErrExecutionNotFound = errors.New("execution not found")
