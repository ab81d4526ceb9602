// Package repository defines the persistence collaborator boundary. The
// engine only ever consumes this interface; durable storage lives outside
// this codebase.
package repository

import (
	"context"
	"errors"

	"github.com/soyeon/reflow/internal/reflow"
)

var ErrNotFound = errors.New("workflow not found")

// WorkflowRepository loads and saves workflow definitions.
type WorkflowRepository interface {
	Get(ctx context.Context, id string) (*reflow.ReasoningWorkflow, error)
	List(ctx context.Context) ([]*reflow.ReasoningWorkflow, error)
	Save(ctx context.Context, wf *reflow.ReasoningWorkflow) error
	Delete(ctx context.Context, id string) error
}
