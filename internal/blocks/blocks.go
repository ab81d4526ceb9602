// Package blocks implements the per-type execution contract for logic
// blocks. Dispatch is a closed registry keyed by block type; each processor
// owns its own properties schema.
package blocks

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeon/reflow/internal/provider"
	"github.com/soyeon/reflow/internal/reasoning"
	"github.com/soyeon/reflow/internal/reflow"
	"github.com/soyeon/reflow/internal/verification"
)

// Processor executes one block type against the accumulated execution
// context. A returned error means the attempt itself failed (e.g. the
// provider was unreachable); a result with Successful=false means the block
// ran and concluded negatively. Both are non-fatal to the run by default.
type Processor interface {
	Type() reflow.BlockType
	Process(ctx context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error)
}

// EventPublisher lets processors emit execution events (e.g. the human
// verification announcement) without depending on the engine package.
type EventPublisher func(reflow.Event)

// Deps carries the collaborators processors need.
type Deps struct {
	Providers *provider.Registry
	Reasoner  *reasoning.Engine
	Verifier  verification.Verifier
	Publish   EventPublisher
}

func (d Deps) publish(ev reflow.Event) {
	if d.Publish != nil {
		d.Publish(ev)
	}
}

// Registry maps block types to processors.
type Registry struct {
	procs map[reflow.BlockType]Processor
}

func NewRegistry() *Registry {
	return &Registry{procs: make(map[reflow.BlockType]Processor)}
}

func (r *Registry) Register(p Processor) {
	r.procs[p.Type()] = p
}

func (r *Registry) Get(t reflow.BlockType) (Processor, bool) {
	p, ok := r.procs[t]
	return p, ok
}

// DefaultRegistry wires up all eight block types.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(&GoalProcessor{})
	r.Register(&ContextProcessor{})
	r.Register(&GatewayProcessor{deps: deps})
	r.Register(&ReasoningProcessor{deps: deps})
	r.Register(&FallbackProcessor{})
	r.Register(&TraceProcessor{})
	r.Register(&ExitProcessor{})
	r.Register(&HumanVerificationProcessor{deps: deps})
	return r
}

// newResult stamps a block result.
func newResult(blk *reflow.LogicBlock, output string, confidence float64, reason string, ok bool) *reflow.BlockExecutionResult {
	return &reflow.BlockExecutionResult{
		BlockID:        blk.ID,
		BlockType:      blk.Type,
		Output:         output,
		Confidence:     confidence,
		Reasoning:      reason,
		Successful:     ok,
		ContextUpdates: make(map[string]any),
		Metadata:       make(map[string]any),
		Timestamp:      time.Now(),
	}
}

// resolveModelID finds the model for LLM-backed blocks: the block's own
// "model" property wins, then the run-level "model_id" input.
func resolveModelID(blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (string, error) {
	if m := blk.PropString("model", ""); m != "" {
		return m, nil
	}
	if m, ok := ec.Variables["model_id"].(string); ok && m != "" {
		return m, nil
	}
	return "", fmt.Errorf("block %q: no model configured (set a 'model' property or a 'model_id' input)", blk.ID)
}
