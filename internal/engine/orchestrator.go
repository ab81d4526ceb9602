// Package engine drives workflow execution: it resolves a deterministic
// block order, runs blocks strictly sequentially against an accumulating
// execution context, and multiplexes lifecycle events for all concurrent
// runs onto one broadcast bus.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/soyeon/reflow/internal/blocks"
	"github.com/soyeon/reflow/internal/reflow"
)

// Orchestrator executes reasoning workflows. Construct one instance and
// inject it wherever runs are launched; it owns the shared event bus and
// execution registry, so independent instances are fully isolated (useful
// in tests).
type Orchestrator struct {
	blocks   *blocks.Registry
	bus      *EventBus
	registry *ExecutionRegistry
}

func NewOrchestrator(blockReg *blocks.Registry, bus *EventBus, registry *ExecutionRegistry) *Orchestrator {
	return &Orchestrator{blocks: blockReg, bus: bus, registry: registry}
}

func (o *Orchestrator) Bus() *EventBus               { return o.bus }
func (o *Orchestrator) Registry() *ExecutionRegistry { return o.registry }

// ExecOption configures a single run.
type ExecOption func(*execConfig)

type execConfig struct {
	executionID string
	stopOnError bool
}

// WithExecutionID preassigns the execution id, letting callers register
// event consumers before the run starts.
func WithExecutionID(id string) ExecOption {
	return func(c *execConfig) { c.executionID = id }
}

// WithStopOnError halts the run at the first failing block instead of only
// on Goal/Exit failures.
func WithStopOnError() ExecOption {
	return func(c *execConfig) { c.stopOnError = true }
}

// Execute runs a workflow to completion. It returns an error only for
// structural validation failures discovered before any block runs; block
// failures are recorded in the returned result, never thrown.
func (o *Orchestrator) Execute(ctx context.Context, wf *reflow.ReasoningWorkflow, inputs map[string]any, opts ...ExecOption) (*reflow.WorkflowExecutionResult, error) {
	cfg := execConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.executionID == "" {
		cfg.executionID = reflow.NewID("exec")
	}

	if err := wf.Validate(); err != nil {
		return nil, err
	}
	order, err := ResolveOrder(wf)
	if err != nil {
		return nil, err
	}

	ec := reflow.NewExecutionContext(cfg.executionID, wf.ID, inputs)
	ec.State = reflow.StateRunning
	o.registry.register(cfg.executionID, wf.ID)

	slog.Info("workflow execution started",
		"execution_id", cfg.executionID, "workflow_id", wf.ID, "blocks", len(order))
	o.emit(ec, "", reflow.EventStarted, map[string]any{
		"workflow_name": wf.Name,
		"block_count":   len(order),
	})

	var (
		cancelled  bool
		terminated bool
	)
	for _, blockID := range order {
		// Cancellation is checked at block boundaries only: an in-flight
		// provider call is never aborted, its result is simply discarded.
		if o.registry.Cancelled(cfg.executionID) || ctx.Err() != nil {
			cancelled = true
			o.emit(ec, blockID, reflow.EventEarlyTermination, map[string]any{"reason": "cancelled"})
			break
		}

		blk := wf.Block(blockID)
		proc, ok := o.blocks.Get(blk.Type)
		if !ok {
			// Validate guarantees known types; a missing processor is a
			// wiring bug, not a workflow bug.
			return nil, fmt.Errorf("no processor registered for block type %q", blk.Type)
		}

		o.emit(ec, blk.ID, reflow.EventBlockStarted, map[string]any{
			"block_type": string(blk.Type),
			"label":      blk.Label,
		})

		res, perr := proc.Process(ctx, blk, ec)
		if perr != nil {
			berr := &reflow.BlockExecutionError{BlockID: blk.ID, Type: blk.Type, Err: perr}
			ec.RecordError(blk.ID, berr)
			failed := reflow.BlockExecutionResult{
				BlockID:   blk.ID,
				BlockType: blk.Type,
				Reasoning: berr.Error(),
				Timestamp: time.Now(),
			}
			ec.Record(failed)
			slog.Warn("block failed", "execution_id", cfg.executionID, "block_id", blk.ID, "err", perr)
			o.emit(ec, blk.ID, reflow.EventBlockError, map[string]any{"error": berr.Error()})

			if isFatal(blk.Type) || cfg.stopOnError {
				terminated = true
				o.emit(ec, blk.ID, reflow.EventEarlyTermination, map[string]any{
					"reason": "fatal block failure", "block_id": blk.ID,
				})
				break
			}
			continue
		}

		ec.Record(*res)
		if !res.Successful {
			ec.RecordError(blk.ID, fmt.Errorf("block %q (%s) unsuccessful: %s", blk.ID, blk.Type, res.Reasoning))
		}
		o.emit(ec, blk.ID, reflow.EventBlockCompleted, map[string]any{
			"block_type": string(blk.Type),
			"confidence": res.Confidence,
			"successful": res.Successful,
		})

		if !res.Successful && (isFatal(blk.Type) || cfg.stopOnError) {
			terminated = true
			o.emit(ec, blk.ID, reflow.EventEarlyTermination, map[string]any{
				"reason": "fatal block failure", "block_id": blk.ID,
			})
			break
		}
	}

	ec.EndTime = time.Now()
	switch {
	case cancelled:
		ec.State = reflow.StateCancelled
	case terminated:
		ec.State = reflow.StateFailed
	default:
		ec.State = reflow.StateCompleted
	}
	o.registry.setState(cfg.executionID, ec.State)

	result := o.assemble(ec)
	payload := map[string]any{
		"final_state":  string(result.FinalState),
		"successful":   result.Successful,
		"final_output": result.FinalOutput,
		"duration_ms":  result.Duration.Milliseconds(),
	}
	if result.FinalState == reflow.StateCompleted {
		o.emit(ec, "", reflow.EventCompleted, payload)
	} else {
		o.emit(ec, "", reflow.EventFailed, payload)
	}
	slog.Info("workflow execution finished",
		"execution_id", cfg.executionID, "state", ec.State, "successful", result.Successful,
		"duration", result.Duration)
	return result, nil
}

// isFatal reports whether a failure of this block type stops the run.
func isFatal(t reflow.BlockType) bool {
	return t == reflow.BlockTypeGoal || t == reflow.BlockTypeExit
}

func (o *Orchestrator) assemble(ec *reflow.ExecutionContext) *reflow.WorkflowExecutionResult {
	finalOutput, _ := ec.Variables["final_output"].(string)
	if finalOutput == "" {
		finalOutput = ec.LastOutput()
	}

	successful := false
	if ec.State == reflow.StateCompleted {
		if exit, ok := lastOfType(ec, reflow.BlockTypeExit); ok {
			successful = exit.Successful
		} else {
			successful = len(ec.Errors) == 0
		}
	}

	return &reflow.WorkflowExecutionResult{
		ExecutionID:  ec.ExecutionID,
		WorkflowID:   ec.WorkflowID,
		FinalState:   ec.State,
		Successful:   successful,
		Duration:     ec.EndTime.Sub(ec.StartTime),
		BlockResults: ec.BlockResults,
		FinalOutput:  finalOutput,
	}
}

func lastOfType(ec *reflow.ExecutionContext, t reflow.BlockType) (reflow.BlockExecutionResult, bool) {
	for i := len(ec.BlockResults) - 1; i >= 0; i-- {
		if ec.BlockResults[i].BlockType == t {
			return ec.BlockResults[i], true
		}
	}
	return reflow.BlockExecutionResult{}, false
}

func (o *Orchestrator) emit(ec *reflow.ExecutionContext, blockID string, t reflow.EventType, payload map[string]any) {
	o.bus.Publish(reflow.Event{
		ID:          reflow.NewID("ev"),
		ExecutionID: ec.ExecutionID,
		WorkflowID:  ec.WorkflowID,
		BlockID:     blockID,
		Type:        t,
		Payload:     payload,
		Timestamp:   time.Now(),
	})
}
