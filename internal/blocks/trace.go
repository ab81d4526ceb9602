package blocks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soyeon/reflow/internal/reflow"
)

// TraceProcessor is a side-effect-only logging checkpoint. It never alters
// control flow and always succeeds.
type TraceProcessor struct{}

func (p *TraceProcessor) Type() reflow.BlockType { return reflow.BlockTypeTrace }

func (p *TraceProcessor) Process(_ context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	slog.Info("trace checkpoint",
		"execution_id", ec.ExecutionID,
		"workflow_id", ec.WorkflowID,
		"block_id", blk.ID,
		"label", blk.Label,
		"blocks_completed", len(ec.BlockResults),
		"variables", len(ec.Variables),
		"errors", len(ec.Errors),
	)

	summary := fmt.Sprintf("checkpoint %q: %d blocks completed, %d errors",
		blk.ID, len(ec.BlockResults), len(ec.Errors))
	res := newResult(blk, summary, 1.0, "trace recorded", true)
	res.Metadata["blocks_completed"] = len(ec.BlockResults)
	res.Metadata["error_count"] = len(ec.Errors)
	return res, nil
}
