package blocks

import (
	"context"
	"fmt"

	"github.com/soyeon/reflow/internal/reflow"
)

// Escalation paths a Fallback block can choose when prior errors exist.
const (
	EscalateHuman = "human"
	EscalateRetry = "retry"
	EscalateAbort = "abort"
)

// FallbackProcessor is the designated recovery mechanism: inert when the
// run has no recorded errors, otherwise it selects the configured
// escalation path. The engine does not auto-retry; it records the chosen
// remediation for the caller.
type FallbackProcessor struct{}

func (p *FallbackProcessor) Type() reflow.BlockType { return reflow.BlockTypeFallback }

func (p *FallbackProcessor) Process(_ context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	if len(ec.Errors) == 0 {
		res := newResult(blk, "no errors to handle", 1.0, "fallback inert", true)
		return res, nil
	}

	path := blk.PropString("escalation_path", EscalateHuman)
	var action string
	switch path {
	case EscalateRetry:
		action = "retry_failed_blocks"
	case EscalateAbort:
		action = "abort_execution"
	default:
		path = EscalateHuman
		action = "escalate_to_human"
	}

	reason := fmt.Sprintf("%d recorded error(s), escalation path %q", len(ec.Errors), path)
	res := newResult(blk, action, 0.8, reason, path != EscalateAbort)
	res.ContextUpdates["fallback_action"] = action
	res.ContextUpdates["escalation_path"] = path
	res.Metadata["errors_handled"] = len(ec.Errors)
	return res, nil
}
