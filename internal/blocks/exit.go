package blocks

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeon/reflow/internal/reflow"
)

// Exit status classifications.
const (
	StatusCompleteSuccess  = "complete_success"
	StatusPartialSuccess   = "partial_success"
	StatusFailedWithErrors = "failed_with_errors"
	StatusIncomplete       = "incomplete"
)

// ExitProcessor is the terminal quality gate: it scores the run against the
// block's quality threshold, classifies the outcome, and extracts the
// final output.
type ExitProcessor struct{}

func (p *ExitProcessor) Type() reflow.BlockType { return reflow.BlockTypeExit }

func (p *ExitProcessor) Process(_ context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	threshold := blk.PropFloat("quality_threshold", 0.7)

	hasGoal := ec.HasGoal()
	finalOutput, _ := ec.Variables["last_output"].(string)
	hasOutput := finalOutput != ""
	hasErrors := len(ec.Errors) > 0
	deferred := gatewayDeferred(ec)

	score := 0.0
	if hasGoal {
		score += 0.4
	}
	if hasOutput {
		score += 0.4
	}
	if !hasErrors {
		score += 0.2
	}

	var status string
	switch {
	case hasGoal && hasOutput && !hasErrors && !deferred && score >= threshold:
		status = StatusCompleteSuccess
	case hasOutput:
		status = StatusPartialSuccess
	case hasErrors:
		status = StatusFailedWithErrors
	default:
		status = StatusIncomplete
	}

	reason := fmt.Sprintf("quality %.2f against threshold %.2f (goal=%t output=%t errors=%t deferred=%t)",
		score, threshold, hasGoal, hasOutput, hasErrors, deferred)
	ok := status == StatusCompleteSuccess || status == StatusPartialSuccess

	res := newResult(blk, finalOutput, score, reason, ok)
	res.ContextUpdates["exit_status"] = status
	if finalOutput != "" {
		res.ContextUpdates["final_output"] = finalOutput
	}
	res.Metadata["status"] = status
	res.Metadata["quality_threshold"] = threshold
	res.Metadata["threshold_met"] = score >= threshold
	return res, nil
}

// gatewayDeferred reports whether any upstream gateway deferred or
// escalated. Each gateway records both the shared "gateway_decision" key
// and its own "gateway_<id>_decision" key; the per-gateway keys are scanned
// so a later proceed cannot mask an earlier defer.
func gatewayDeferred(ec *reflow.ExecutionContext) bool {
	for key, v := range ec.Variables {
		if !strings.HasPrefix(key, "gateway_") || !strings.HasSuffix(key, "_decision") {
			continue
		}
		if d, _ := v.(string); d == DecisionDefer || d == DecisionEscalate {
			return true
		}
	}
	return false
}
