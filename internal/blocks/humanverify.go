package blocks

import (
	"context"
	"errors"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
	"github.com/soyeon/reflow/internal/verification"
)

const defaultVerificationTimeout = 5 * time.Minute

// HumanVerificationProcessor parks the run until an operator approves or
// rejects the current state. A timeout or rejection is a non-critical block
// failure; the workflow continues unless the error policy says otherwise.
type HumanVerificationProcessor struct {
	deps Deps
}

func (p *HumanVerificationProcessor) Type() reflow.BlockType {
	return reflow.BlockTypeHumanVerification
}

func (p *HumanVerificationProcessor) Process(ctx context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	timeout := defaultVerificationTimeout
	if secs := blk.PropFloat("timeout_seconds", 0); secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}
	description := blk.PropString("description", "Verify the current workflow state before continuing.")
	title := blk.Label
	if title == "" {
		title = "Human verification"
	}

	req := &verification.Request{
		ID:          reflow.NewID("verify"),
		Source:      ec.WorkflowID,
		Title:       title,
		Description: description,
		Data: map[string]any{
			"execution_id": ec.ExecutionID,
			"goal":         ec.Goal(),
			"last_output":  ec.Variables["last_output"],
			"errors":       len(ec.Errors),
		},
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}

	p.deps.publish(reflow.Event{
		ID:          reflow.NewID("ev"),
		ExecutionID: ec.ExecutionID,
		WorkflowID:  ec.WorkflowID,
		BlockID:     blk.ID,
		Type:        reflow.EventVerificationRequired,
		Payload: map[string]any{
			"request_id":  req.ID,
			"title":       req.Title,
			"description": req.Description,
			"timeout":     timeout.String(),
		},
		Timestamp: time.Now(),
	})

	result, err := p.deps.Verifier.RequestVerification(ctx, req)
	switch {
	case errors.Is(err, reflow.ErrVerificationTimeout):
		res := newResult(blk, "", 0.0, "verification timed out", false)
		res.ContextUpdates["verification_approved"] = false
		res.Metadata["request_id"] = req.ID
		res.Metadata["timeout"] = true
		return res, nil
	case err != nil:
		return nil, err
	}

	conf := 0.0
	if result.Approved {
		conf = 1.0
	}
	res := newResult(blk, result.Feedback, conf, "operator decision received", result.Approved)
	res.ContextUpdates["verification_approved"] = result.Approved
	if result.Feedback != "" {
		res.ContextUpdates["verification_feedback"] = result.Feedback
	}
	res.Metadata["request_id"] = req.ID
	return res, nil
}
