package blocks

import (
	"context"

	"github.com/soyeon/reflow/internal/reflow"
)

// GoalProcessor declares the run's objective. It always succeeds with full
// confidence and seeds the context with the goal and success criteria.
type GoalProcessor struct{}

func (p *GoalProcessor) Type() reflow.BlockType { return reflow.BlockTypeGoal }

func (p *GoalProcessor) Process(_ context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	goal := blk.PropString("goal", "")
	if goal == "" {
		if m, ok := ec.Inputs["message"].(string); ok {
			goal = m
		}
	}
	if goal == "" {
		goal = blk.Label
	}

	res := newResult(blk, goal, 1.0, "goal declared", true)
	res.ContextUpdates["goal"] = goal
	if criteria := blk.PropString("success_criteria", ""); criteria != "" {
		res.ContextUpdates["success_criteria"] = criteria
	}
	return res, nil
}
