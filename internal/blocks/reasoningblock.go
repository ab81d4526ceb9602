package blocks

import (
	"context"

	"github.com/soyeon/reflow/internal/reasoning"
	"github.com/soyeon/reflow/internal/reflow"
)

// ReasoningProcessor delegates to the reasoning strategy engine using the
// block's "pattern" property (cot, react, tot; anything else runs basic).
type ReasoningProcessor struct {
	deps Deps
}

func (p *ReasoningProcessor) Type() reflow.BlockType { return reflow.BlockTypeReasoning }

func (p *ReasoningProcessor) Process(ctx context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	modelID, err := resolveModelID(blk, ec)
	if err != nil {
		return nil, err
	}
	pattern := reasoning.ParsePattern(blk.PropString("pattern", ""))

	out, err := p.deps.Reasoner.Run(ctx, pattern, modelID, ec.Goal(), ec.ContextText())
	if err != nil {
		return nil, err
	}

	res := newResult(blk, out.Output, out.Confidence, out.Reasoning, true)
	res.ContextUpdates["last_reasoning"] = out.Reasoning
	res.ContextUpdates["last_output"] = out.Output
	res.Metadata["pattern"] = string(pattern)
	res.Metadata["model_id"] = modelID
	for k, v := range out.Metadata {
		res.Metadata[k] = v
	}
	return res, nil
}
