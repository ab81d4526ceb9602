package blocks

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeon/reflow/internal/reflow"
)

// ContextProcessor filters already-provided context into the run. Actual
// retrieval (RAG, search) is an external collaborator; this block only
// consumes the "context_data" input.
type ContextProcessor struct{}

func (p *ContextProcessor) Type() reflow.BlockType { return reflow.BlockTypeContext }

func (p *ContextProcessor) Process(_ context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	raw, ok := ec.Inputs["context_data"]
	if !ok {
		raw = ec.Variables["context_data"]
	}
	text := ""
	if raw != nil {
		text = fmt.Sprintf("%v", raw)
	}
	if strings.TrimSpace(text) == "" {
		res := newResult(blk, "", 0.0, "no context data available", false)
		return res, nil
	}

	filtered := text
	if filter := blk.PropString("filter", ""); filter != "" {
		filtered = filterLines(text, filter)
	}

	res := newResult(blk, filtered, 0.8, "context filtered", true)
	res.ContextUpdates["filtered_context"] = filtered
	res.ContextUpdates["relevance_score"] = 0.8
	res.Metadata["raw_length"] = len(text)
	res.Metadata["filtered_length"] = len(filtered)
	return res, nil
}

// filterLines keeps lines containing the filter term (case-insensitive).
// When nothing matches, the full text passes through rather than starving
// downstream blocks.
func filterLines(text, filter string) string {
	needle := strings.ToLower(filter)
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToLower(line), needle) {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return text
	}
	return strings.Join(kept, "\n")
}
