package reflow

import (
	"fmt"
	"time"
)

// BlockType identifies the behavior of a logic block. The set is closed:
// dispatch is a switch over these values, not subclassing.
type BlockType string

const (
	BlockTypeGoal              BlockType = "goal"
	BlockTypeContext           BlockType = "context"
	BlockTypeGateway           BlockType = "gateway"
	BlockTypeReasoning         BlockType = "reasoning"
	BlockTypeFallback          BlockType = "fallback"
	BlockTypeTrace             BlockType = "trace"
	BlockTypeExit              BlockType = "exit"
	BlockTypeHumanVerification BlockType = "human_verification"
)

var blockTypes = map[BlockType]bool{
	BlockTypeGoal:              true,
	BlockTypeContext:           true,
	BlockTypeGateway:           true,
	BlockTypeReasoning:         true,
	BlockTypeFallback:          true,
	BlockTypeTrace:             true,
	BlockTypeExit:              true,
	BlockTypeHumanVerification: true,
}

// ParseBlockType validates a raw string against the closed block type set.
func ParseBlockType(s string) (BlockType, error) {
	bt := BlockType(s)
	if !blockTypes[bt] {
		return "", fmt.Errorf("unknown block type %q", s)
	}
	return bt, nil
}

// LogicBlock is a typed node in a reasoning workflow graph. Immutable once
// the workflow is loaded; Properties is an untyped bag interpreted per type.
type LogicBlock struct {
	ID         string         `json:"id" yaml:"id"`
	Type       BlockType      `json:"type" yaml:"type"`
	Label      string         `json:"label,omitempty" yaml:"label,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	// ToolRefs are opaque external tool identifiers. The engine carries them
	// through but never interprets them.
	ToolRefs []string `json:"tool_refs,omitempty" yaml:"tool_refs,omitempty"`
}

// PropString reads a string property, returning def when absent or mistyped.
func (b *LogicBlock) PropString(key, def string) string {
	if v, ok := b.Properties[key].(string); ok && v != "" {
		return v
	}
	return def
}

// PropFloat reads a numeric property. YAML and JSON decoding may produce
// either float64 or int, so both are accepted.
func (b *LogicBlock) PropFloat(key string, def float64) float64 {
	switch v := b.Properties[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// BlockConnection is a directed edge between two blocks of one workflow.
type BlockConnection struct {
	ID         string `json:"id,omitempty" yaml:"id,omitempty"`
	SourceID   string `json:"source" yaml:"source"`
	TargetID   string `json:"target" yaml:"target"`
	SourcePort string `json:"source_port,omitempty" yaml:"source_port,omitempty"`
	TargetPort string `json:"target_port,omitempty" yaml:"target_port,omitempty"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
}

// ReasoningWorkflow is the immutable description of a logic-block graph.
type ReasoningWorkflow struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Blocks      []LogicBlock      `json:"blocks" yaml:"blocks"`
	Connections []BlockConnection `json:"connections" yaml:"connections"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsTemplate  bool              `json:"is_template,omitempty" yaml:"is_template,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Block returns the block with the given id, or nil.
func (w *ReasoningWorkflow) Block(id string) *LogicBlock {
	for i := range w.Blocks {
		if w.Blocks[i].ID == id {
			return &w.Blocks[i]
		}
	}
	return nil
}

// Validate checks structural invariants that do not require graph traversal:
// unique block ids, known block types, and connection endpoints that
// reference blocks present in this workflow. Cycle detection happens later,
// in the execution order resolver.
func (w *ReasoningWorkflow) Validate() error {
	if len(w.Blocks) == 0 {
		return &ValidationError{Workflow: w.ID, Kind: ValidationEmpty, Detail: "workflow has no blocks"}
	}
	seen := make(map[string]bool, len(w.Blocks))
	for _, b := range w.Blocks {
		if b.ID == "" {
			return &ValidationError{Workflow: w.ID, Kind: ValidationStructure, Detail: "block with empty id"}
		}
		if seen[b.ID] {
			return &ValidationError{Workflow: w.ID, Kind: ValidationStructure, Detail: fmt.Sprintf("duplicate block id %q", b.ID)}
		}
		seen[b.ID] = true
		if !blockTypes[b.Type] {
			return &ValidationError{Workflow: w.ID, Kind: ValidationStructure, Detail: fmt.Sprintf("block %q has unknown type %q", b.ID, b.Type)}
		}
	}
	for _, c := range w.Connections {
		if !seen[c.SourceID] {
			return &ValidationError{Workflow: w.ID, Kind: ValidationStructure, Detail: fmt.Sprintf("connection references unknown block %q", c.SourceID)}
		}
		if !seen[c.TargetID] {
			return &ValidationError{Workflow: w.ID, Kind: ValidationStructure, Detail: fmt.Sprintf("connection references unknown block %q", c.TargetID)}
		}
	}
	return nil
}
