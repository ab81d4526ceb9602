// Package reasoning implements the prompting strategies used by Reasoning
// blocks: chain-of-thought, ReAct, tree-of-thought, and a basic single-pass
// fallback.
package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soyeon/reflow/internal/provider"
)

// Pattern selects a reasoning strategy.
type Pattern string

const (
	PatternCoT   Pattern = "cot"
	PatternReAct Pattern = "react"
	PatternToT   Pattern = "tot"
	PatternBasic Pattern = "basic"
)

// ParsePattern maps a raw property value to a known pattern. Unrecognized
// values fall back to basic, the lowest-trust default.
func ParsePattern(s string) Pattern {
	switch Pattern(strings.ToLower(s)) {
	case PatternCoT, PatternReAct, PatternToT:
		return Pattern(strings.ToLower(s))
	default:
		return PatternBasic
	}
}

// Result is the outcome of one reasoning run.
type Result struct {
	Output     string         `json:"output"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Engine runs reasoning patterns against an LLM provider.
type Engine struct {
	providers     *provider.Registry
	maxIterations int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations bounds the ReAct loop. Values < 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxIterations = n
		}
	}
}

func NewEngine(providers *provider.Registry, opts ...Option) *Engine {
	e := &Engine{providers: providers, maxIterations: 3}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the given pattern for a goal and accumulated context text,
// using the model addressed by modelID ("provider/model").
func (e *Engine) Run(ctx context.Context, pattern Pattern, modelID, goal, contextText string) (*Result, error) {
	prov, model, err := e.providers.Resolve(modelID)
	if err != nil {
		return nil, fmt.Errorf("resolve model %q: %w", modelID, err)
	}

	switch pattern {
	case PatternCoT:
		return e.chainOfThought(ctx, prov, model, goal, contextText)
	case PatternReAct:
		return e.react(ctx, prov, model, goal, contextText)
	case PatternToT:
		return e.treeOfThought(ctx, prov, model, goal, contextText)
	default:
		return e.basic(ctx, prov, model, goal, contextText)
	}
}

func (e *Engine) chat(ctx context.Context, prov provider.Provider, model, system, prompt string) (string, error) {
	var messages []provider.Message
	if system != "" {
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: system})
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: prompt})
	resp, err := prov.Chat(ctx, &provider.ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// chainOfThought asks for explicit numbered reasoning steps in one shot.
func (e *Engine) chainOfThought(ctx context.Context, prov provider.Provider, model, goal, contextText string) (*Result, error) {
	prompt := fmt.Sprintf(`Goal: %s

Think through this step by step. Number each reasoning step explicitly
(1., 2., 3., ...), then state your final answer.
End your reply with a line of the form "CONFIDENCE: <0-100>".`, goal)

	reply, err := e.chat(ctx, prov, model, contextSystem(contextText), prompt)
	if err != nil {
		return nil, err
	}

	conf, found := ExtractConfidence(reply)
	if !found {
		conf = 0.5
	}
	return &Result{
		Output:     reply,
		Confidence: conf,
		Reasoning:  reply,
		Metadata:   map[string]any{"pattern": string(PatternCoT)},
	}, nil
}

// react runs the iterative Thought/Action/Observation loop, re-prompting
// with the running transcript until the reply signals a final answer or the
// iteration budget is spent.
func (e *Engine) react(ctx context.Context, prov provider.Provider, model, goal, contextText string) (*Result, error) {
	var transcript strings.Builder
	var lastReply string
	iterations := 0

	for i := 0; i < e.maxIterations; i++ {
		iterations++
		prompt := fmt.Sprintf(`Goal: %s

Work on this goal using the ReAct format. For this step, produce:
Thought: <what you are considering>
Action: <what you would do next>
Observation: <what you learn from it>

When you have enough to answer, write "Final Answer:" followed by your
conclusion instead.`, goal)
		if transcript.Len() > 0 {
			prompt += "\n\nTranscript so far:\n" + transcript.String()
		}

		reply, err := e.chat(ctx, prov, model, contextSystem(contextText), prompt)
		if err != nil {
			return nil, err
		}
		lastReply = reply
		fmt.Fprintf(&transcript, "--- iteration %d ---\n%s\n", i+1, reply)

		if isFinal(reply) {
			break
		}
	}

	conf, found := ExtractConfidence(lastReply)
	if !found {
		conf = 0.5
	}
	return &Result{
		Output:     lastReply,
		Confidence: conf,
		Reasoning:  transcript.String(),
		Metadata:   map[string]any{"pattern": string(PatternReAct), "iterations": iterations},
	}, nil
}

// treeOfThought asks for three independent reasoning paths and a selection
// in a single prompt; the reply is returned verbatim.
func (e *Engine) treeOfThought(ctx context.Context, prov provider.Provider, model, goal, contextText string) (*Result, error) {
	prompt := fmt.Sprintf(`Goal: %s

Generate exactly 3 independent reasoning paths toward this goal. Label them
Path 1, Path 2, and Path 3. For each path explain the approach and its
conclusion. Then select the best path, explain why, and state the final
answer it leads to.`, goal)

	reply, err := e.chat(ctx, prov, model, contextSystem(contextText), prompt)
	if err != nil {
		return nil, err
	}

	conf, found := ExtractConfidence(reply)
	if !found {
		conf = 0.5
	}
	return &Result{
		Output:     reply,
		Confidence: conf,
		Reasoning:  reply,
		Metadata:   map[string]any{"pattern": string(PatternToT), "paths": 3},
	}, nil
}

// basic is the single pass-through prompt used when no pattern is
// recognized. Fixed confidence 0.5.
func (e *Engine) basic(ctx context.Context, prov provider.Provider, model, goal, contextText string) (*Result, error) {
	reply, err := e.chat(ctx, prov, model, contextSystem(contextText), goal)
	if err != nil {
		return nil, err
	}
	slog.Debug("basic reasoning pass", "model", model, "reply_len", len(reply))
	return &Result{
		Output:     reply,
		Confidence: 0.5,
		Reasoning:  reply,
		Metadata:   map[string]any{"pattern": string(PatternBasic)},
	}, nil
}

func contextSystem(contextText string) string {
	if contextText == "" {
		return ""
	}
	return "Relevant context accumulated so far:\n" + contextText
}

func isFinal(reply string) bool {
	lower := strings.ToLower(reply)
	return strings.Contains(lower, "final answer") || strings.Contains(lower, "conclusion")
}
