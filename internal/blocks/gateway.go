package blocks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/soyeon/reflow/internal/provider"
	"github.com/soyeon/reflow/internal/reasoning"
	"github.com/soyeon/reflow/internal/reflow"
)

// Gateway decisions. A defer or escalate does not halt execution by itself;
// it is recorded for downstream Fallback and Exit blocks to act on.
const (
	DecisionProceed  = "proceed"
	DecisionDefer    = "defer"
	DecisionEscalate = "escalate"
)

// GatewayProcessor routes execution by confidence. Strategy is selected by
// the "strategy" property: rule_based (keyword heuristic), llm_decision
// (provider-prompted), or expression (expr-lang condition over context
// variables).
type GatewayProcessor struct {
	deps Deps
}

func (p *GatewayProcessor) Type() reflow.BlockType { return reflow.BlockTypeGateway }

func (p *GatewayProcessor) Process(ctx context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (*reflow.BlockExecutionResult, error) {
	threshold := blk.PropFloat("confidence", 0.7)
	strategy := blk.PropString("strategy", "rule_based")

	var (
		decision   string
		confidence float64
		rationale  string
		err        error
	)
	switch strategy {
	case "llm_decision":
		decision, confidence, rationale, err = p.llmDecision(ctx, blk, ec)
		if err != nil {
			return nil, err
		}
	case "expression":
		decision, confidence, rationale = p.expression(blk, ec)
	default:
		confidence = estimateRuleConfidence(ec.ContextText())
		if confidence >= threshold {
			decision = DecisionProceed
		} else {
			decision = DecisionDefer
		}
		rationale = fmt.Sprintf("rule-based confidence %.2f against threshold %.2f", confidence, threshold)
	}

	res := newResult(blk, decision, confidence, rationale, true)
	res.ContextUpdates["gateway_decision"] = decision
	res.ContextUpdates["gateway_confidence"] = confidence
	res.ContextUpdates[fmt.Sprintf("gateway_%s_decision", blk.ID)] = decision
	res.Metadata["strategy"] = strategy
	res.Metadata["threshold"] = threshold
	res.Metadata["threshold_met"] = confidence >= threshold
	return res, nil
}

var (
	decisionPattern = regexp.MustCompile(`(?i)decision[:\s]+(proceed|defer|escalate|abort)`)
	reasonPattern   = regexp.MustCompile(`(?i)reasoning[:\s]+(\S[^\n]*)`)
)

// llmDecision prompts the provider for a CONFIDENCE / DECISION / REASONING
// triple and parses the three fields out of the reply.
func (p *GatewayProcessor) llmDecision(ctx context.Context, blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (decision string, confidence float64, rationale string, err error) {
	modelID, err := resolveModelID(blk, ec)
	if err != nil {
		return "", 0, "", err
	}
	prov, model, err := p.deps.Providers.Resolve(modelID)
	if err != nil {
		return "", 0, "", err
	}

	prompt := fmt.Sprintf(`You are a routing gateway in an agent workflow.

Goal: %s

Current context:
%s

Should execution proceed past this gateway? Reply in exactly this format:
CONFIDENCE: <0-100>
DECISION: <proceed|defer|escalate>
REASONING: <one or two sentences>`, ec.Goal(), ec.ContextText())

	resp, err := prov.Chat(ctx, &provider.ChatRequest{
		Model:    model,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", 0, "", err
	}

	confidence, found := reasoning.ExtractConfidence(resp.Content)
	if !found {
		confidence = 0.5
	}
	decision = DecisionDefer
	if m := decisionPattern.FindStringSubmatch(resp.Content); m != nil {
		decision = strings.ToLower(m[1])
		if decision == "abort" {
			decision = DecisionEscalate
		}
	}
	rationale = resp.Content
	if m := reasonPattern.FindStringSubmatch(resp.Content); m != nil {
		rationale = strings.TrimSpace(m[1])
	}
	return decision, confidence, rationale, nil
}

// expression evaluates an expr-lang condition against the non-internal
// context variables. Truthy means proceed; falsy or unevaluable means defer.
func (p *GatewayProcessor) expression(blk *reflow.LogicBlock, ec *reflow.ExecutionContext) (decision string, confidence float64, rationale string) {
	condition := blk.PropString("condition", "")
	if condition == "" {
		return DecisionProceed, 1.0, "no condition configured"
	}

	env := make(map[string]any)
	for k, v := range ec.Variables {
		if !strings.HasPrefix(k, "__") {
			env[k] = v
		}
	}

	program, err := expr.Compile(condition, expr.Env(env))
	if err != nil {
		return DecisionDefer, 0.0, fmt.Sprintf("condition %q did not compile: %v", condition, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return DecisionDefer, 0.0, fmt.Sprintf("condition %q did not evaluate: %v", condition, err)
	}
	if isTruthy(out) {
		return DecisionProceed, 1.0, fmt.Sprintf("condition %q held", condition)
	}
	return DecisionDefer, 0.0, fmt.Sprintf("condition %q did not hold", condition)
}

// estimateRuleConfidence scans context text for confidence markers. This is
// the deliberately cheap strategy: no provider call, just keywords.
func estimateRuleConfidence(text string) float64 {
	lower := strings.ToLower(text)
	conf := 0.5
	if strings.Contains(lower, "high confidence") {
		conf += 0.3
	}
	if strings.Contains(lower, "low confidence") {
		conf -= 0.3
	}
	if strings.Contains(lower, "verified") || strings.Contains(lower, "confirmed") {
		conf += 0.1
	}
	if strings.Contains(lower, "uncertain") || strings.Contains(lower, "unclear") {
		conf -= 0.2
	}
	return reasoning.Normalize(conf)
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
