// Package capability empirically probes what an LLM model actually supports
// rather than trusting its marketing: a reasoning-format probe and a
// structured-output probe, scored by field conformance.
package capability

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soyeon/reflow/internal/provider"
	"github.com/soyeon/reflow/internal/reasoning"
	"github.com/soyeon/reflow/internal/reflow"
)

// supportThreshold is the probe score above which a capability counts as
// supported.
const supportThreshold = 0.7

// Detector probes providers and caches one ReasoningCapabilities record per
// model id. Detection is idempotent: repeated calls for the same id return
// the cached record without re-probing, and concurrent first calls collapse
// into a single probe round.
type Detector struct {
	providers *provider.Registry

	mu    sync.RWMutex
	cache map[string]*reflow.ReasoningCapabilities
	group singleflight.Group
}

func NewDetector(providers *provider.Registry) *Detector {
	return &Detector{
		providers: providers,
		cache:     make(map[string]*reflow.ReasoningCapabilities),
	}
}

// GetModelCapabilities returns the capability record for modelID
// ("provider/model"), probing on first use. Probe failures never surface as
// errors: the static per-model table answers instead, at confidence 0.5.
func (d *Detector) GetModelCapabilities(ctx context.Context, modelID string) (*reflow.ReasoningCapabilities, error) {
	d.mu.RLock()
	cached, ok := d.cache[modelID]
	d.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := d.group.Do(modelID, func() (any, error) {
		// Re-check under the flight: another caller may have filled the
		// cache between our read and the flight start.
		d.mu.RLock()
		cached, ok := d.cache[modelID]
		d.mu.RUnlock()
		if ok {
			return cached, nil
		}

		caps := d.probe(ctx, modelID)
		d.mu.Lock()
		d.cache[modelID] = caps
		d.mu.Unlock()
		return caps, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*reflow.ReasoningCapabilities), nil
}

// Invalidate drops the cached record for a model id, forcing a re-probe on
// next use.
func (d *Detector) Invalidate(modelID string) {
	d.mu.Lock()
	delete(d.cache, modelID)
	d.mu.Unlock()
}

func (d *Detector) probe(ctx context.Context, modelID string) *reflow.ReasoningCapabilities {
	prov, model, err := d.providers.Resolve(modelID)
	if err != nil {
		slog.Warn("capability probe skipped, unresolvable model", "model_id", modelID, "err", err)
		return fallbackCapabilities(modelID, 0)
	}

	maxTokens := prov.Capabilities().MaxContextLength

	reasoningScore, rErr := d.probeReasoning(ctx, prov, model)
	structuredScore, sErr := d.probeStructuredOutput(ctx, prov, model)
	if rErr != nil || sErr != nil {
		slog.Warn("capability probe failed, using static table",
			"model_id", modelID, "reasoning_err", rErr, "structured_err", sErr)
		return fallbackCapabilities(modelID, maxTokens)
	}

	caps := &reflow.ReasoningCapabilities{
		Model:             modelID,
		Reasoning:         reasoningScore > supportThreshold,
		StructuredOutput:  structuredScore > supportThreshold,
		FunctionCalling:   false, // no probe implemented yet; contract reserved
		LongContext:       contextScore(maxTokens) > supportThreshold,
		ConfidenceSupport: reasoningScore,
		MaxTokens:         maxTokens,
		DetectedAt:        time.Now(),
	}
	caps.Patterns = supportedPatterns(caps.Reasoning)

	slog.Info("capability probe complete", "model_id", modelID,
		"reasoning", reasoningScore, "structured", structuredScore,
		"context_tier", contextScore(maxTokens))
	return caps
}

var (
	probeDecision  = regexp.MustCompile(`(?i)decision[:\s]+(proceed|defer|escalate)`)
	probeReasonTxt = regexp.MustCompile(`(?i)reasoning[:\s]+(\S.*)`)
)

// probeReasoning sends a fixed low-confidence scenario and scores the reply
// by presence and correctness of the CONFIDENCE / DECISION / REASONING
// fields, weighted 0.4 / 0.3 / 0.3.
func (d *Detector) probeReasoning(ctx context.Context, prov provider.Provider, model string) (float64, error) {
	const prompt = `Scenario: an automated agent has retrieved only fragmentary, possibly
outdated information about a customer's billing dispute and must decide
whether to issue a refund without human review.

Assess the situation and reply in exactly this format:
CONFIDENCE: <0-100>
DECISION: <proceed|defer|escalate>
REASONING: <one or two sentences>`

	resp, err := prov.Chat(ctx, &provider.ChatRequest{
		Model:    model,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: prompt}},
	})
	if err != nil {
		return 0, err
	}

	score := 0.0
	if _, ok := reasoning.ExtractConfidence(resp.Content); ok {
		score += 0.4
	}
	if probeDecision.MatchString(resp.Content) {
		score += 0.3
	}
	if m := probeReasonTxt.FindStringSubmatch(resp.Content); m != nil && strings.TrimSpace(m[1]) != "" {
		score += 0.3
	}
	return score, nil
}

// probeStructuredOutput asks for a JSON object and scores schema
// conformance of the confidence / decision / factors fields.
func (d *Detector) probeStructuredOutput(ctx context.Context, prov provider.Provider, model string) (float64, error) {
	const prompt = `Return ONLY a JSON object (no prose, no code fences) describing whether an
agent should deploy a change given failing canary metrics:
{"confidence": <number 0-1>, "decision": "<proceed|defer|escalate>", "factors": ["<string>", ...]}`

	resp, err := prov.Chat(ctx, &provider.ChatRequest{
		Model:    model,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: prompt}},
	})
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Confidence *float64 `json:"confidence"`
		Decision   string   `json:"decision"`
		Factors    []string `json:"factors"`
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &parsed); err != nil {
		return 0, nil // replied, but not with parseable JSON
	}

	score := 0.0
	if parsed.Confidence != nil && *parsed.Confidence >= 0 && *parsed.Confidence <= 1 {
		score += 0.4
	}
	switch strings.ToLower(parsed.Decision) {
	case "proceed", "defer", "escalate":
		score += 0.3
	}
	if len(parsed.Factors) > 0 {
		score += 0.3
	}
	return score, nil
}

// contextScore tiers the advertised context window.
func contextScore(maxTokens int) float64 {
	switch {
	case maxTokens > 32000:
		return 1.0
	case maxTokens > 8000:
		return 0.8
	case maxTokens > 4000:
		return 0.6
	default:
		return 0.4
	}
}

func supportedPatterns(reasoningOK bool) []string {
	if reasoningOK {
		return []string{
			string(reasoning.PatternCoT),
			string(reasoning.PatternReAct),
			string(reasoning.PatternToT),
			string(reasoning.PatternBasic),
		}
	}
	return []string{string(reasoning.PatternBasic)}
}

// stripFences removes a surrounding markdown code fence, which many models
// add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
