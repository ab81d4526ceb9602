package capability

import (
	"strings"
	"time"

	"github.com/soyeon/reflow/internal/reflow"
)

// staticProfile is a conservative capability guess keyed by model-name
// substring, used when empirical probing is unavailable.
type staticProfile struct {
	reasoning        bool
	structuredOutput bool
	maxTokens        int
}

var staticTable = []struct {
	match   string
	profile staticProfile
}{
	{"gpt-4", staticProfile{reasoning: true, structuredOutput: true, maxTokens: 128000}},
	{"gpt-3.5", staticProfile{reasoning: true, structuredOutput: false, maxTokens: 16000}},
	{"claude", staticProfile{reasoning: true, structuredOutput: true, maxTokens: 200000}},
	{"gemini", staticProfile{reasoning: true, structuredOutput: true, maxTokens: 128000}},
	{"llama", staticProfile{reasoning: true, structuredOutput: false, maxTokens: 8000}},
	{"mistral", staticProfile{reasoning: true, structuredOutput: false, maxTokens: 32000}},
}

// fallbackCapabilities builds a record from the static table. Confidence
// support is pinned at 0.5: we never claim empirical certainty we do not
// have.
func fallbackCapabilities(modelID string, advertisedMaxTokens int) *reflow.ReasoningCapabilities {
	lower := strings.ToLower(modelID)
	profile := staticProfile{maxTokens: 4000} // unknown model default
	for _, entry := range staticTable {
		if strings.Contains(lower, entry.match) {
			profile = entry.profile
			break
		}
	}
	maxTokens := profile.maxTokens
	if advertisedMaxTokens > 0 {
		maxTokens = advertisedMaxTokens
	}

	caps := &reflow.ReasoningCapabilities{
		Model:             modelID,
		Reasoning:         profile.reasoning,
		StructuredOutput:  profile.structuredOutput,
		FunctionCalling:   false,
		LongContext:       contextScore(maxTokens) > supportThreshold,
		ConfidenceSupport: 0.5,
		MaxTokens:         maxTokens,
		DetectedAt:        time.Now(),
		FromFallback:      true,
	}
	caps.Patterns = supportedPatterns(caps.Reasoning)
	return caps
}
