package reflow

import "time"

// ReasoningCapabilities is the per-model record produced by a capability
// probe round. Cached in memory by model id until process restart.
type ReasoningCapabilities struct {
	Model             string    `json:"model"`
	Reasoning         bool      `json:"reasoning"`
	StructuredOutput  bool      `json:"structured_output"`
	FunctionCalling   bool      `json:"function_calling"`
	LongContext       bool      `json:"long_context"`
	ConfidenceSupport float64   `json:"confidence_support"`
	Patterns          []string  `json:"patterns"`
	MaxTokens         int       `json:"max_tokens"`
	DetectedAt        time.Time `json:"detected_at"`
	// FromFallback is set when probing failed and the static per-model
	// table supplied these values instead.
	FromFallback bool `json:"from_fallback,omitempty"`
}
