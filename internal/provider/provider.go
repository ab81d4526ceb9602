package provider

import (
	"context"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Content   string `json:"content"`
	Usage     Usage  `json:"usage"`
	ModelUsed string `json:"model_used"`
}

// Capabilities is what a provider advertises about itself, as opposed to
// what the capability detector empirically verifies.
type Capabilities struct {
	SupportsStreaming bool `json:"supports_streaming"`
	MaxContextLength  int  `json:"max_context_length"`
}

// Provider is the LLM backend contract. The engine treats providers as
// interchangeable behind this interface.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Capabilities() Capabilities
}

// ParseModelID splits a "provider/model" identifier.
func ParseModelID(modelID string) (providerName, modelName string, err error) {
	parts := strings.SplitN(modelID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model ID %q: expected format 'provider/model'", modelID)
	}
	return parts[0], parts[1], nil
}
