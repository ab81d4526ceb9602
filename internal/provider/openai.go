package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/soyeon/reflow/internal/reflow"
)

// OpenAIProvider speaks the OpenAI-compatible chat completions protocol.
// It is the single concrete adapter shipped with the engine; anything that
// exposes /chat/completions (OpenAI, Ollama, vLLM, LM Studio, ...) plugs in
// through it.
type OpenAIProvider struct {
	name             string
	baseURL          string
	apiKey           string
	maxContextLength int
	client           *http.Client
}

func NewOpenAIProvider(name, baseURL, apiKey string, maxContextLength int) *OpenAIProvider {
	if maxContextLength <= 0 {
		maxContextLength = 8192
	}
	return &OpenAIProvider{
		name:             name,
		baseURL:          baseURL,
		apiKey:           apiKey,
		maxContextLength: maxContextLength,
		client:           &http.Client{},
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{SupportsStreaming: false, MaxContextLength: p.maxContextLength}
}

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   false,
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &reflow.ProviderError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &reflow.ProviderError{
			Provider: p.name,
			Err:      fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody)),
		}
	}

	var apiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, &reflow.ProviderError{Provider: p.name, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(apiResp.Choices) == 0 {
		return nil, &reflow.ProviderError{Provider: p.name, Err: fmt.Errorf("no choices in response")}
	}

	model := apiResp.Model
	if model == "" {
		model = req.Model
	}
	return &ChatResponse{
		Content: apiResp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
		ModelUsed: model,
	}, nil
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
