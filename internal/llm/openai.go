package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIProvider talks to the OpenAI chat completions API. Any
// OpenAI-compatible endpoint works by pointing Endpoint elsewhere.
type OpenAIProvider struct {
	baseProvider
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(cfg *Config) *OpenAIProvider {
	return &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, "openai"),
	}
}

// Generate sends one chat completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}

	start := time.Now()

	wire := openAIRequest{Model: req.Model}
	if wire.Model == "" {
		wire.Model = p.config.Model
	}

	if req.System != "" {
		wire.Messages = append(wire.Messages, openAIMessage{
			Role:    RoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		wire.Messages = append(wire.Messages, openAIMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	wire.MaxTokens = req.MaxTokens
	if wire.MaxTokens == 0 {
		wire.MaxTokens = p.config.MaxTokens
	}
	wire.Temperature = req.Temperature
	if wire.Temperature == 0 {
		wire.Temperature = p.config.Temperature
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := readLimitedBody(resp.Body, maxErrorBody)
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, msg)
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := parsed.Choices[0]
	return &Result{
		Content: choice.Message.Content,
		Meta: Meta{
			Provider:       "openai",
			Model:          parsed.Model,
			TokensUsed:     parsed.Usage.TotalTokens,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			FinishReason:   choice.FinishReason,
		},
	}, nil
}

// OpenAI wire types.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
