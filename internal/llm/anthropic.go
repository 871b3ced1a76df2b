package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AnthropicProvider talks to the Anthropic messages API.
type AnthropicProvider struct {
	baseProvider
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(cfg *Config) *AnthropicProvider {
	return &AnthropicProvider{
		baseProvider: newBaseProvider(cfg, "anthropic"),
	}
}

// Generate sends one messages request.
func (p *AnthropicProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}

	start := time.Now()

	wire := anthropicRequest{Model: req.Model}
	if wire.Model == "" {
		wire.Model = p.config.Model
	}

	// Anthropic takes the system prompt as a top-level field, not a
	// message.
	wire.System = req.System
	for _, msg := range req.Messages {
		wire.Messages = append(wire.Messages, anthropicMessage{
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

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := readLimitedBody(resp.Body, maxErrorBody)
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, msg)
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var content strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Result{
		Content: content.String(),
		Meta: Meta{
			Provider:       "anthropic",
			Model:          parsed.Model,
			TokensUsed:     parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			FinishReason:   parsed.StopReason,
		},
	}, nil
}

// Anthropic wire types.
type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
