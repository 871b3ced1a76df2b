package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OllamaProvider talks to a local or remote Ollama server.
type OllamaProvider struct {
	baseProvider
}

// NewOllamaProvider creates an Ollama provider.
func NewOllamaProvider(cfg *Config) *OllamaProvider {
	return &OllamaProvider{
		baseProvider: newBaseProvider(cfg, "ollama"),
	}
}

// Available checks that the server answers and has at least one model
// pulled. An endpoint with zero models cannot serve as a backend.
func (p *OllamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}

	return len(tags.Models) > 0
}

// Generate sends one non-streaming chat request.
func (p *OllamaProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	wire := ollamaRequest{
		Model:  req.Model,
		Stream: false,
	}
	if wire.Model == "" {
		wire.Model = p.config.Model
	}

	if req.System != "" {
		wire.Messages = append(wire.Messages, ollamaMessage{
			Role:    RoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		wire.Messages = append(wire.Messages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	wire.Options.Temperature = req.Temperature
	if wire.Options.Temperature == 0 {
		wire.Options.Temperature = p.config.Temperature
	}
	wire.Options.NumPredict = req.MaxTokens
	if wire.Options.NumPredict == 0 {
		wire.Options.NumPredict = p.config.MaxTokens
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := readLimitedBody(resp.Body, maxErrorBody)
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, msg)
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Result{
		Content: parsed.Message.Content,
		Meta: Meta{
			Provider:       "ollama",
			Model:          parsed.Model,
			TokensUsed:     parsed.PromptEvalCount + parsed.EvalCount,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			FinishReason:   parsed.DoneReason,
		},
	}, nil
}

// Ollama wire types.
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}
