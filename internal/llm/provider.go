// Package llm abstracts the response generation backend. The engine
// depends only on the Provider interface; adapters exist for the OpenAI
// chat completions API (and compatible endpoints), Ollama, and Anthropic,
// plus a deterministic stub for tests and offline development.
//
// Providers never retry and never cache. A failed call returns the error
// untouched so the caller can decide what a generation failure means.
package llm

import (
	"context"
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of an upstream error response gets read back
// into the returned error.
const maxErrorBody = 1 << 20

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider generates persona responses.
type Provider interface {
	// Generate produces one response for the request.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Name returns the provider identifier.
	Name() string

	// Available reports whether the provider is configured well enough to
	// try a call.
	Available() bool
}

// Request is a single generation call.
type Request struct {
	// Model overrides the provider's configured default when set.
	Model string `json:"model,omitempty"`

	// System is the persona prompt assembled by the engine.
	System string `json:"system,omitempty"`

	// Messages is the conversation, oldest first.
	Messages []Message `json:"messages"`

	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is what a provider produced for one request.
type Result struct {
	// Content is the response text.
	Content string `json:"content"`

	// MoodDelta is the mood shift the backend attributed to this exchange,
	// when it reported one. Nil means no claim either way.
	MoodDelta *int `json:"moodDelta,omitempty"`

	// SuggestedActions are optional follow-ups surfaced to the client.
	SuggestedActions []string `json:"suggestedActions,omitempty"`

	// Confidence is in [0,1]; zero when the backend reports none.
	Confidence float64 `json:"confidence,omitempty"`

	Meta Meta `json:"meta"`
}

// Meta describes how a result was produced.
type Meta struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	TokensUsed     int    `json:"tokensUsed,omitempty"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
	FinishReason   string `json:"finishReason,omitempty"`
}

// Config holds the settings one adapter needs.
type Config struct {
	// Name identifies the provider (openai, ollama, anthropic, stub).
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey authenticates the call where the provider wants one.
	APIKey string

	// Model is the default model when a request does not pick one.
	Model string

	// MaxTokens is the default response length bound.
	MaxTokens int

	// Temperature is the default sampling temperature.
	Temperature float64

	// Timeout bounds one HTTP call end to end.
	Timeout time.Duration
}

// DefaultConfig returns the stock settings for a named provider.
func DefaultConfig(name string) *Config {
	switch name {
	case "openai":
		return &Config{
			Name:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		}
	case "ollama":
		return &Config{
			Name:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3.2",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     2 * time.Minute,
		}
	case "anthropic":
		return &Config{
			Name:        "anthropic",
			Endpoint:    "https://api.anthropic.com",
			Model:       "claude-3-5-sonnet-20241022",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		}
	default:
		return &Config{
			Name:        name,
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		}
	}
}

// baseProvider carries the pieces every HTTP-backed adapter shares.
type baseProvider struct {
	config *Config
	client *http.Client
}

func newBaseProvider(cfg *Config, name string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(name)
	}

	defaults := DefaultConfig(name)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = name

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (b *baseProvider) Name() string {
	return b.config.Name
}

// Available checks that an API key is configured.
func (b *baseProvider) Available() bool {
	return b.config.APIKey != ""
}

// readLimitedBody reads at most maxBytes from r. Error responses pass
// through here so a misbehaving upstream cannot balloon memory.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}
