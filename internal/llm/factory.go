package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/praxislabs/praxis/internal/config"
)

// New builds the provider the configuration selects. API keys left empty
// in config fall back to the provider's standard environment variable.
func New(gen config.GenerationConfig) (Provider, error) {
	name := gen.DefaultProvider
	if name == "" {
		name = "stub"
	}
	return NewByName(name, providerConfig(name, gen))
}

// NewByName builds a specific provider. A nil cfg means stock settings.
func NewByName(name string, cfg *Config) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "stub":
		return NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

func providerConfig(name string, gen config.GenerationConfig) *Config {
	pc, ok := gen.Providers[name]
	if !ok {
		return nil
	}

	apiKey := pc.APIKey
	if apiKey == "" {
		apiKey = apiKeyFromEnv(name)
	}

	return &Config{
		Name:     name,
		Endpoint: pc.Endpoint,
		APIKey:   apiKey,
		Model:    pc.Model,
		Timeout:  time.Duration(pc.TimeoutSec) * time.Second,
	}
}

func apiKeyFromEnv(name string) string {
	envVars := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
	}
	if v, ok := envVars[name]; ok {
		return os.Getenv(v)
	}
	return ""
}
