package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praxislabs/praxis/internal/config"
)

func TestNewByName(t *testing.T) {
	for _, name := range []string{"openai", "ollama", "anthropic", "stub"} {
		p, err := NewByName(name, nil)
		require.NoError(t, err, name)
		require.Equal(t, name, p.Name())
	}

	_, err := NewByName("palantir", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown provider")
}

func TestNewDefaultsToStub(t *testing.T) {
	p, err := New(config.GenerationConfig{})
	require.NoError(t, err)
	require.Equal(t, "stub", p.Name())
	require.True(t, p.Available())
}

func TestNewMapsProviderConfig(t *testing.T) {
	p, err := New(config.GenerationConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-live", Model: "gpt-4.1", TimeoutSec: 30},
		},
	})
	require.NoError(t, err)

	oa, ok := p.(*OpenAIProvider)
	require.True(t, ok)
	require.Equal(t, "sk-live", oa.config.APIKey)
	require.Equal(t, "gpt-4.1", oa.config.Model)
	require.Equal(t, 30*time.Second, oa.config.Timeout)
	require.Equal(t, "https://api.openai.com/v1", oa.config.Endpoint, "default endpoint fills in")
}

func TestNewAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	p, err := New(config.GenerationConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {Model: "gpt-4o-mini"},
		},
	})
	require.NoError(t, err)
	require.True(t, p.Available())
}

func TestDefaultConfig(t *testing.T) {
	oa := DefaultConfig("openai")
	require.Equal(t, "https://api.openai.com/v1", oa.Endpoint)
	require.NotEmpty(t, oa.Model)

	ol := DefaultConfig("ollama")
	require.Equal(t, "http://127.0.0.1:11434", ol.Endpoint)

	other := DefaultConfig("something-else")
	require.Equal(t, "something-else", other.Name)
	require.Empty(t, other.Endpoint)
	require.NotZero(t, other.Timeout)
}
