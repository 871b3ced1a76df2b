package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const openAIReply = `{
	"model": "gpt-4o-mini",
	"choices": [
		{"index": 0, "message": {"role": "assistant", "content": "Start with the bottleneck."}, "finish_reason": "stop"}
	],
	"usage": {"prompt_tokens": 42, "completion_tokens": 12, "total_tokens": 54}
}`

func TestOpenAIGenerate(t *testing.T) {
	var captured openAIRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openAIReply))
	}))
	defer server.Close()

	p := NewOpenAIProvider(&Config{Endpoint: server.URL, APIKey: "sk-test"})
	res, err := p.Generate(context.Background(), &Request{
		System: "You are Marcus Webb, a startup founder.",
		Messages: []Message{
			{Role: RoleUser, Content: "How do we scale this?"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "gpt-4o-mini", captured.Model, "config default model")
	require.Equal(t, 4096, captured.MaxTokens, "config default limit")
	require.Len(t, captured.Messages, 2)
	require.Equal(t, openAIMessage{Role: RoleSystem, Content: "You are Marcus Webb, a startup founder."}, captured.Messages[0])
	require.Equal(t, openAIMessage{Role: RoleUser, Content: "How do we scale this?"}, captured.Messages[1])

	require.Equal(t, "Start with the bottleneck.", res.Content)
	require.Equal(t, "openai", res.Meta.Provider)
	require.Equal(t, "gpt-4o-mini", res.Meta.Model)
	require.Equal(t, 54, res.Meta.TokensUsed)
	require.Equal(t, "stop", res.Meta.FinishReason)
}

func TestOpenAIGenerateModelOverride(t *testing.T) {
	var captured openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(openAIReply))
	}))
	defer server.Close()

	p := NewOpenAIProvider(&Config{Endpoint: server.URL, APIKey: "sk-test"})
	_, err := p.Generate(context.Background(), &Request{
		Model:     "gpt-4.1",
		MaxTokens: 256,
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "gpt-4.1", captured.Model)
	require.Equal(t, 256, captured.MaxTokens)
}

func TestOpenAIGenerateNoKey(t *testing.T) {
	p := NewOpenAIProvider(&Config{Endpoint: "http://127.0.0.1:0"})
	_, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not configured")
	require.False(t, p.Available())
}

func TestOpenAIGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(&Config{Endpoint: server.URL, APIKey: "sk-test"})
	_, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 429")
	require.Contains(t, err.Error(), "rate limited")
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "gpt-4o-mini", "choices": []}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(&Config{Endpoint: server.URL, APIKey: "sk-test"})
	_, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}
