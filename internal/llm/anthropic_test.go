package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerate(t *testing.T) {
	var captured anthropicRequest
	var apiKey, version string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		apiKey = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"content": [
				{"type": "text", "text": "Two things stand out. "},
				{"type": "text", "text": "Scope and sequencing."}
			],
			"usage": {"input_tokens": 25, "output_tokens": 15}
		}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider(&Config{Endpoint: server.URL, APIKey: "sk-ant-test"})
	res, err := p.Generate(context.Background(), &Request{
		System: "You are Priya Sharma, a nonprofit program manager.",
		Messages: []Message{
			{Role: RoleUser, Content: "What worries you about this plan?"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "sk-ant-test", apiKey)
	require.Equal(t, "2023-06-01", version)
	require.Equal(t, "You are Priya Sharma, a nonprofit program manager.", captured.System,
		"system prompt travels as a top-level field")
	require.Len(t, captured.Messages, 1)

	require.Equal(t, "Two things stand out. Scope and sequencing.", res.Content,
		"text blocks concatenate")
	require.Equal(t, "anthropic", res.Meta.Provider)
	require.Equal(t, 40, res.Meta.TokensUsed)
	require.Equal(t, "end_turn", res.Meta.FinishReason)
}

func TestAnthropicGenerateNoKey(t *testing.T) {
	p := NewAnthropicProvider(&Config{Endpoint: "http://127.0.0.1:0"})
	_, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not configured")
}

func TestAnthropicGenerateUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": {"type": "overloaded_error"}}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider(&Config{Endpoint: server.URL, APIKey: "sk-ant-test"})
	_, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
	require.Contains(t, err.Error(), "overloaded_error")
}
