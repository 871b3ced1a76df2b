// Package fingerprint derives deterministic cache keys for persona
// generation requests.
//
// Two requests that are semantically identical after normalization must map
// to the same key, so the response cache can serve one's response for the
// other. The key is a BLAKE2b-256 digest over a canonical JSON encoding of
// the normalized request; struct fields marshal in declaration order and
// map keys sort, so the byte stream is stable across processes.
package fingerprint

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Generation parameter defaults, applied when a request leaves them unset.
// A zero value counts as unset, matching how provider configs merge.
const (
	DefaultModel       = "gpt-4"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// historyLimit is how many trailing history messages participate in the key.
// Older context does not meaningfully change a persona's next response, and
// including it would make cache hits nearly impossible.
const historyLimit = 10

// Message is one entry of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything that identifies a generation request for
// caching purposes. The persona's system prompt deliberately does not
// appear: it is derived from persona state, and cache entries must not be
// split by prompt-template changes.
type Request struct {
	PersonaID        string
	ProjectID        string
	UserMessage      string
	PreviousMessages []Message
	Constraints      map[string]any
	Model            string
	Temperature      float64
	MaxTokens        int
}

// normalized is the canonical wire form the digest is computed over.
// Field order here is part of the key format; do not reorder.
type normalized struct {
	PersonaID   string         `json:"personaId"`
	ProjectID   string         `json:"projectId"`
	UserMessage string         `json:"userMessage"`
	History     []Message      `json:"history"`
	Constraints map[string]any `json:"constraints"`
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"maxTokens"`
}

// Normalize returns the request in canonical form: trimmed user message,
// history truncated to the trailing window, defaults filled in, and nil
// collections replaced with empty ones.
func Normalize(req Request) Request {
	out := req
	out.UserMessage = strings.TrimSpace(req.UserMessage)

	history := req.PreviousMessages
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	out.PreviousMessages = make([]Message, len(history))
	copy(out.PreviousMessages, history)

	if out.Constraints == nil {
		out.Constraints = map[string]any{}
	}
	if out.Model == "" {
		out.Model = DefaultModel
	}
	if out.Temperature == 0 {
		out.Temperature = DefaultTemperature
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	return out
}

// Key normalizes the request and returns its cache key as lowercase hex.
func Key(req Request) (string, error) {
	n := Normalize(req)
	canonical := normalized{
		PersonaID:   n.PersonaID,
		ProjectID:   n.ProjectID,
		UserMessage: n.UserMessage,
		History:     n.PreviousMessages,
		Constraints: n.Constraints,
		Model:       n.Model,
		Temperature: n.Temperature,
		MaxTokens:   n.MaxTokens,
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("marshal canonical request: %w", err)
	}

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
