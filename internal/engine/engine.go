// Package engine orchestrates persona responses: fingerprint the
// request, consult the cache, fall through to the generation provider,
// and hand mood bookkeeping to the event bus so the caller never waits
// on it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/drift"
	"github.com/praxislabs/praxis/internal/fingerprint"
	"github.com/praxislabs/praxis/internal/llm"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
	"github.com/praxislabs/praxis/internal/respcache"
	"github.com/praxislabs/praxis/internal/tone"
)

// Diagnostic sources.
const (
	SourceCacheHit  = "cache-hit"
	SourceGenerated = "generated"
)

// defaultWindowDays is the analytics window when neither the caller nor
// the config picks one.
const defaultWindowDays = 7

// Cache defaults, matching the stock config.
const (
	defaultCacheEntries = 500
	defaultCacheTTL     = 15 * time.Minute
)

// Request is one student message addressed to a persona.
type Request struct {
	PersonaID      string `json:"personaId"`
	ProjectID      string `json:"projectId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`

	Message string        `json:"message"`
	History []llm.Message `json:"history,omitempty"`

	// Generation knobs. Zero values fall back to provider defaults.
	// These feed the cache fingerprint along with the persona, project,
	// message, and history; ConversationID and the mood fields below
	// deliberately do not.
	Model       string         `json:"model,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"maxTokens,omitempty"`
	Constraints map[string]any `json:"constraints,omitempty"`

	// UserMood is the student's mood when the platform knows it. It only
	// steers the tone adaptation.
	UserMood *int `json:"userMood,omitempty"`
	// MoodDelta is an explicit persona mood shift requested by the
	// platform, e.g. after a missed milestone. It wins over any delta the
	// provider reports.
	MoodDelta *int `json:"moodDelta,omitempty"`
}

func (r *Request) validate() error {
	if r.PersonaID == "" {
		return &ValidationError{Field: "personaId", Reason: "is required"}
	}
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "must not be blank"}
	}
	return nil
}

// Response is what the engine hands back for one message.
type Response struct {
	PersonaID        string           `json:"personaId"`
	Content          string           `json:"content"`
	Confidence       float64          `json:"confidence,omitempty"`
	SuggestedActions []string         `json:"suggestedActions,omitempty"`
	Adaptation       *tone.Adaptation `json:"adaptation"`
	Diagnostics      Diagnostics      `json:"diagnostics"`
}

// Diagnostics explains where a response came from. The adaptation is
// recomputed on every call even for cache hits, so Source marks only the
// provenance of Content.
type Diagnostics struct {
	Source      string    `json:"source"`
	Key         string    `json:"key"`
	Provider    string    `json:"provider,omitempty"`
	Model       string    `json:"model,omitempty"`
	TokensUsed  int       `json:"tokensUsed,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	MessageKind tone.Kind `json:"messageKind"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// cachedResult is the slice of a generation worth keeping. Adaptation
// and diagnostics are derived per call and never stored.
type cachedResult struct {
	Content          string
	Confidence       float64
	SuggestedActions []string
	Provider         string
	Model            string
	TokensUsed       int
	GeneratedAt      time.Time
}

// Options wires an Engine. Personas, Ledger, and Provider are required;
// the rest degrade gracefully when absent. The engine owns its response
// cache, sized here.
type Options struct {
	Personas persona.Store
	Ledger   mood.Ledger
	Provider llm.Provider
	Bus      *bus.Bus

	// CacheEntries and CacheTTL size the response cache; zero values take
	// the defaults.
	CacheEntries int
	CacheTTL     time.Duration

	// Classifier defaults to the lexical classifier.
	Classifier tone.Classifier
	// Corrector enables corrective action; nil leaves Correct unavailable
	// (memory-backed runs).
	Corrector *drift.Corrector
	// WindowDays is the default analytics window.
	WindowDays int
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Engine is the response pipeline plus the consistency surfaces built on
// the same stores.
type Engine struct {
	personas   persona.Store
	ledger     mood.Ledger
	cache      *respcache.Cache[cachedResult]
	provider   llm.Provider
	bus        *bus.Bus
	classifier tone.Classifier
	corrector  *drift.Corrector
	windowDays int
	now        func() time.Time
}

// New assembles an Engine from Options.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		personas:   opts.Personas,
		ledger:     opts.Ledger,
		provider:   opts.Provider,
		bus:        opts.Bus,
		classifier: opts.Classifier,
		corrector:  opts.Corrector,
		windowDays: opts.WindowDays,
		now:        opts.Now,
	}
	if e.classifier == nil {
		e.classifier = tone.NewLexicalClassifier()
	}
	if e.windowDays <= 0 {
		e.windowDays = defaultWindowDays
	}
	if e.now == nil {
		e.now = time.Now
	}

	entries := opts.CacheEntries
	if entries <= 0 {
		entries = defaultCacheEntries
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cache, err := respcache.NewWithClock[cachedResult](entries, ttl, e.now)
	if err != nil {
		return nil, fmt.Errorf("build response cache: %w", err)
	}
	e.cache = cache
	return e, nil
}

// Respond produces the persona's reply to one message.
//
// The pipeline: validate, load the persona, compute the tone adaptation,
// fingerprint the request, and try the cache. A hit returns the stored
// content with Source "cache-hit" and no provider call. A miss generates;
// on failure nothing is cached and no observation is appended, so the
// error propagates from a clean slate. On success the result is cached
// and any mood shift is published to the bus as a command for the
// bookkeeper, fire-and-forget. Cancellation detected before that
// mutation point writes neither.
func (e *Engine) Respond(ctx context.Context, req *Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	p, err := e.personas.Get(ctx, req.PersonaID)
	if err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}

	kind := e.classifier.Classify(req.Message)
	adaptation := tone.Calculate(p, tone.Context{MessageKind: kind, UserMood: req.UserMood})

	key, err := fingerprint.Key(fingerprint.Request{
		PersonaID:        req.PersonaID,
		ProjectID:        req.ProjectID,
		UserMessage:      req.Message,
		PreviousMessages: fingerprintHistory(req.History),
		Constraints:      req.Constraints,
		Model:            req.Model,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("fingerprint request: %w", err)
	}

	start := e.now()

	if hit, ok := e.cache.Get(key); ok {
		e.publishCacheProbe(p.ID, key, true)
		resp := e.assemble(p.ID, hit, adaptation, kind, key, SourceCacheHit, start)
		e.publishResponse(resp)
		log.Debug().Str("persona", p.ID).Str("key", key).Msg("served from cache")
		return resp, nil
	}
	e.publishCacheProbe(p.ID, key, false)

	result, err := e.provider.Generate(ctx, &llm.Request{
		Model:       req.Model,
		System:      buildSystemPrompt(p, adaptation),
		Messages:    append(append([]llm.Message{}, req.History...), llm.Message{Role: llm.RoleUser, Content: req.Message}),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		uerr := &UpstreamError{Provider: e.provider.Name(), Err: err}
		e.publishFailure(p.ID, uerr)
		return nil, uerr
	}

	content := strings.TrimSpace(result.Content)
	if content == "" {
		uerr := &UpstreamError{Provider: e.provider.Name(), Err: errors.New("provider returned empty content")}
		e.publishFailure(p.ID, uerr)
		return nil, uerr
	}

	// Mutation point. A caller that gave up gets neither a cache entry
	// nor a mood observation.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	providerName := result.Meta.Provider
	if providerName == "" {
		providerName = e.provider.Name()
	}
	stored := cachedResult{
		Content:          content,
		Confidence:       result.Confidence,
		SuggestedActions: result.SuggestedActions,
		Provider:         providerName,
		Model:            result.Meta.Model,
		TokensUsed:       result.Meta.TokensUsed,
		GeneratedAt:      e.now(),
	}
	e.cache.Set(key, stored)
	e.requestMoodUpdate(p, req, result)

	resp := e.assemble(p.ID, stored, adaptation, kind, key, SourceGenerated, start)
	e.publishResponse(resp)
	log.Debug().
		Str("persona", p.ID).
		Str("provider", stored.Provider).
		Int64("duration_ms", resp.Diagnostics.DurationMs).
		Msg("generated response")
	return resp, nil
}

func (e *Engine) assemble(personaID string, stored cachedResult, adaptation *tone.Adaptation, kind tone.Kind, key, source string, start time.Time) *Response {
	return &Response{
		PersonaID:        personaID,
		Content:          stored.Content,
		Confidence:       stored.Confidence,
		SuggestedActions: stored.SuggestedActions,
		Adaptation:       adaptation,
		Diagnostics: Diagnostics{
			Source:      source,
			Key:         key,
			Provider:    stored.Provider,
			Model:       stored.Model,
			TokensUsed:  stored.TokensUsed,
			DurationMs:  e.now().Sub(start).Milliseconds(),
			MessageKind: kind,
			GeneratedAt: stored.GeneratedAt,
		},
	}
}

// requestMoodUpdate publishes the mood-observe command when the exchange
// moved the persona's mood. An explicit request delta outranks one the
// provider inferred. Publishing is the end of the engine's involvement;
// the bookkeeper owns the append.
func (e *Engine) requestMoodUpdate(p *persona.Persona, req *Request, result *llm.Result) {
	var delta int
	switch {
	case req.MoodDelta != nil:
		delta = *req.MoodDelta
	case result.MoodDelta != nil:
		delta = *result.MoodDelta
	}
	if delta == 0 || e.bus == nil {
		return
	}

	ev := bus.NewEvent(bus.EventMoodObserve, p.ID)
	ev.MoodValue = clampMood(p.CurrentMood + delta)
	ev.MoodDelta = delta
	ev.Reason = fmt.Sprintf("conversation shifted mood by %+d", delta)
	ev.Trigger = string(mood.TriggerConversation)
	ev.ConversationID = req.ConversationID
	if err := e.bus.Publish(ev); err != nil {
		log.Warn().Err(err).Str("persona", p.ID).Msg("mood update not published; persona state will lag")
	}
}

func (e *Engine) publishCacheProbe(personaID, key string, hit bool) {
	if e.bus == nil {
		return
	}
	eventType := bus.EventCacheMiss
	if hit {
		eventType = bus.EventCacheHit
	}
	ev := bus.NewEvent(eventType, personaID)
	ev.Key = key
	_ = e.bus.Publish(ev)
}

func (e *Engine) publishResponse(resp *Response) {
	if e.bus == nil {
		return
	}
	ev := bus.NewEvent(bus.EventResponseGenerated, resp.PersonaID)
	ev.Key = resp.Diagnostics.Key
	ev.Provider = resp.Diagnostics.Provider
	ev.Model = resp.Diagnostics.Model
	ev.Cached = resp.Diagnostics.Source == SourceCacheHit
	ev.DurationMs = resp.Diagnostics.DurationMs
	ev.Confidence = resp.Confidence
	_ = e.bus.Publish(ev)
}

func (e *Engine) publishFailure(personaID string, uerr *UpstreamError) {
	log.Error().Err(uerr.Err).Str("persona", personaID).Str("provider", uerr.Provider).Msg("generation failed")
	if e.bus == nil {
		return
	}
	ev := bus.NewEvent(bus.EventGenerationFailed, personaID)
	ev.Provider = uerr.Provider
	ev.Error = uerr.Err.Error()
	_ = e.bus.Publish(ev)
}

// CacheStats reports the response cache counters.
func (e *Engine) CacheStats() respcache.Stats {
	return e.cache.Stats()
}

// InvalidateResponses drops every cached response. Persona mutations and
// corrections call this; entries were generated under state that no
// longer exists.
func (e *Engine) InvalidateResponses() {
	e.cache.Purge()
}

func fingerprintHistory(history []llm.Message) []fingerprint.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]fingerprint.Message, len(history))
	for i, m := range history {
		out[i] = fingerprint.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func clampMood(v int) int {
	if v > mood.MaxValue {
		return mood.MaxValue
	}
	if v < mood.MinValue {
		return mood.MinValue
	}
	return v
}
