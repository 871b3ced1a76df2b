package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/llm"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
	"github.com/praxislabs/praxis/internal/respcache"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	engine   *Engine
	stub     *llm.StubProvider
	bus      *bus.Bus
	personas *persona.MemoryStore
	ledger   *mood.MemoryLedger
	cache    *respcache.Cache[cachedResult]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := bus.New()
	t.Cleanup(func() { _ = b.Close() })

	f := &fixture{
		stub:     llm.NewStubProvider(),
		bus:      b,
		personas: persona.NewMemoryStore(),
		ledger:   mood.NewMemoryLedger(),
	}
	var err error
	f.engine, err = New(Options{
		Personas:     f.personas,
		Ledger:       f.ledger,
		Provider:     f.stub,
		Bus:          f.bus,
		CacheEntries: 64,
		CacheTTL:     time.Minute,
	})
	require.NoError(t, err)
	f.cache = f.engine.cache
	return f
}

func (f *fixture) seedPersona(t *testing.T, currentMood int) *persona.Persona {
	t.Helper()
	p := &persona.Persona{
		ID:         "mentor",
		Name:       "Maya Chen",
		Role:       "senior engineer",
		Background: "Fifteen years shipping backend systems.",
		Traits:     []string{"patient", "analytical", "supportive"},
		Values:     []string{"craftsmanship"},
		Style: persona.Style{
			Communication: persona.StyleCasual,
			Verbosity:     persona.VerbosityBalanced,
		},
		BaselineMood: 20,
		CurrentMood:  currentMood,
	}
	require.NoError(t, f.personas.Create(context.Background(), p))
	return p
}

// waitFor polls until cond holds or the deadline passes. Bus delivery is
// asynchronous, so assertions on its side effects need a little patience.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func intPtr(v int) *int { return &v }

func TestRespondGeneratesThenServesFromCache(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Script(&llm.Result{
		Content:          "Walk me through what the profiler showed first.",
		Confidence:       0.9,
		SuggestedActions: []string{"share the flame graph"},
	})

	req := &Request{
		PersonaID:      "mentor",
		ProjectID:      "proj-1",
		ConversationID: "conv-1",
		Message:        "Why is the import job slow?",
	}

	first, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, first.Diagnostics.Source)
	require.Equal(t, "Walk me through what the profiler showed first.", first.Content)
	require.Equal(t, 0.9, first.Confidence)
	require.Equal(t, []string{"share the flame graph"}, first.SuggestedActions)
	require.Equal(t, "stub", first.Diagnostics.Provider)
	require.NotEmpty(t, first.Diagnostics.Key)
	require.False(t, first.Diagnostics.GeneratedAt.IsZero())

	second, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceCacheHit, second.Diagnostics.Source)
	require.Equal(t, first.Content, second.Content)
	require.Equal(t, first.Diagnostics.Key, second.Diagnostics.Key)

	// The provider saw exactly one call; the second response came from
	// the cache.
	require.Len(t, f.stub.Calls(), 1)

	stats := f.engine.CacheStats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestRespondSendsPersonaPromptAndHistory(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Script(&llm.Result{Content: "Looks reasonable to me."})

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "I refactored the queue consumer."},
		{Role: llm.RoleAssistant, Content: "Good. What changed?"},
	}
	_, err := f.engine.Respond(context.Background(), &Request{
		PersonaID: "mentor",
		Message:   "Does the batching look right now?",
		History:   history,
	})
	require.NoError(t, err)

	calls := f.stub.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].System, "Maya Chen")
	require.Contains(t, calls[0].System, "senior engineer")
	require.Len(t, calls[0].Messages, 3)
	require.Equal(t, history[0], calls[0].Messages[0])
	require.Equal(t, llm.RoleUser, calls[0].Messages[2].Role)
	require.Equal(t, "Does the batching look right now?", calls[0].Messages[2].Content)
}

func TestRespondValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Respond(context.Background(), &Request{Message: "hello"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "personaId", verr.Field)

	_, err = f.engine.Respond(context.Background(), &Request{PersonaID: "mentor", Message: "   "})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "message", verr.Field)

	require.Empty(t, f.stub.Calls())
}

func TestRespondUnknownPersona(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Respond(context.Background(), &Request{PersonaID: "ghost", Message: "anyone there?"})
	require.ErrorIs(t, err, persona.ErrNotFound)
	require.Empty(t, f.stub.Calls())
}

func TestRespondProviderFailureCachesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Fail(errors.New("connection refused"))

	req := &Request{PersonaID: "mentor", Message: "Can you review this plan?", MoodDelta: intPtr(-10)}
	_, err := f.engine.Respond(context.Background(), req)

	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "stub", uerr.Provider)
	require.Zero(t, f.cache.Len())

	// Failure appended no observation either; a retry starts clean.
	obs, err := f.ledger.Query(context.Background(), mood.Query{PersonaID: "mentor"})
	require.NoError(t, err)
	require.Empty(t, obs)

	f.stub.Fail(nil).Script(&llm.Result{Content: "Plan looks workable."})
	resp, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, resp.Diagnostics.Source)
}

func TestRespondEmptyContentIsUpstreamError(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Script(&llm.Result{Content: "   \n"})

	_, err := f.engine.Respond(context.Background(), &Request{PersonaID: "mentor", Message: "thoughts?"})
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	require.Contains(t, uerr.Error(), "empty content")
	require.Zero(t, f.cache.Len())
}

// cancelingProvider cancels the request context mid-generation, modeling
// a caller that walked away while the backend was still working.
type cancelingProvider struct {
	cancel context.CancelFunc
	result *llm.Result
}

func (p *cancelingProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	p.cancel()
	return p.result, nil
}

func (p *cancelingProvider) Name() string    { return "canceling" }
func (p *cancelingProvider) Available() bool { return true }

func TestRespondCancellationWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.engine.provider = &cancelingProvider{
		cancel: cancel,
		result: &llm.Result{Content: "too late", MoodDelta: intPtr(-20)},
	}

	_, err := f.engine.Respond(ctx, &Request{PersonaID: "mentor", Message: "still there?"})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, f.cache.Len())

	obs, qerr := f.ledger.Query(context.Background(), mood.Query{PersonaID: "mentor"})
	require.NoError(t, qerr)
	require.Empty(t, obs)
}

func TestRespondMoodSideEffect(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)

	keeper := NewBookkeeper(f.bus, f.ledger, f.personas)
	keeper.Start()
	t.Cleanup(keeper.Stop)

	f.stub.Script(&llm.Result{Content: "That deadline slip is on all of us."})
	_, err := f.engine.Respond(context.Background(), &Request{
		PersonaID:      "mentor",
		ConversationID: "conv-9",
		Message:        "We missed the milestone.",
		MoodDelta:      intPtr(-15),
	})
	require.NoError(t, err)

	var got []*mood.Observation
	waitFor(t, func() bool {
		obs, qerr := f.ledger.Query(context.Background(), mood.Query{PersonaID: "mentor"})
		require.NoError(t, qerr)
		got = obs
		return len(got) == 1
	})

	require.Equal(t, 25, got[0].Value) // 40 - 15
	require.Equal(t, mood.TriggerConversation, got[0].Trigger.Type)
	require.Equal(t, "conv-9", got[0].Context.ConversationID)
	require.Contains(t, got[0].Reason, "-15")
}

func TestRespondProviderMoodDeltaClamps(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 95)

	keeper := NewBookkeeper(f.bus, f.ledger, f.personas)
	keeper.Start()
	t.Cleanup(keeper.Stop)

	// No explicit delta on the request, so the provider's wins; the
	// result would overflow the scale and must clamp.
	f.stub.Script(&llm.Result{Content: "This is fantastic news.", MoodDelta: intPtr(30)})
	_, err := f.engine.Respond(context.Background(), &Request{PersonaID: "mentor", Message: "We shipped early!"})
	require.NoError(t, err)

	waitFor(t, func() bool {
		v, ok := f.ledger.CurrentMood("mentor")
		return ok && v == mood.MaxValue
	})
}

func TestRespondCacheHitSkipsMoodUpdate(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)

	keeper := NewBookkeeper(f.bus, f.ledger, f.personas)
	keeper.Start()
	t.Cleanup(keeper.Stop)

	f.stub.Script(&llm.Result{Content: "Let's look at the error budget."})
	req := &Request{PersonaID: "mentor", Message: "The pager went off again.", MoodDelta: intPtr(-5)}

	_, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	waitFor(t, func() bool {
		obs, _ := f.ledger.Query(context.Background(), mood.Query{PersonaID: "mentor"})
		return len(obs) == 1
	})

	// Identical request hits the cache: stored content, no second
	// observation no matter what delta rides along.
	resp, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceCacheHit, resp.Diagnostics.Source)

	time.Sleep(50 * time.Millisecond)
	obs, err := f.ledger.Query(context.Background(), mood.Query{PersonaID: "mentor"})
	require.NoError(t, err)
	require.Len(t, obs, 1)
}

func TestRespondPublishesPipelineEvents(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Script(&llm.Result{Content: "Start with the integration tests."})

	var (
		mu   sync.Mutex
		seen []bus.Event
	)
	_ = f.bus.Subscribe(bus.AllEvents, func(e bus.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	req := &Request{PersonaID: "mentor", Message: "Where do I start testing?"}
	_, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	_, err = f.engine.Respond(context.Background(), req)
	require.NoError(t, err)

	types := func() map[bus.EventType]int {
		mu.Lock()
		defer mu.Unlock()
		counts := make(map[bus.EventType]int)
		for _, e := range seen {
			counts[e.Type]++
		}
		return counts
	}
	waitFor(t, func() bool {
		c := types()
		return c[bus.EventCacheMiss] == 1 && c[bus.EventCacheHit] == 1 && c[bus.EventResponseGenerated] == 2
	})

	mu.Lock()
	defer mu.Unlock()
	var cachedFlags []bool
	for _, e := range seen {
		if e.Type == bus.EventResponseGenerated {
			cachedFlags = append(cachedFlags, e.Cached)
		}
	}
	require.Equal(t, []bool{false, true}, cachedFlags)
}

func TestRespondAdaptationRecomputedOnCacheHit(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Script(&llm.Result{Content: "Ship it."})

	req := &Request{PersonaID: "mentor", Message: "Ready to merge?"}
	first, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 40, first.Adaptation.PersonaMood)

	// Mood collapses between calls. The cached content comes back, but
	// the adaptation reflects the persona as it is now.
	require.NoError(t, f.personas.SetMood(context.Background(), "mentor", 5))

	second, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceCacheHit, second.Diagnostics.Source)
	require.Equal(t, 5, second.Adaptation.PersonaMood)
	require.Less(t, second.Adaptation.Verbosity.Adjustment, first.Adaptation.Verbosity.Adjustment)
}

func TestInvalidateResponses(t *testing.T) {
	f := newFixture(t)
	f.seedPersona(t, 40)
	f.stub.Script(&llm.Result{Content: "One."}, &llm.Result{Content: "Two."})

	req := &Request{PersonaID: "mentor", Message: "What's next?"}
	_, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	f.engine.InvalidateResponses()
	require.Zero(t, f.cache.Len())

	resp, err := f.engine.Respond(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceGenerated, resp.Diagnostics.Source)
	require.Equal(t, "Two.", resp.Content)
}
