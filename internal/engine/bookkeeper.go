package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/praxislabs/praxis/internal/bus"
	"github.com/praxislabs/praxis/internal/logging"
	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

// bookkeepTimeout bounds one ledger append. The response was already
// served when the bookkeeper runs, so a slow write must not pile up.
const bookkeepTimeout = 5 * time.Second

// moodSetter is implemented by persona stores that cannot learn the new
// mood from the ledger append itself. The SQLite pairing shares a
// transaction and never needs it.
type moodSetter interface {
	SetMood(ctx context.Context, id string, value int) error
}

// syncMood pushes a freshly appended mood into such stores.
func syncMood(ctx context.Context, personas persona.Store, id string, value int) {
	setter, ok := personas.(moodSetter)
	if !ok {
		return
	}
	if err := setter.SetMood(ctx, id, value); err != nil {
		log.Warn().Err(err).Str("persona", id).Msg("mood sync failed")
	}
}

// Bookkeeper turns mood-observe commands from the bus into ledger
// appends. It is the only writer on the conversation mood path, which
// keeps Respond free of ledger latency. A failed append logs a warning
// and drops the observation: persona mood lags until the next shift,
// responses keep flowing.
type Bookkeeper struct {
	bus      *bus.Bus
	ledger   mood.Ledger
	personas persona.Store
	sub      bus.SubscriptionID
}

// NewBookkeeper wires a Bookkeeper; call Start to begin consuming.
func NewBookkeeper(b *bus.Bus, ledger mood.Ledger, personas persona.Store) *Bookkeeper {
	return &Bookkeeper{bus: b, ledger: ledger, personas: personas}
}

// Start subscribes to mood-observe commands.
func (k *Bookkeeper) Start() {
	k.sub = k.bus.Subscribe(bus.EventMoodObserve, k.handle)
}

// Stop unsubscribes. In-flight appends finish on their own deadline.
func (k *Bookkeeper) Stop() {
	if k.sub != "" {
		_ = k.bus.Unsubscribe(k.sub)
		k.sub = ""
	}
}

func (k *Bookkeeper) handle(e bus.Event) {
	// Handlers outlive whatever request published the command.
	ctx, cancel := logging.DetachContextWithTimeout(context.Background(), bookkeepTimeout)
	defer cancel()

	obs := &mood.Observation{
		PersonaID: e.PersonaID,
		Value:     e.MoodValue,
		Reason:    e.Reason,
		Trigger:   mood.Trigger{Type: mood.TriggerType(e.Trigger), Source: "engine"},
		Context:   mood.ObservationContext{ConversationID: e.ConversationID},
	}
	if err := k.ledger.Append(ctx, obs); err != nil {
		log.Warn().
			Err(err).
			Str("persona", e.PersonaID).
			Int("value", e.MoodValue).
			Msg("mood bookkeeping failed; response was already served")
		return
	}
	syncMood(ctx, k.personas, e.PersonaID, e.MoodValue)

	appended := bus.NewEvent(bus.EventMoodAppended, e.PersonaID)
	appended.MoodValue = e.MoodValue
	appended.MoodDelta = e.MoodDelta
	appended.Reason = e.Reason
	appended.Trigger = e.Trigger
	appended.ConversationID = e.ConversationID
	_ = k.bus.Publish(appended)

	log.Debug().
		Str("persona", e.PersonaID).
		Int("value", e.MoodValue).
		Int("delta", e.MoodDelta).
		Msg("mood observation appended")
}
