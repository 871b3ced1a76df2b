// Package bus is the in-process event spine of the engine. The response
// path, the mood ledger, the drift patrol, and the corrector publish
// facts here; the metrics collector, the websocket feed, and the mood
// bookkeeper subscribe. Publishing never blocks: slow subscribers drop.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType tags an event with what happened.
type EventType string

const (
	// Response path.
	EventResponseGenerated EventType = "response.generated"
	EventGenerationFailed  EventType = "generation.failed"
	EventCacheHit          EventType = "cache.hit"
	EventCacheMiss         EventType = "cache.miss"

	// Mood ledger. EventMoodObserve asks the bookkeeper to append an
	// observation; EventMoodAppended reports that one landed.
	EventMoodObserve  EventType = "mood.observe"
	EventMoodAppended EventType = "mood.appended"

	// Drift patrol.
	EventDriftDetected     EventType = "drift.detected"
	EventCorrectionApplied EventType = "correction.applied"
)

// AllEvents subscribes to everything.
const AllEvents EventType = ""

// Event is one fact on the bus. Only the fields relevant to the type are
// set; the rest stay zero and drop out of the JSON.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	PersonaID string `json:"personaId,omitempty"`

	// Response path.
	Key        string  `json:"key,omitempty"`
	Provider   string  `json:"provider,omitempty"`
	Model      string  `json:"model,omitempty"`
	Cached     bool    `json:"cached,omitempty"`
	DurationMs int64   `json:"durationMs,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Mood path.
	MoodValue      int    `json:"moodValue,omitempty"`
	MoodDelta      int    `json:"moodDelta,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Trigger        string `json:"trigger,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`

	// Drift path.
	DriftScore  int `json:"driftScore,omitempty"`
	Corrections int `json:"corrections,omitempty"`

	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current UTC time.
func NewEvent(eventType EventType, personaID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		PersonaID: personaID,
	}
}
