// Package mood implements the per-persona mood ledger and its analytics.
//
// The ledger is an append-only time series: observations are never updated
// or deleted once written, only soft-retired by flipping IsActive off. A
// persona's denormalized current mood always tracks the most recently
// appended observation; ledger implementations update both in the same
// transaction.
package mood

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Validation bounds for observations. Values outside these are rejected at
// append time, never clamped.
const (
	MinValue = -100
	MaxValue = 100

	MinReasonLen = 5
	MaxReasonLen = 500

	MaxTags = 10

	MinExpectedMinutes = 1
	MaxExpectedMinutes = 10080 // one week

	DefaultExpectedMinutes = 60
)

// Intensity thresholds on |value|.
const (
	lowIntensityMax    = 20
	mediumIntensityMax = 60
)

// TriggerType categorizes what caused a mood change.
type TriggerType string

const (
	TriggerConversation TriggerType = "conversation"
	TriggerMilestone    TriggerType = "milestone"
	TriggerFeedback     TriggerType = "feedback"
	TriggerTime         TriggerType = "time"
	TriggerManual       TriggerType = "manual"
	TriggerSystem       TriggerType = "system"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerConversation, TriggerMilestone, TriggerFeedback,
		TriggerTime, TriggerManual, TriggerSystem:
		return true
	}
	return false
}

// Intensity is the qualitative strength of an observation, derived from
// the absolute mood value when not supplied.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// DeriveIntensity maps a mood value onto an intensity band.
func DeriveIntensity(value int) Intensity {
	abs := value
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs <= lowIntensityMax:
		return IntensityLow
	case abs <= mediumIntensityMax:
		return IntensityMedium
	default:
		return IntensityHigh
	}
}

// Trigger describes what caused an observation.
type Trigger struct {
	Type    TriggerType `json:"type"`
	Source  string      `json:"source,omitempty"`
	Details string      `json:"details,omitempty"`
}

// ObservationContext ties an observation back to platform entities.
type ObservationContext struct {
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	ProjectID      string `json:"projectId,omitempty"`
	MilestoneID    string `json:"milestoneId,omitempty"`
}

// Observation is one entry of a persona's mood ledger.
type Observation struct {
	ID        string             `json:"id"`
	PersonaID string             `json:"personaId"`
	Value     int                `json:"value"`
	Reason    string             `json:"reason"`
	Trigger   Trigger            `json:"trigger"`
	Context   ObservationContext `json:"context,omitempty"`

	// ExpectedMinutes is how long this mood is expected to hold.
	// Observations past it are retired by the background sweep.
	ExpectedMinutes int `json:"expectedMinutes"`
	// ActualMinutes is filled at retirement when known.
	ActualMinutes int `json:"actualMinutes,omitempty"`

	Intensity Intensity `json:"intensity"`
	Tags      []string  `json:"tags,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidationError reports a rejected observation. The ledger wrote nothing
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid observation: %s %s", e.Field, e.Reason)
}

// Validate checks the observation against the ledger's bounds. It does not
// fill defaults; Append does that before validating.
func (o *Observation) Validate() error {
	if o.PersonaID == "" {
		return &ValidationError{Field: "personaId", Reason: "must not be empty"}
	}
	if o.Value < MinValue || o.Value > MaxValue {
		return &ValidationError{
			Field:  "value",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinValue, MaxValue, o.Value),
		}
	}
	if n := utf8.RuneCountInString(o.Reason); n < MinReasonLen || n > MaxReasonLen {
		return &ValidationError{
			Field:  "reason",
			Reason: fmt.Sprintf("must be %d to %d characters, got %d", MinReasonLen, MaxReasonLen, n),
		}
	}
	if !o.Trigger.Type.Valid() {
		return &ValidationError{
			Field:  "trigger.type",
			Reason: fmt.Sprintf("unknown type %q", o.Trigger.Type),
		}
	}
	if len(o.Tags) > MaxTags {
		return &ValidationError{
			Field:  "tags",
			Reason: fmt.Sprintf("at most %d allowed, got %d", MaxTags, len(o.Tags)),
		}
	}
	if o.ExpectedMinutes < MinExpectedMinutes || o.ExpectedMinutes > MaxExpectedMinutes {
		return &ValidationError{
			Field:  "expectedMinutes",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinExpectedMinutes, MaxExpectedMinutes, o.ExpectedMinutes),
		}
	}
	return nil
}

// ExpiresAt returns when the observation outlives its expected duration.
func (o *Observation) ExpiresAt() time.Time {
	return o.CreatedAt.Add(time.Duration(o.ExpectedMinutes) * time.Minute)
}

// Expired reports whether the observation has outlived its expected
// duration at the given instant.
func (o *Observation) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt())
}
