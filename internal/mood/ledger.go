package mood

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when an observation ID does not exist.
var ErrNotFound = errors.New("observation not found")

// ErrPersonaNotFound is returned when appending against a persona the
// store does not know. Nothing is written in that case.
var ErrPersonaNotFound = errors.New("persona not found")

// Query selects observations from a ledger. Zero fields mean "no filter".
type Query struct {
	// PersonaID restricts results to one persona. Required.
	PersonaID string
	// ActiveOnly excludes retired observations.
	ActiveOnly bool
	// Since/Until bound CreatedAt inclusively on both ends.
	Since time.Time
	Until time.Time
	// Limit caps the result count; 0 is unlimited.
	Limit int
}

// Ledger is the append-only store of mood observations.
//
// Append fills defaults (ID, timestamp, trigger type, derived intensity),
// validates, writes the observation, and updates the owning persona's
// current mood in the same transaction. Observations are immutable afterwards; Retire only
// flips the active flag.
type Ledger interface {
	Append(ctx context.Context, obs *Observation) error
	Get(ctx context.Context, id string) (*Observation, error)
	Query(ctx context.Context, q Query) ([]*Observation, error)
	Retire(ctx context.Context, id string) error
	// RetireExpired deactivates every active observation whose expected
	// duration has elapsed at now, returning how many it touched.
	RetireExpired(ctx context.Context, now time.Time) (int, error)
}

// prepare fills defaults on a new observation before validation. Appends
// always produce an active entry; retirement is the only path out.
func prepare(obs *Observation, now time.Time) {
	if obs.ID == "" {
		obs.ID = ulid.Make().String()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = now
	}
	if obs.Trigger.Type == "" {
		obs.Trigger.Type = TriggerManual
	}
	if obs.ExpectedMinutes == 0 {
		obs.ExpectedMinutes = DefaultExpectedMinutes
	}
	if obs.Intensity == "" {
		obs.Intensity = DeriveIntensity(obs.Value)
	}
	obs.IsActive = true
}

// elapsedMinutes reports whole minutes between two instants, never
// negative. Used to fill ActualMinutes at retirement.
func elapsedMinutes(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}
