package mood

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger is an in-memory Ledger. It backs tests and library use
// where no database is wired; the service runs on SQLiteLedger.
type MemoryLedger struct {
	mu        sync.RWMutex
	byID      map[string]*Observation
	byPersona map[string][]*Observation
	current   map[string]int
	now       func() time.Time
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return NewMemoryLedgerWithClock(time.Now)
}

// NewMemoryLedgerWithClock is NewMemoryLedger with an injectable time
// source for expiry tests.
func NewMemoryLedgerWithClock(now func() time.Time) *MemoryLedger {
	return &MemoryLedger{
		byID:      make(map[string]*Observation),
		byPersona: make(map[string][]*Observation),
		current:   make(map[string]int),
		now:       now,
	}
}

// Append validates and stores the observation, updating the persona's
// tracked current mood atomically under the ledger lock.
func (l *MemoryLedger) Append(ctx context.Context, obs *Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prepare(obs, l.now())
	if err := obs.Validate(); err != nil {
		return err
	}

	stored := cloneObservation(obs)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[stored.ID] = stored
	l.byPersona[stored.PersonaID] = append(l.byPersona[stored.PersonaID], stored)
	l.current[stored.PersonaID] = stored.Value
	return nil
}

// Get returns a copy of the observation with the given ID.
func (l *MemoryLedger) Get(ctx context.Context, id string) (*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	obs, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneObservation(obs), nil
}

// Query returns matching observations in creation order, oldest first.
func (l *MemoryLedger) Query(ctx context.Context, q Query) ([]*Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Observation
	for _, obs := range l.byPersona[q.PersonaID] {
		if q.ActiveOnly && !obs.IsActive {
			continue
		}
		if !q.Since.IsZero() && obs.CreatedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && obs.CreatedAt.After(q.Until) {
			continue
		}
		out = append(out, cloneObservation(obs))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Retire soft-retires one observation, recording how long the mood
// actually held.
func (l *MemoryLedger) Retire(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	obs, ok := l.byID[id]
	if !ok {
		return ErrNotFound
	}
	if obs.IsActive {
		obs.IsActive = false
		obs.ActualMinutes = elapsedMinutes(obs.CreatedAt, l.now())
	}
	return nil
}

// RetireExpired deactivates every active observation past its expected
// duration.
func (l *MemoryLedger) RetireExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for _, obs := range l.byID {
		if obs.IsActive && obs.Expired(now) {
			obs.IsActive = false
			obs.ActualMinutes = obs.ExpectedMinutes
			n++
		}
	}
	return n, nil
}

// CurrentMood reports the tracked current mood for a persona, false when
// no observation has ever been appended for it.
func (l *MemoryLedger) CurrentMood(personaID string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.current[personaID]
	return v, ok
}

func cloneObservation(obs *Observation) *Observation {
	c := *obs
	if obs.Tags != nil {
		c.Tags = append([]string(nil), obs.Tags...)
	}
	return &c
}
