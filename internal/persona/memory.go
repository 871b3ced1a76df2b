package persona

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and library use.
type MemoryStore struct {
	mu       sync.RWMutex
	personas map[string]*Persona
	now      func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		personas: make(map[string]*Persona),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *Persona) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, p.ID)
	}
	s.personas[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Persona, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Persona, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Persona, 0, len(s.personas))
	for _, p := range s.personas {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsBuiltIn != out[j].IsBuiltIn {
			return out[i].IsBuiltIn
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Persona) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	applyDefaults(p)
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.personas[p.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("%w: %s", ErrBuiltIn, p.ID)
	}

	updated := p.Clone()
	updated.CurrentMood = existing.CurrentMood
	updated.IsBuiltIn = existing.IsBuiltIn
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now().UTC()
	s.personas[p.ID] = updated
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.personas[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if existing.IsBuiltIn {
		return fmt.Errorf("%w: %s", ErrBuiltIn, id)
	}
	delete(s.personas, id)
	return nil
}

// SetMood updates the tracked current mood directly. The SQLite path gets
// this from the mood ledger's transactional append; the in-memory pairing
// of MemoryStore and mood.MemoryLedger has no shared transaction, so
// engine code wires the two through this method.
func (s *MemoryStore) SetMood(ctx context.Context, id string, value int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personas[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.CurrentMood = value
	p.UpdatedAt = s.now().UTC()
	return nil
}
