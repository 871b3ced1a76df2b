package persona

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a persona ID does not exist.
var ErrNotFound = errors.New("persona not found")

// ErrExists is returned when creating a persona whose ID is taken.
var ErrExists = errors.New("persona already exists")

// ErrBuiltIn is returned when updating or deleting a built-in persona.
// Built-ins only change through system corrections.
var ErrBuiltIn = errors.New("built-in persona is read-only")

// Store persists personas.
//
// Create and Update fill defaults and validate before writing. Update
// covers the definitional fields only: current mood belongs to the mood
// ledger and IsBuiltIn never changes after create.
type Store interface {
	Create(ctx context.Context, p *Persona) error
	Get(ctx context.Context, id string) (*Persona, error)
	List(ctx context.Context) ([]*Persona, error)
	Update(ctx context.Context, p *Persona) error
	Delete(ctx context.Context, id string) error
}

// applyDefaults fills the fields a sparse definition may omit.
func applyDefaults(p *Persona) {
	if p.Style.Communication == "" {
		p.Style.Communication = StyleNeutral
	}
	if p.BaselineMood == 0 {
		p.BaselineMood = DefaultBaselineMood
	}
	if p.CurrentMood == 0 {
		p.CurrentMood = p.BaselineMood
	}
}
