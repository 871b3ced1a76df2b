// Package persona manages the simulated characters students converse
// with: their identity, personality definition, and mood state. The
// definitional fields (name, traits, style) come from operators via the
// API or YAML files; current mood is owned by the mood ledger and only
// denormalized here.
package persona

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Mood bounds shared with the ledger.
const (
	MinMood = -100
	MaxMood = 100

	// DefaultBaselineMood is used when a definition leaves the baseline
	// unset (zero).
	DefaultBaselineMood = 50
)

const (
	MaxNameLen = 100
	MaxTraits  = 20
	MaxValues  = 20
)

// Communication styles the tone engine understands. Neutral applies no
// base adjustment.
const (
	StyleNeutral   = "neutral"
	StyleFormal    = "formal"
	StyleCasual    = "casual"
	StyleTechnical = "technical"
)

// Decision-making styles.
const (
	DecisionAnalytical    = "analytical"
	DecisionIntuitive     = "intuitive"
	DecisionCollaborative = "collaborative"
	DecisionDecisive      = "decisive"
)

// Verbosity levels.
const (
	VerbosityConcise  = "concise"
	VerbosityBalanced = "balanced"
	VerbosityDetailed = "detailed"
)

// Style groups the stable behavioral preferences of a persona.
type Style struct {
	Communication  string `json:"communication" yaml:"communication,omitempty"`
	DecisionMaking string `json:"decisionMaking" yaml:"decisionMaking,omitempty"`
	Verbosity      string `json:"verbosity" yaml:"verbosity,omitempty"`
}

// Persona is a simulated character. YAML tags cover the definitional
// fields only; runtime state (current mood, timestamps) never round-trips
// through persona files.
type Persona struct {
	ID         string   `json:"id" yaml:"id,omitempty"`
	Name       string   `json:"name" yaml:"name"`
	Role       string   `json:"role" yaml:"role,omitempty"`
	Background string   `json:"background" yaml:"background,omitempty"`
	Traits     []string `json:"traits" yaml:"traits,omitempty"`
	Values     []string `json:"values" yaml:"values,omitempty"`
	Style      Style    `json:"style" yaml:"style,omitempty"`

	// BaselineMood is where the persona's mood settles absent stimuli.
	// Zero means unset; stores fill DefaultBaselineMood.
	BaselineMood int `json:"baselineMood" yaml:"baselineMood,omitempty"`
	// CurrentMood is denormalized from the mood ledger.
	CurrentMood int `json:"currentMood" yaml:"-"`

	IsBuiltIn bool      `json:"isBuiltIn" yaml:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// ValidationError reports a rejected persona definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid persona: %s %s", e.Field, e.Reason)
}

// Validate checks the definition. Stores fill defaults before calling it,
// so empty optional enums are legal here only where documented.
func (p *Persona) Validate() error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(p.Name); n > MaxNameLen {
		return &ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("at most %d characters, got %d", MaxNameLen, n),
		}
	}
	if len(p.Traits) > MaxTraits {
		return &ValidationError{
			Field:  "traits",
			Reason: fmt.Sprintf("at most %d allowed, got %d", MaxTraits, len(p.Traits)),
		}
	}
	for _, t := range p.Traits {
		if t == "" {
			return &ValidationError{Field: "traits", Reason: "must not contain empty entries"}
		}
	}
	if len(p.Values) > MaxValues {
		return &ValidationError{
			Field:  "values",
			Reason: fmt.Sprintf("at most %d allowed, got %d", MaxValues, len(p.Values)),
		}
	}
	for _, v := range p.Values {
		if v == "" {
			return &ValidationError{Field: "values", Reason: "must not contain empty entries"}
		}
	}

	switch p.Style.Communication {
	case StyleNeutral, StyleFormal, StyleCasual, StyleTechnical:
	default:
		return &ValidationError{
			Field:  "style.communication",
			Reason: fmt.Sprintf("unknown style %q", p.Style.Communication),
		}
	}
	switch p.Style.DecisionMaking {
	case "", DecisionAnalytical, DecisionIntuitive, DecisionCollaborative, DecisionDecisive:
	default:
		return &ValidationError{
			Field:  "style.decisionMaking",
			Reason: fmt.Sprintf("unknown style %q", p.Style.DecisionMaking),
		}
	}
	switch p.Style.Verbosity {
	case "", VerbosityConcise, VerbosityBalanced, VerbosityDetailed:
	default:
		return &ValidationError{
			Field:  "style.verbosity",
			Reason: fmt.Sprintf("unknown level %q", p.Style.Verbosity),
		}
	}

	if p.BaselineMood < MinMood || p.BaselineMood > MaxMood {
		return &ValidationError{
			Field:  "baselineMood",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinMood, MaxMood, p.BaselineMood),
		}
	}
	if p.CurrentMood < MinMood || p.CurrentMood > MaxMood {
		return &ValidationError{
			Field:  "currentMood",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinMood, MaxMood, p.CurrentMood),
		}
	}
	return nil
}

// HasTrait reports whether the persona lists the trait, ignoring case.
func (p *Persona) HasTrait(trait string) bool {
	for _, t := range p.Traits {
		if strings.EqualFold(t, trait) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *Persona) Clone() *Persona {
	c := *p
	if p.Traits != nil {
		c.Traits = append([]string(nil), p.Traits...)
	}
	if p.Values != nil {
		c.Values = append([]string(nil), p.Values...)
	}
	return &c
}
