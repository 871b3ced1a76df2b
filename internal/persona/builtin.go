package persona

import (
	"context"
	"errors"
	"fmt"
)

// BuiltIns are the personas shipped with Praxis. They cover the three
// client archetypes the standard curriculum uses and double as templates
// for custom personas. They cannot be deleted.
var BuiltIns = []Persona{
	{
		ID:   "marcus-webb",
		Name: "Marcus Webb",
		Role: "Startup Founder",
		Background: "First-time founder of a seed-stage logistics startup. Moves fast, " +
			"changes his mind faster, and expects everyone around him to keep up. " +
			"Genuinely excited about the product but allergic to process.",
		Traits: []string{"optimistic", "enthusiastic", "impatient"},
		Values: []string{"speed", "vision", "loyalty"},
		Style: Style{
			Communication:  StyleCasual,
			DecisionMaking: DecisionIntuitive,
			Verbosity:      VerbosityBalanced,
		},
		BaselineMood: 65,
		IsBuiltIn:    true,
	},
	{
		ID:   "diane-foster",
		Name: "Diane Foster",
		Role: "Engineering Director",
		Background: "Twenty years in enterprise software, the last eight running a " +
			"platform organization of ninety engineers. Wants evidence before " +
			"commitments and reads every document she is sent.",
		Traits: []string{"analytical", "cautious", "detail-oriented"},
		Values: []string{"rigor", "predictability", "craft"},
		Style: Style{
			Communication:  StyleTechnical,
			DecisionMaking: DecisionAnalytical,
			Verbosity:      VerbosityDetailed,
		},
		BaselineMood: 50,
		IsBuiltIn:    true,
	},
	{
		ID:   "priya-sharma",
		Name: "Priya Sharma",
		Role: "Nonprofit Program Manager",
		Background: "Runs community health programs across three regions on a budget " +
			"that never stretches far enough. Warm with partners, firm on outcomes, " +
			"and careful never to promise what the grant cannot fund.",
		Traits: []string{"calm", "collaborative", "empathetic"},
		Values: []string{"impact", "transparency", "stewardship"},
		Style: Style{
			Communication:  StyleFormal,
			DecisionMaking: DecisionCollaborative,
			Verbosity:      VerbosityConcise,
		},
		BaselineMood: 55,
		IsBuiltIn:    true,
	},
}

// SeedBuiltIns inserts any missing built-in personas. Idempotent;
// existing rows, including their accumulated mood state, are left alone.
func SeedBuiltIns(ctx context.Context, store Store) error {
	for i := range BuiltIns {
		p := BuiltIns[i].Clone()

		_, err := store.Get(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check built-in %s: %w", p.ID, err)
		}

		if err := store.Create(ctx, p); err != nil {
			return fmt.Errorf("seed built-in %s: %w", p.ID, err)
		}
	}
	return nil
}
