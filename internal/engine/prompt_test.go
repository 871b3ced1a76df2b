package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praxislabs/praxis/internal/persona"
	"github.com/praxislabs/praxis/internal/tone"
)

func promptPersona() *persona.Persona {
	return &persona.Persona{
		ID:         "mentor",
		Name:       "Maya Chen",
		Role:       "senior engineer",
		Background: "Fifteen years shipping backend systems.",
		Traits:     []string{"patient", "analytical"},
		Values:     []string{"craftsmanship", "candor"},
		Style: persona.Style{
			Communication:  persona.StyleTechnical,
			Verbosity:      persona.VerbosityConcise,
			DecisionMaking: persona.DecisionAnalytical,
		},
		CurrentMood: 40,
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	p := promptPersona()
	adaptation := tone.Calculate(p, tone.Context{MessageKind: tone.KindQuestion})

	prompt := buildSystemPrompt(p, adaptation)

	require.Contains(t, prompt, "You are Maya Chen, a senior engineer")
	require.Contains(t, prompt, "Fifteen years shipping backend systems.")
	require.Contains(t, prompt, "## Personality\nYou are patient, analytical.")
	require.Contains(t, prompt, "## Values\nYou care about craftsmanship, candor.")
	require.Contains(t, prompt, "technical terminology")
	require.Contains(t, prompt, "brief and to the point")
	require.Contains(t, prompt, "trade-offs")
	require.Contains(t, prompt, "Your mood today is good (40")
	require.Contains(t, prompt, "Stay in character.")

	// Technical style and a question both raise verbosity; the prompt
	// carries the summed shift, phrased from the adaptation.
	require.Contains(t, prompt, "For this reply, shift your tone:")
	require.Contains(t, prompt, "verbosity "+adaptation.Verbosity.Description)
}

func TestBuildSystemPromptNeutralAdaptation(t *testing.T) {
	p := promptPersona()
	p.Style = persona.Style{}
	p.CurrentMood = 40

	adaptation := tone.Calculate(p, tone.Context{MessageKind: tone.KindStatement})
	prompt := buildSystemPrompt(p, adaptation)

	require.NotContains(t, prompt, "shift your tone")
	require.NotContains(t, prompt, "## Communication Style")
}

func TestBuildSystemPromptNilAdaptation(t *testing.T) {
	p := promptPersona()
	p.Traits = nil
	p.Values = nil
	p.Background = ""

	prompt := buildSystemPrompt(p, nil)
	require.Contains(t, prompt, "You are Maya Chen")
	require.NotContains(t, prompt, "## Personality")
	require.NotContains(t, prompt, "## Values")
	require.NotContains(t, prompt, "shift your tone")
}

func TestMoodInstructionBands(t *testing.T) {
	cases := []struct {
		mood int
		want string
	}{
		{-80, "poor"},
		{-20, "below baseline"},
		{0, "neutral"},
		{30, "good"},
		{75, "excellent"},
	}
	for _, tc := range cases {
		got := moodInstruction(tc.mood)
		require.Contains(t, got, tc.want, "mood %d", tc.mood)
	}
}

func TestAdaptationInstructionListsShiftedDimensionsOnly(t *testing.T) {
	a := &tone.Adaptation{
		Communication: tone.Dimension{Adjustment: 20, Description: "slightly more casual"},
		Verbosity:     tone.Dimension{Adjustment: 0, Description: "unchanged"},
		Empathy:       tone.Dimension{Adjustment: 40, Description: "strongly empathetic"},
		Assertiveness: tone.Dimension{Adjustment: 0, Description: "unchanged"},
	}
	got := adaptationInstruction(a)
	require.Equal(t, "For this reply, shift your tone: communication slightly more casual; empathy strongly empathetic.", got)
	require.Equal(t, 1, strings.Count(got, "communication"))
}
