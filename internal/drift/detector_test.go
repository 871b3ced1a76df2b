package drift

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praxislabs/praxis/internal/persona"
)

func TestDetectStable(t *testing.T) {
	report := Detect(fullPersona(), obsValues(50, 55, 48, 52, 50, 53))

	require.Zero(t, report.Score)
	require.False(t, report.Detected)
	require.Empty(t, report.Indicators)
	require.Equal(t, "Persona is stable; no action needed", report.Recommendation)
}

func TestDetectEmptyHistory(t *testing.T) {
	report := Detect(fullPersona(), nil)

	require.Zero(t, report.Score)
	require.Zero(t, report.Samples)
	require.Zero(t, report.TraitDrift)
	require.False(t, report.Detected)
}

func TestDetectVolatilityAlone(t *testing.T) {
	p := &persona.Persona{ID: "p-1", Name: "Plain"}
	// Swings of +-50 around a healthy average: volatility and the
	// derived communication inconsistency fire, nothing else.
	report := Detect(p, obsValues(90, -10, 90, -10, 90, -10))

	require.Equal(t, 50, report.Score)
	require.False(t, report.Detected, "a score of exactly 50 is not yet a finding")
	require.Len(t, report.Indicators, 2)
	require.Contains(t, report.Indicators[0], "high mood volatility")
	require.Contains(t, report.Indicators[1], "communication inconsistency")
	require.Contains(t, report.Recommendation, "Early drift signs")
}

func TestDetectTraitDriftBelowLimitNotCounted(t *testing.T) {
	p := &persona.Persona{ID: "p-1", Name: "Sunny", Traits: []string{"optimistic"}}
	report := Detect(p, obsValues(10, 15, 18, 12, 16))

	require.Equal(t, 20, report.TraitDrift, "single-rule mismatch is reported")
	require.Zero(t, report.Score, "but too weak to count toward the score")
	require.False(t, report.Detected)
}

func TestDetectSevereDrift(t *testing.T) {
	p := &persona.Persona{
		ID:     "p-1",
		Name:   "Marcus",
		Traits: []string{"optimistic", "enthusiastic", "calm"},
	}
	report := Detect(p, obsValues(80, -80, 60, -90, -70, -85, -75))

	require.Equal(t, 100, report.Score, "clamped at 100")
	require.True(t, report.Detected)
	require.Equal(t, 55, report.TraitDrift)
	require.Contains(t, report.Recommendation, "Severe drift")
	require.Contains(t, report.Recommendation, "stabilize mood")
	require.Contains(t, report.Recommendation, "realign responses")

	// Volatility, low average, communication inconsistency, and the
	// three matching trait rules.
	require.Len(t, report.Indicators, 6)
}

func TestCommInconsistency(t *testing.T) {
	require.Zero(t, commInconsistency(0))
	require.InDelta(t, 0.5, commInconsistency(25), 0.001)
	require.Equal(t, 1.0, commInconsistency(50))
	require.Equal(t, 1.0, commInconsistency(500), "capped at 1")
}
