package mood

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validObservation() *Observation {
	return &Observation{
		PersonaID:       "p-1",
		Value:           42,
		Reason:          "student praised the design review",
		Trigger:         Trigger{Type: TriggerConversation},
		ExpectedMinutes: 60,
	}
}

func TestDeriveIntensity(t *testing.T) {
	cases := []struct {
		value int
		want  Intensity
	}{
		{0, IntensityLow},
		{20, IntensityLow},
		{-20, IntensityLow},
		{21, IntensityMedium},
		{-45, IntensityMedium},
		{60, IntensityMedium},
		{61, IntensityHigh},
		{-100, IntensityHigh},
		{100, IntensityHigh},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveIntensity(tc.value), "value %d", tc.value)
	}
}

func TestTriggerTypeValid(t *testing.T) {
	for _, tt := range []TriggerType{
		TriggerConversation, TriggerMilestone, TriggerFeedback,
		TriggerTime, TriggerManual, TriggerSystem,
	} {
		require.True(t, tt.Valid(), "trigger %q", tt)
	}

	require.False(t, TriggerType("").Valid())
	require.False(t, TriggerType("weather").Valid())
}

func TestObservationValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Observation)
		field  string
	}{
		{"missing persona", func(o *Observation) { o.PersonaID = "" }, "personaId"},
		{"value too high", func(o *Observation) { o.Value = 101 }, "value"},
		{"value too low", func(o *Observation) { o.Value = -101 }, "value"},
		{"reason too short", func(o *Observation) { o.Reason = "meh" }, "reason"},
		{"reason too long", func(o *Observation) { o.Reason = longString(501) }, "reason"},
		{"bad trigger", func(o *Observation) { o.Trigger.Type = "vibes" }, "trigger.type"},
		{"too many tags", func(o *Observation) { o.Tags = make([]string, 11) }, "tags"},
		{"expected minutes zero", func(o *Observation) { o.ExpectedMinutes = 0 }, "expectedMinutes"},
		{"expected minutes beyond a week", func(o *Observation) { o.ExpectedMinutes = 10081 }, "expectedMinutes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := validObservation()
			tc.mutate(obs)

			err := obs.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestObservationValidateAccepts(t *testing.T) {
	obs := validObservation()
	require.NoError(t, obs.Validate())

	// Boundary values are legal, not clamped away.
	obs.Value = MaxValue
	require.NoError(t, obs.Validate())
	obs.Value = MinValue
	require.NoError(t, obs.Validate())

	// Reason length counts runes, not bytes.
	obs.Reason = "désolé"
	require.NoError(t, obs.Validate())

	obs.ExpectedMinutes = MaxExpectedMinutes
	require.NoError(t, obs.Validate())
}

func TestObservationExpiry(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obs := &Observation{CreatedAt: created, ExpectedMinutes: 30}

	require.Equal(t, created.Add(30*time.Minute), obs.ExpiresAt())

	// Exactly at the deadline still counts as live.
	require.False(t, obs.Expired(created.Add(30*time.Minute)))
	require.True(t, obs.Expired(created.Add(30*time.Minute+time.Second)))
	require.False(t, obs.Expired(created))
}

func longString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
