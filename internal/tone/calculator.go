package tone

import (
	"github.com/praxislabs/praxis/internal/persona"
)

// Mood bands on the -100..100 scale.
const (
	lowMoodBand  = 20
	highMoodBand = 80
)

// styleNudgeBound caps how far the base-style step may push a dimension.
const styleNudgeBound = 50

// maxAdjustment bounds every final dimension.
const maxAdjustment = 100

// Context carries the per-message inputs to an adaptation.
type Context struct {
	// MessageKind is the classified student message; use a Classifier
	// when the caller has only raw text.
	MessageKind Kind `json:"messageKind"`
	// UserMood is the student's mood when the platform knows it.
	UserMood *int `json:"userMood,omitempty"`
}

// Dimension is one axis of the adaptation.
type Dimension struct {
	Adjustment  int    `json:"adjustment"`
	Description string `json:"description"`
}

// Adaptation is the full tone shift for one response.
type Adaptation struct {
	Communication Dimension `json:"communication"`
	Verbosity     Dimension `json:"verbosity"`
	Empathy       Dimension `json:"empathy"`
	Assertiveness Dimension `json:"assertiveness"`

	// Echo of what the adaptation was computed from.
	PersonaMood int     `json:"personaMood"`
	BaseStyle   string  `json:"baseStyle"`
	Context     Context `json:"context"`
}

// Calculate derives the tone adaptation for one response. The steps
// apply in a fixed order and later steps read the running values, so
// reordering them changes results: persona mood, then message kind, then
// student mood, then the persona's base style, then the final clamp.
func Calculate(p *persona.Persona, tctx Context) *Adaptation {
	var comm, verb, emp, assert int

	switch {
	case p.CurrentMood < lowMoodBand:
		comm -= 20
		verb -= 30
		emp -= 10
	case p.CurrentMood > highMoodBand:
		comm += 20
		verb += 30
		emp += 20
	}

	switch tctx.MessageKind {
	case KindFeedback:
		emp += 20
		assert -= 10
	case KindRequest:
		assert += 15
		verb += 10
	case KindQuestion:
		verb += 20
	}

	if tctx.UserMood != nil {
		switch {
		case *tctx.UserMood < lowMoodBand:
			emp += 30
			assert -= 20
		case *tctx.UserMood > highMoodBand:
			emp += 10
			assert += 10
		}
	}

	switch p.Style.Communication {
	case persona.StyleFormal:
		comm = max(-styleNudgeBound, comm-10)
	case persona.StyleCasual:
		comm = min(styleNudgeBound, comm+10)
	case persona.StyleTechnical:
		verb = max(-styleNudgeBound, verb+20)
	}

	comm = clampAdjustment(comm)
	verb = clampAdjustment(verb)
	emp = clampAdjustment(emp)
	assert = clampAdjustment(assert)

	return &Adaptation{
		Communication: Dimension{
			Adjustment:  comm,
			Description: describe(comm, "much more casual", "slightly more casual", "much more formal", "slightly more formal"),
		},
		Verbosity: Dimension{
			Adjustment:  verb,
			Description: describe(verb, "much more expansive", "slightly more expansive", "much terser", "slightly terser"),
		},
		Empathy: Dimension{
			Adjustment:  emp,
			Description: describe(emp, "strongly empathetic", "mildly empathetic", "notably detached", "slightly detached"),
		},
		Assertiveness: Dimension{
			Adjustment:  assert,
			Description: describe(assert, "much more assertive", "slightly more assertive", "much more deferential", "slightly more deferential"),
		},
		PersonaMood: p.CurrentMood,
		BaseStyle:   p.Style.Communication,
		Context:     tctx,
	}
}

// describe maps an adjustment onto dimension-specific wording through
// fixed thresholds.
func describe(v int, strongPos, mildPos, strongNeg, mildNeg string) string {
	switch {
	case v > 30:
		return strongPos
	case v > 10:
		return mildPos
	case v < -30:
		return strongNeg
	case v < -10:
		return mildNeg
	default:
		return "unchanged"
	}
}

func clampAdjustment(v int) int {
	if v > maxAdjustment {
		return maxAdjustment
	}
	if v < -maxAdjustment {
		return -maxAdjustment
	}
	return v
}
