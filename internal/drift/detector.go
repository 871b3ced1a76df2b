package drift

import (
	"fmt"
	"strings"

	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

// Detection tuning. The penalties are calibrated against the -100..100
// mood scale; retune them together if that ever changes.
const (
	// highVolatility marks erratic mood swings.
	highVolatility        = 40.0
	highVolatilityPenalty = 30

	// lowAverage marks a persona stuck below its emotional floor. Only
	// counted once there are enough samples to mean something.
	lowAverage           = 20.0
	lowAverageMinSamples = 5
	lowAveragePenalty    = 25

	// Communication inconsistency is volatility normalized to 0..1.
	commInconsistencyScale   = 50.0
	commInconsistencyLimit   = 0.7
	commInconsistencyPenalty = 20

	// Trait-mood mismatch only counts when several rules agree.
	traitDriftLimit = 50

	// recentWindow is how many trailing observations stand for "lately".
	recentWindow = 5

	// detectionLimit is where a score turns into a finding.
	detectionLimit = 50
)

// Recommendation bands.
const (
	severeBand      = 70
	significantBand = 50
	earlyBand       = 30
)

// Report is the outcome of one drift evaluation.
type Report struct {
	PersonaID string `json:"personaId"`
	// Score is the accumulated drift penalty, clamped to 0..100.
	Score    int  `json:"score"`
	Detected bool `json:"detected"`
	// TraitDrift is the raw trait-mood mismatch subscore, reported even
	// when it was too weak to count toward Score.
	TraitDrift  int      `json:"traitDrift"`
	Indicators  []string `json:"indicators"`
	AverageMood float64  `json:"averageMood"`
	Volatility  float64  `json:"volatility"`
	Samples     int      `json:"samples"`

	Recommendation string `json:"recommendation"`
}

// Detect evaluates a persona's mood history for drift. Pure; callers
// supply the windowed observations.
func Detect(p *persona.Persona, observations []*mood.Observation) *Report {
	report := &Report{
		PersonaID:   p.ID,
		AverageMood: mood.Mean(observations),
		Volatility:  mood.Volatility(observations),
		Samples:     len(observations),
		Indicators:  []string{},
	}

	if report.Volatility > highVolatility {
		report.Score += highVolatilityPenalty
		report.Indicators = append(report.Indicators,
			fmt.Sprintf("high mood volatility (%.1f)", report.Volatility))
	}

	if report.AverageMood < lowAverage && report.Samples > lowAverageMinSamples {
		report.Score += lowAveragePenalty
		report.Indicators = append(report.Indicators,
			fmt.Sprintf("persistently low mood (average %.1f over %d observations)",
				report.AverageMood, report.Samples))
	}

	if inconsistency := commInconsistency(report.Volatility); inconsistency > commInconsistencyLimit {
		report.Score += commInconsistencyPenalty
		report.Indicators = append(report.Indicators,
			fmt.Sprintf("communication inconsistency (%.2f)", inconsistency))
	}

	traitScore, traitIndicators := traitDrift(p, observations, report.Volatility)
	report.TraitDrift = traitScore
	if traitScore > traitDriftLimit {
		report.Score += traitScore
		report.Indicators = append(report.Indicators, traitIndicators...)
	}

	if report.Score > 100 {
		report.Score = 100
	}
	report.Detected = report.Score > detectionLimit
	report.Recommendation = recommend(report)

	return report
}

// commInconsistency maps volatility onto a 0..1 inconsistency measure.
func commInconsistency(volatility float64) float64 {
	v := volatility / commInconsistencyScale
	if v > 1 {
		return 1
	}
	return v
}

// traitDrift scores contradictions between declared traits and observed
// mood. Each rule contributes independently; the caller decides whether
// the sum is strong enough to count.
func traitDrift(p *persona.Persona, observations []*mood.Observation, volatility float64) (int, []string) {
	if len(observations) == 0 {
		return 0, nil
	}

	recent := mood.RecentMean(observations, recentWindow)

	var (
		score      int
		indicators []string
	)

	if p.HasTrait("optimistic") && recent < 20 {
		score += 20
		indicators = append(indicators,
			fmt.Sprintf("optimistic persona with gloomy recent mood (%.1f)", recent))
	}
	if p.HasTrait("cautious") && recent > 80 {
		score += 15
		indicators = append(indicators,
			fmt.Sprintf("cautious persona running euphoric (%.1f)", recent))
	}
	if p.HasTrait("enthusiastic") && recent < 10 {
		score += 20
		indicators = append(indicators,
			fmt.Sprintf("enthusiastic persona gone flat (%.1f)", recent))
	}
	if (p.HasTrait("calm") || p.HasTrait("analytical")) && volatility > 60 {
		score += 15
		indicators = append(indicators,
			fmt.Sprintf("steady persona swinging wildly (volatility %.1f)", volatility))
	}

	return score, indicators
}

// recommend renders the report into operator guidance: a severity band
// plus one clause per class of indicator.
func recommend(report *Report) string {
	var base string
	switch {
	case report.Score > severeBand:
		base = "Severe drift: apply corrective action immediately and review recent interactions"
	case report.Score > significantBand:
		base = "Significant drift: corrective action recommended"
	case report.Score > earlyBand:
		base = "Early drift signs: monitor this persona closely"
	default:
		return "Persona is stable; no action needed"
	}

	var addons []string
	if report.Volatility > highVolatility {
		addons = append(addons, "stabilize mood by spacing out high-intensity interactions")
	}
	if report.AverageMood < lowAverage && report.Samples > lowAverageMinSamples {
		addons = append(addons, "seed positive interactions to lift the baseline")
	}
	if report.TraitDrift > traitDriftLimit {
		addons = append(addons, "realign responses with the persona's core traits")
	}

	if len(addons) == 0 {
		return base
	}
	return base + "; " + strings.Join(addons, "; ")
}
