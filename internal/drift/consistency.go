// Package drift watches personas for personality drift: the slow
// divergence between how a persona is defined and how it has actually
// been behaving, as evidenced by its mood ledger. It scores definition
// completeness, detects drift, and applies corrective actions.
package drift

import (
	"fmt"

	"github.com/praxislabs/praxis/internal/mood"
	"github.com/praxislabs/praxis/internal/persona"
)

// Each consistency check is worth the same fifth of the score.
const checkPoints = 20

// Mood buckets used by the range-coverage check. A persona whose history
// sits entirely in one bucket has shown students a single emotional note.
const (
	positiveBucketMin = 60
	neutralBucketMin  = 20
)

// minTraits is the trait count below which a persona reads as thin.
const minTraits = 3

// ConsistencyCheck is one of the five components of the score.
type ConsistencyCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// ConsistencyReport grades how fully a persona is specified and how much
// of its emotional range the ledger has seen.
type ConsistencyReport struct {
	PersonaID string             `json:"personaId"`
	Score     int                `json:"score"`
	Checks    []ConsistencyCheck `json:"checks"`
}

// ScoreConsistency grades the persona against its mood history. Pure;
// callers supply the windowed observations.
func ScoreConsistency(p *persona.Persona, observations []*mood.Observation) *ConsistencyReport {
	report := &ConsistencyReport{PersonaID: p.ID}

	add := func(name string, passed bool, detail string) {
		report.Checks = append(report.Checks, ConsistencyCheck{
			Name:   name,
			Passed: passed,
			Detail: detail,
		})
		if passed {
			report.Score += checkPoints
		}
	}

	add("trait-depth",
		len(p.Traits) >= minTraits,
		fmt.Sprintf("%d of %d traits defined", len(p.Traits), minTraits))

	add("mood-history",
		len(observations) > 0,
		fmt.Sprintf("%d observations in window", len(observations)))

	buckets := moodBuckets(observations)
	add("mood-range",
		buckets >= 2,
		fmt.Sprintf("%d of 3 mood ranges exercised", buckets))

	add("communication-style",
		p.Style.Communication != "" && p.Style.Communication != persona.StyleNeutral,
		fmt.Sprintf("communication style %q", p.Style.Communication))

	add("decision-style",
		p.Style.DecisionMaking != "",
		fmt.Sprintf("decision style %q", p.Style.DecisionMaking))

	return report
}

// moodBuckets counts how many of the positive/neutral/negative ranges the
// observations touch.
func moodBuckets(observations []*mood.Observation) int {
	var positive, neutral, negative bool
	for _, obs := range observations {
		switch {
		case obs.Value >= positiveBucketMin:
			positive = true
		case obs.Value >= neutralBucketMin:
			neutral = true
		default:
			negative = true
		}
	}

	n := 0
	for _, hit := range []bool{positive, neutral, negative} {
		if hit {
			n++
		}
	}
	return n
}
