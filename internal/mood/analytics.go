package mood

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Trend labels the direction a persona's mood is moving in.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// Analytics tuning. Reference values; adjust together with the drift
// thresholds if the mood scale ever changes.
const (
	// trendWindow is how many trailing observations form the "recent"
	// sample the trend compares against everything before it.
	trendWindow = 5
	// trendThreshold is the recent-vs-earlier mean difference beyond
	// which the trend stops being stable.
	trendThreshold = 10.0
	// highVolatilityThreshold flags erratic mood in insights.
	highVolatilityThreshold = 30.0
	// negativeTriggerThreshold flags trigger categories that reliably
	// drag mood down.
	negativeTriggerThreshold = -20.0
	// lowMoodThreshold flags a persistently unhappy persona.
	lowMoodThreshold = 20.0
)

// TimeRange is a half-open-by-convention window; both bounds inclusive in
// queries.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Window returns the range ending at end and reaching days back.
func Window(end time.Time, days int) TimeRange {
	return TimeRange{Start: end.AddDate(0, 0, -days), End: end}
}

// TriggerStat aggregates observations sharing a trigger type.
type TriggerStat struct {
	Type      TriggerType `json:"type"`
	Count     int         `json:"count"`
	AvgImpact float64     `json:"avgImpact"`
}

// Analysis is the full mood report for one persona over one window.
type Analysis struct {
	PersonaID   string        `json:"personaId"`
	CurrentMood int           `json:"currentMood"`
	AverageMood float64       `json:"averageMood"`
	Trend       Trend         `json:"trend"`
	Volatility  float64       `json:"volatility"`
	Triggers    []TriggerStat `json:"triggers"`
	Insights    []string      `json:"insights"`
	DataPoints  int           `json:"dataPoints"`
	TimeRange   TimeRange     `json:"timeRange"`
}

// Analyze computes mood statistics over the given observations, assumed
// to be in creation order as the ledger returns them. It is total: any
// input, including none, yields a well-formed Analysis and never an
// error. currentMood is the persona's denormalized value, echoed into
// the report.
func Analyze(personaID string, currentMood int, observations []*Observation, window TimeRange) *Analysis {
	a := &Analysis{
		PersonaID:   personaID,
		CurrentMood: currentMood,
		Trend:       TrendStable,
		Triggers:    []TriggerStat{},
		Insights:    []string{},
		DataPoints:  len(observations),
		TimeRange:   window,
	}

	if len(observations) == 0 {
		a.Insights = append(a.Insights, "No mood data available for this window")
		return a
	}

	values := valuesOf(observations)
	a.AverageMood = mean(values)
	a.Volatility = stdDev(values, a.AverageMood)
	a.Trend = trendOf(values)
	a.Triggers = triggerStats(observations)
	a.Insights = insights(a)

	return a
}

// trendOf compares the mean of the trailing window against the mean of
// everything before it. Too few points for a baseline reads as stable.
func trendOf(values []float64) Trend {
	if len(values) <= trendWindow {
		return TrendStable
	}

	split := len(values) - trendWindow
	earlier := mean(values[:split])
	recent := mean(values[split:])

	switch diff := recent - earlier; {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// triggerStats groups observations by trigger type. Output is sorted by
// type name so reports are stable.
func triggerStats(observations []*Observation) []TriggerStat {
	sums := make(map[TriggerType]struct {
		count int
		total float64
	})
	for _, obs := range observations {
		agg := sums[obs.Trigger.Type]
		agg.count++
		agg.total += float64(obs.Value)
		sums[obs.Trigger.Type] = agg
	}

	out := make([]TriggerStat, 0, len(sums))
	for t, agg := range sums {
		out = append(out, TriggerStat{
			Type:      t,
			Count:     agg.count,
			AvgImpact: agg.total / float64(agg.count),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// insights applies the reporting rules in a fixed order so the output
// reads the same run to run.
func insights(a *Analysis) []string {
	out := []string{}

	if a.Volatility > highVolatilityThreshold {
		out = append(out, fmt.Sprintf(
			"High mood volatility detected (%.1f); responses may feel inconsistent", a.Volatility))
	}
	if a.Trend == TrendDeclining {
		out = append(out, "Mood has been declining; consider reviewing recent interactions")
	}
	for _, ts := range a.Triggers {
		if ts.AvgImpact < negativeTriggerThreshold {
			out = append(out, fmt.Sprintf(
				"Trigger %q has a strongly negative average impact (%.1f)", ts.Type, ts.AvgImpact))
		}
	}
	if a.AverageMood < lowMoodThreshold {
		out = append(out, fmt.Sprintf(
			"Mood is consistently low (average %.1f); corrective action may help", a.AverageMood))
	}

	return out
}

// Mean returns the average observation value, zero when there are none.
func Mean(observations []*Observation) float64 {
	return mean(valuesOf(observations))
}

// Volatility returns the population standard deviation of the
// observation values. The drift detector reads it as "how erratic has
// this persona been".
func Volatility(observations []*Observation) float64 {
	values := valuesOf(observations)
	return stdDev(values, mean(values))
}

// RecentMean averages the trailing n observation values, or all of them
// when fewer exist.
func RecentMean(observations []*Observation, n int) float64 {
	values := valuesOf(observations)
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return mean(values)
}

func valuesOf(observations []*Observation) []float64 {
	values := make([]float64, len(observations))
	for i, obs := range observations {
		values[i] = float64(obs.Value)
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation around the given mean.
func stdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
