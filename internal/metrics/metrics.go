// Package metrics exposes the engine's operational numbers two ways:
// prometheus collectors for /metrics, and a bus-fed session snapshot for
// the monitor TUI and the stats endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_cache_hits_total",
			Help: "Responses served from the response cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_cache_misses_total",
			Help: "Response lookups that fell through to generation",
		},
	)

	ResponseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "praxis_response_duration_seconds",
			Help:    "End-to-end respond latency",
			Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"cached"},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "praxis_generation_failures_total",
			Help: "Upstream generation calls that returned an error",
		},
		[]string{"provider"},
	)

	MoodObservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_mood_observations_total",
			Help: "Observations appended to the mood ledger",
		},
	)

	CorrectionsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "praxis_corrections_applied_total",
			Help: "Corrective actions recorded against personas",
		},
	)

	DriftScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "praxis_drift_score",
			Help: "Latest drift score per persona",
		},
		[]string{"persona"},
	)
)
