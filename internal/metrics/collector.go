package metrics

import (
	"sync"
	"time"

	"github.com/praxislabs/praxis/internal/bus"
)

// Stats is a point-in-time aggregate of the current session.
type Stats struct {
	Started            time.Time `json:"started"`
	Responses          int       `json:"responses"`
	CacheHits          int       `json:"cacheHits"`
	CacheMisses        int       `json:"cacheMisses"`
	GenerationFailures int       `json:"generationFailures"`
	Observations       int       `json:"observations"`
	Corrections        int       `json:"corrections"`
	DriftDetections    int       `json:"driftDetections"`
	TotalLatencyMs     int64     `json:"totalLatencyMs"`
}

// HitRate returns the cache hit fraction, zero when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// AvgLatencyMs returns the mean respond latency.
func (s Stats) AvgLatencyMs() float64 {
	if s.Responses == 0 {
		return 0
	}
	return float64(s.TotalLatencyMs) / float64(s.Responses)
}

// Collector listens on the bus and keeps both the prometheus collectors
// and the session snapshot current.
type Collector struct {
	bus *bus.Bus

	mu    sync.RWMutex
	stats Stats

	sub bus.SubscriptionID
}

// NewCollector creates a collector on the given bus. Call Start to begin
// consuming events.
func NewCollector(b *bus.Bus) *Collector {
	return &Collector{
		bus:   b,
		stats: Stats{Started: time.Now().UTC()},
	}
}

// Start subscribes to the bus.
func (c *Collector) Start() {
	c.sub = c.bus.Subscribe(bus.AllEvents, c.handle)
}

// Stop unsubscribes; the snapshot freezes at its current values.
func (c *Collector) Stop() {
	if c.sub != "" {
		_ = c.bus.Unsubscribe(c.sub)
		c.sub = ""
	}
}

// Snapshot returns a copy of the current session stats.
func (c *Collector) Snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Collector) handle(e bus.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case bus.EventResponseGenerated:
		c.stats.Responses++
		c.stats.TotalLatencyMs += e.DurationMs
		ResponseDuration.WithLabelValues(boolLabel(e.Cached)).
			Observe(float64(e.DurationMs) / 1000)
	case bus.EventCacheHit:
		c.stats.CacheHits++
		CacheHits.Inc()
	case bus.EventCacheMiss:
		c.stats.CacheMisses++
		CacheMisses.Inc()
	case bus.EventGenerationFailed:
		c.stats.GenerationFailures++
		GenerationFailures.WithLabelValues(e.Provider).Inc()
	case bus.EventMoodAppended:
		c.stats.Observations++
		MoodObservations.Inc()
	case bus.EventCorrectionApplied:
		n := e.Corrections
		if n == 0 {
			n = 1
		}
		c.stats.Corrections += n
		CorrectionsApplied.Add(float64(n))
	case bus.EventDriftDetected:
		c.stats.DriftDetections++
		DriftScore.WithLabelValues(e.PersonaID).Set(float64(e.DriftScore))
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
