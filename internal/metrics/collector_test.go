package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/praxislabs/praxis/internal/bus"
)

func newTestCollector(t *testing.T) (*bus.Bus, *Collector) {
	t.Helper()
	b := bus.New()
	t.Cleanup(func() { b.Close() })

	c := NewCollector(b)
	c.Start()
	t.Cleanup(c.Stop)
	return b, c
}

func TestCollectorCounts(t *testing.T) {
	b, c := newTestCollector(t)

	hitsBefore := testutil.ToFloat64(CacheHits)

	b.Publish(bus.NewEvent(bus.EventCacheMiss, "p1"))
	gen := bus.NewEvent(bus.EventResponseGenerated, "p1")
	gen.DurationMs = 120
	b.Publish(gen)
	b.Publish(bus.NewEvent(bus.EventCacheHit, "p1"))
	b.Publish(bus.NewEvent(bus.EventCacheHit, "p1"))
	b.Publish(bus.NewEvent(bus.EventMoodAppended, "p1"))

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.CacheHits == 2 && s.CacheMisses == 1 && s.Responses == 1 && s.Observations == 1
	}, 2*time.Second, 10*time.Millisecond)

	s := c.Snapshot()
	require.InDelta(t, 2.0/3.0, s.HitRate(), 1e-9)
	require.InDelta(t, 120, s.AvgLatencyMs(), 1e-9)
	require.InDelta(t, hitsBefore+2, testutil.ToFloat64(CacheHits), 1e-9,
		"prometheus counter moves with the snapshot")
}

func TestCollectorFailuresAndCorrections(t *testing.T) {
	b, c := newTestCollector(t)

	fail := bus.NewEvent(bus.EventGenerationFailed, "p1")
	fail.Provider = "openai"
	b.Publish(fail)

	corr := bus.NewEvent(bus.EventCorrectionApplied, "p1")
	corr.Corrections = 3
	b.Publish(corr)

	drift := bus.NewEvent(bus.EventDriftDetected, "p1")
	drift.DriftScore = 85
	b.Publish(drift)

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.GenerationFailures == 1 && s.Corrections == 3 && s.DriftDetections == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.InDelta(t, 85, testutil.ToFloat64(DriftScore.WithLabelValues("p1")), 1e-9)
}

func TestCollectorCorrectionDefaultsToOne(t *testing.T) {
	b, c := newTestCollector(t)

	b.Publish(bus.NewEvent(bus.EventCorrectionApplied, "p1"))

	require.Eventually(t, func() bool {
		return c.Snapshot().Corrections == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCollectorStopFreezesSnapshot(t *testing.T) {
	b, c := newTestCollector(t)

	b.Publish(bus.NewEvent(bus.EventCacheHit, "p1"))
	require.Eventually(t, func() bool {
		return c.Snapshot().CacheHits == 1
	}, 2*time.Second, 10*time.Millisecond)

	c.Stop()
	b.Publish(bus.NewEvent(bus.EventCacheHit, "p1"))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, c.Snapshot().CacheHits)
}

func TestStatsZeroValues(t *testing.T) {
	var s Stats
	require.Zero(t, s.HitRate())
	require.Zero(t, s.AvgLatencyMs())
}
