package respcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New[string](0, time.Minute)
	require.Error(t, err)

	_, err = New[string](10, 0)
	require.Error(t, err)

	_, err = New[string](10, -time.Second)
	require.Error(t, err)
}

func TestGetMissOnAbsent(t *testing.T) {
	c, err := New[string](4, time.Minute)
	require.NoError(t, err)

	_, ok := c.Get("nope")
	require.False(t, ok)
	require.Equal(t, int64(1), c.Stats().Misses)
}

func TestSetThenGet(t *testing.T) {
	c, err := New[string](4, time.Minute)
	require.NoError(t, err)

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", got)

	s := c.Stats()
	require.Equal(t, int64(1), s.Hits)
	require.Equal(t, int64(0), s.Misses)
}

func TestLazyExpiry(t *testing.T) {
	clock := newFakeClock()
	c, err := NewWithClock[string](4, time.Minute, clock.Now)
	require.NoError(t, err)

	c.Set("k", "v")

	// Just inside the TTL: still a hit.
	clock.Advance(time.Minute)
	_, ok := c.Get("k")
	require.True(t, ok, "entry at exactly ttl must still be live")

	// Past the TTL: miss, and the entry is gone.
	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "expired entry must be deleted on observation")

	s := c.Stats()
	require.Equal(t, int64(1), s.Expirations)
	require.Equal(t, int64(1), s.Misses)
}

func TestSetRefreshesTTL(t *testing.T) {
	clock := newFakeClock()
	c, err := NewWithClock[string](4, time.Minute, clock.Now)
	require.NoError(t, err)

	c.Set("k", "old")
	clock.Advance(45 * time.Second)
	c.Set("k", "new")
	clock.Advance(45 * time.Second)

	// 90s after the first write but only 45s after the overwrite.
	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", got)
}

func TestEvictionPicksLeastRecentlyUsed(t *testing.T) {
	c, err := New[string](2, time.Minute)
	require.NoError(t, err)

	c.Set("a", "1")
	c.Set("b", "2")

	// Reading a makes b the LRU victim.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", "3")

	_, ok = c.Get("b")
	require.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	require.True(t, ok, "a was recently read and must survive")
	_, ok = c.Get("c")
	require.True(t, ok)

	require.Equal(t, int64(1), c.Stats().Evictions)
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c, err := New[string](2, time.Minute)
	require.NoError(t, err)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1b") // full cache, existing key

	require.Equal(t, 2, c.Len())
	require.Equal(t, int64(0), c.Stats().Evictions)

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "1b", got)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestSetCountsAsUse(t *testing.T) {
	c, err := New[string](2, time.Minute)
	require.NoError(t, err)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1b") // touches a; b is now LRU
	c.Set("c", "3")

	_, ok := c.Get("b")
	require.False(t, ok, "b was the least recently touched and should be gone")
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestCapacityNeverExceeded(t *testing.T) {
	const capacity = 8
	c, err := New[int](capacity, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
		require.LessOrEqual(t, c.Len(), capacity)
	}
	require.Equal(t, capacity, c.Len())
}

func TestRemoveAndPurge(t *testing.T) {
	c, err := New[string](4, time.Minute)
	require.NoError(t, err)

	c.Set("a", "1")
	c.Set("b", "2")

	require.True(t, c.Remove("a"))
	require.False(t, c.Remove("a"))
	require.Equal(t, 1, c.Len())

	c.Purge()
	require.Equal(t, 0, c.Len())
}

func TestStatsHitRate(t *testing.T) {
	c, err := New[string](4, time.Minute)
	require.NoError(t, err)

	c.Set("a", "1")
	c.Get("a")     // hit
	c.Get("a")     // hit
	c.Get("gone")  // miss
	c.Get("gone2") // miss

	s := c.Stats()
	require.Equal(t, int64(2), s.Hits)
	require.Equal(t, int64(2), s.Misses)
	require.InDelta(t, 0.5, s.HitRate, 1e-9)
	require.Equal(t, 4, s.Capacity)
}

func TestConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	c, err := New[int](32, time.Minute)
	require.NoError(t, err)

	const workers = 8
	const rounds = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				key := fmt.Sprintf("key-%d", i%64)
				if i%3 == 0 {
					c.Set(key, w*rounds+i)
				} else {
					c.Get(key)
				}
			}
		}(w)
	}
	wg.Wait()

	require.LessOrEqual(t, c.Len(), 32)
	s := c.Stats()
	require.Positive(t, s.Hits+s.Misses)
}
