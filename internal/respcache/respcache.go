// Package respcache implements the bounded in-memory response cache.
//
// Entries live under two limits: a capacity bound enforced by LRU eviction
// and a per-entry TTL enforced lazily at read time. There is no background
// sweep; an expired entry occupies its slot until a Get observes it or
// eviction pushes it out. Both Get and Set count as "use" for recency, so
// the eviction victim is always the entry untouched the longest.
//
// Caches are plain values created with New and handed to whoever needs
// them. Nothing in this package is process-global.
package respcache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Defaults applied by callers that have no configuration of their own.
const (
	DefaultMaxEntries = 500
	DefaultTTL        = 15 * time.Minute
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe LRU map with per-entry expiry. The zero value is
// not usable; construct with New.
type Cache[V any] struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, entry[V]]
	capacity int
	ttl      time.Duration
	now      func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

// New creates a cache holding at most maxEntries values, each living for
// ttl after its most recent Set.
func New[V any](maxEntries int, ttl time.Duration) (*Cache[V], error) {
	return NewWithClock[V](maxEntries, ttl, time.Now)
}

// NewWithClock is New with an injectable time source, used by tests to
// step through expiry without sleeping.
func NewWithClock[V any](maxEntries int, ttl time.Duration, now func() time.Time) (*Cache[V], error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("cache capacity must be at least 1, got %d", maxEntries)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %v", ttl)
	}
	l, err := simplelru.NewLRU[string, entry[V]](maxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("init lru: %w", err)
	}
	return &Cache[V]{
		lru:      l,
		capacity: maxEntries,
		ttl:      ttl,
		now:      now,
	}, nil
}

// Get returns the live value for key. A missing key and an expired entry
// both report a miss; the expired entry is deleted on the spot. A hit
// refreshes the entry's recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	if c.now().After(ent.expiresAt) {
		c.lru.Remove(key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	c.hits.Add(1)
	return ent.value, true
}

// Set stores value under key with a fresh TTL, refreshing recency.
// Inserting a new key at capacity evicts exactly the least-recently-used
// entry; overwriting an existing key never evicts.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	if evicted := c.lru.Add(key, ent); evicted {
		c.evictions.Add(1)
	}
}

// Remove deletes key if present, reporting whether it was. Callers use
// this to invalidate responses after a persona mutation.
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Purge drops every entry. Counters are kept.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len reports the number of stored entries, including expired ones no Get
// has observed yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	HitRate     float64 `json:"hitRate"`
}

// Stats returns current counters. Expirations count against misses too:
// every Get that failed is a miss, whatever the reason.
func (c *Cache[V]) Stats() Stats {
	s := Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Entries:     c.Len(),
		Capacity:    c.capacity,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
