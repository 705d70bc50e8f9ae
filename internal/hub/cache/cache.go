// Package cache implements the hub's readiness cache (C8): a TTL map
// of node id to the most recently fetched readiness snapshot. Shaped
// on the teacher's store.PricingCache two-field (value, fetched-at)
// map-plus-mutex pattern, trimmed to in-memory only since cache
// freshness here is hot-path for scheduling, not a persisted lookup.
package cache

import (
	"sync"
	"time"

	"github.com/exostack/exostack/internal/wire"
)

type entry struct {
	snapshot  wire.ReadinessSnapshot
	fetchedAt time.Time
}

// Cache is a TTL map of node id to readiness snapshot. Reads never
// block a concurrent write and vice versa beyond a short RWMutex
// critical section (spec.md §4.8: "reads must be non-blocking").
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

// New builds a Cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: make(map[string]entry)}
}

// Get returns the cached snapshot for id if it is still fresh
// (now - fetchedAt <= TTL). The bool is false on a miss (absent or
// stale entry).
func (c *Cache) Get(id string) (wire.ReadinessSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return wire.ReadinessSnapshot{}, false
	}
	if time.Since(e.fetchedAt) > c.ttl {
		return wire.ReadinessSnapshot{}, false
	}
	return e.snapshot, true
}

// Put stores a freshly fetched snapshot, called by the health poller
// and by any direct readiness fetch (e.g. the scheduler's
// cache-or-fetch path).
func (c *Cache) Put(id string, snapshot wire.ReadinessSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = entry{snapshot: snapshot, fetchedAt: time.Now()}
}

// Evict removes a single node's cache entry, used when the scheduler
// learns a cached snapshot was stale (e.g. an agent rejected a task
// the cache said it should accept).
func (c *Cache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// EvictExpired sweeps out stale entries on a slow interval so the map
// doesn't grow unbounded with nodes that have gone offline. Not
// required for correctness (Get already treats a stale entry as a
// miss) — this just reclaims memory.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if time.Since(e.fetchedAt) > c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Size returns the current number of entries (including any not yet
// swept as expired), for the cache-size metric.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
