package sigcache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Memory is a concurrent-safe in-process cache with per-entry TTL and lazy
// expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	hits    atomic.Int64
	misses  atomic.Int64
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

// Stats contains cache performance counters.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

// Get implements Cache.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := c.entries[key]; still && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.val, true
}

// Set implements Cache.
func (c *Memory) Set(key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &memoryEntry{val: val, expiresAt: time.Now().Add(ttl)}
}

// Stats returns hit/miss counters.
func (c *Memory) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{Entries: entries, Hits: hits, Misses: misses, HitRate: rate}
}
