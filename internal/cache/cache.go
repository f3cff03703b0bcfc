// Package cache provides a TTL cache whose entries remember how much data was
// requested when they were stored. A lookup only hits when the cached entry was
// recorded for at least as many items as the new request wants, so a truncated
// result is never served for a larger request.
//
// Expired entries are kept until overwritten: the degraded read path serves
// them as stale data when the upstream is rate limited or unavailable, and all
// cached data is re-derivable from the upstream API.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value         any
	expiresAt     time.Time
	requestedSize int
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value when the entry is unexpired and was stored for
// at least minSize items. minSize 0 accepts any entry.
func (c *Cache) Get(key string, minSize int) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		return nil, false
	}
	if minSize > 0 && e.requestedSize < minSize {
		return nil, false
	}
	return e.value, true
}

// GetStale ignores expiry and only enforces the size rule.
func (c *Cache) GetStale(key string, minSize int) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if minSize > 0 && e.requestedSize < minSize {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. requestedSize records the high-water
// mark of the request that produced the value.
func (c *Cache) Set(key string, value any, ttl time.Duration, requestedSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:         value,
		expiresAt:     c.now().Add(ttl),
		requestedSize: requestedSize,
	}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
