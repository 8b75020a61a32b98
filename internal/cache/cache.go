// Package cache provides a short-lived in-memory read cache. It memoizes
// expensive full-collection reads for a few seconds to absorb bursty read
// traffic; write paths invalidate their keys synchronously before
// acknowledging, so a hit is never older than the last write.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is applied when Set is called with a non-positive ttl.
const DefaultTTL = 5 * time.Second

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a TTL-bounded memoization map. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a cache with the given default TTL (DefaultTTL if <= 0).
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     defaultTTL,
	}
}

// Set stores a value under key. A non-positive ttl uses the default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: time.Now(), ttl: ttl}
	c.mu.Unlock()
}

// Get returns the cached value and true if present and unexpired.
// Expired entries are removed lazily.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.storedAt) > e.ttl {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it.
		if cur, still := c.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Delete removes a key. Called synchronously by write paths before the
// write is acknowledged.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries, including any not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor launches a background sweep that removes expired entries
// every interval. Housekeeping only; expired entries are also rejected
// lazily on Get.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// Stop halts the janitor, if started.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > e.ttl {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
