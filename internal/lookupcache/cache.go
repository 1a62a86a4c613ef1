// Package lookupcache is a small TTL cache for lookup results keyed by
// username.
package lookupcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe in-memory cache. Entries expire after a fixed TTL;
// StartEviction removes stale entries in the background.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// New returns an empty cache whose entries live for ttl.
func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]*entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().After(e.expiresAt)
}

// Get returns the live entry for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate removes key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Evict removes all expired entries and returns how many were dropped.
func (c *Cache[V]) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, including expired ones.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartEviction runs Evict every interval until ctx is done.
func (c *Cache[V]) StartEviction(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := c.Evict(); n > 0 {
					logger.Debug("lookup cache eviction", zap.Int("evicted", n))
				}
			}
		}
	}()
}
