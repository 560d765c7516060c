package validation

import "sync"

// Cache memoizes validator results keyed by the exact input string. It is
// bounded: when the entry count reaches the limit the whole cache is reset,
// since every result is a pure recomputation. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	max     int
}

// DefaultCacheSize bounds a validator cache when no explicit limit is set.
const DefaultCacheSize = 4096

func NewCache[V any](max int) *Cache[V] {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache[V]{
		entries: make(map[string]V),
		max:     max,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		c.entries = make(map[string]V)
	}
	c.entries[key] = value
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every memoized result. Callers recompute on the next lookup.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]V)
}
