// Package typecache provides the process-wide, read-mostly caches used by the
// event bus: discovered handler descriptors per subscriber type and type
// closures per event type.
//
// Entries are idempotent: computing the same entry twice under a race is
// harmless, and Store keeps whichever value landed first so every reader
// observes a single value per key.
package typecache

import "sync"

// Cache is a thread-safe map for values computed once per key.
// It uses sync.RWMutex since lookups vastly outnumber writes.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]V),
	}
}

// Get returns the value for a key and whether it exists.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Store records value for key unless an entry already exists.
// It returns the value that is cached after the call.
func (c *Cache[K, V]) Store(key K, value V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = value
	return value
}

// GetOrCompute returns the cached value for key, computing it outside the
// lock when absent. Two goroutines may both compute; only the first stored
// result is kept.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	return c.Store(key, compute())
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]V)
}
