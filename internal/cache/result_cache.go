// Package cache provides the bounded in-process result cache of the pipeline.
package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when no capacity is configured.
const DefaultSize = 2048

// Key identifies a pipeline result: the exact question against one KB
// snapshot. A reload changes the snapshot id, so stale results are never hit.
type Key struct {
	SnapshotID string
	Question   string
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// ResultCache is a thread-safe LRU that hands out copies, so callers can never
// mutate a cached value.
type ResultCache[V any] struct {
	lru      *lru.Cache[Key, V]
	clone    func(V) V
	capacity int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most size results. clone must return a deep
// copy of its argument.
func New[V any](size int, clone func(V) V) (*ResultCache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	if clone == nil {
		return nil, fmt.Errorf("result cache: clone func is required")
	}
	l, err := lru.New[Key, V](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &ResultCache[V]{lru: l, clone: clone, capacity: size}, nil
}

// Get returns a copy of the cached value.
func (c *ResultCache[V]) Get(key Key) (V, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return c.clone(v), true
}

// Add stores a copy of v. Overwriting an equal value is harmless.
func (c *ResultCache[V]) Add(key Key, v V) {
	c.lru.Add(key, c.clone(v))
}

// Len returns the number of cached results.
func (c *ResultCache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every cached result.
func (c *ResultCache[V]) Purge() {
	c.lru.Purge()
}

// Stats reports hit and miss counters.
func (c *ResultCache[V]) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Size:     c.lru.Len(),
		Capacity: c.capacity,
	}
}
