package graph

import (
	"sync"
	"time"
)

// Cache TTLs. The graph and its layout expire together; clusters are
// cheaper to keep around and live twice as long.
const (
	GraphTTL   = 300 * time.Second
	LayoutTTL  = 300 * time.Second
	ClusterTTL = 600 * time.Second
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// cache is a mutex-guarded TTL memoization layer. The validity check,
// conditional recompute, and store are atomic relative to other callers:
// the lock is held across getOrCompute. Stale entries are evicted lazily
// on the next access for their exact key; there is no background sweep.
type cache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]entry[V]
	now     func() time.Time
}

func newCache[K comparable, V any](ttl time.Duration) *cache[K, V] {
	return &cache[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
		now:     time.Now,
	}
}

// getOrCompute returns the cached value for key if it is still fresh,
// otherwise computes, stores, and returns a new one. A compute error is
// not cached; the next caller retries.
func (c *cache[K, V]) getOrCompute(key K, compute func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if c.now().Sub(e.storedAt) < c.ttl {
			return e.value, nil
		}
		delete(c.entries, key)
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	return value, nil
}

func (c *cache[K, V]) invalidateMatching(match func(K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
		}
	}
}

func (c *cache[K, V]) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
}

// len reports live entries, counting stale ones not yet lazily evicted.
func (c *cache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
