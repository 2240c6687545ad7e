// Package cache holds small in-process structures with per-entry expiry.
package cache

import (
	"sync"
	"time"
)

const defaultTTL = 5 * time.Second

// TTL is a map whose entries vanish after their deadline. Expired entries
// are dropped lazily on Get and in bulk by Prune.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[K]expiring[V]
	now     func() time.Time
}

type expiring[V any] struct {
	val      V
	deadline time.Time
}

func (e expiring[V]) expired(now time.Time) bool {
	return now.After(e.deadline)
}

// NewTTL returns an empty map whose Put uses ttl, or five seconds when ttl
// is not positive.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &TTL[K, V]{
		ttl:     ttl,
		entries: make(map[K]expiring[V]),
		now:     time.Now,
	}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if e.expired(c.now()) {
		c.mu.Lock()
		// re-check, a concurrent Put may have refreshed it
		if cur, still := c.entries[key]; still && cur.expired(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.val, true
}

func (c *TTL[K, V]) Put(key K, val V) {
	c.PutUntil(key, val, c.now().Add(c.ttl))
}

// PutUntil keeps val until deadline. A later deadline already stored for
// key is not shortened.
func (c *TTL[K, V]) PutUntil(key K, val V, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && cur.deadline.After(deadline) {
		deadline = cur.deadline
	}
	c.entries[key] = expiring[V]{val: val, deadline: deadline}
}

// Prune removes expired entries and returns how many were dropped.
func (c *TTL[K, V]) Prune() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			dropped++
		}
	}

	return dropped
}

func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
