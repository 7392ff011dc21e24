package util

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a thread-safe, capacity-bounded Least-Recently-Used cache with
// optional per-entry expiry. It uses Go generics so it can hold any key/value
// pair. When the cache is full the least-recently-used entry is evicted
// automatically.
//
// Usage:
//
//	cache := NewLRUCache[string, Result](512)
//	cache.PutTTL("q1", res, time.Minute)
//	if v, ok := cache.Get("q1"); ok { ... }
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most-recently used

	hits   uint64
	misses uint64
}

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time // zero = never expires
}

// NewLRUCache creates a new cache with the given capacity.
// Capacity must be >= 1; values <= 0 are normalised to 1.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached value and true if the key exists and has not
// expired. A hit moves the entry to the front (most-recently used); an
// expired entry is removed on access.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	entry := el.Value.(*lruEntry[K, V])
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Put inserts or updates a key/value pair with no expiry.
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.PutTTL(key, value, 0)
}

// PutTTL inserts or updates a key/value pair that expires after ttl.
// A ttl <= 0 means the entry never expires. If the cache is at capacity the
// least-recently-used entry is evicted first.
func (c *LRUCache[K, V]) PutTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		entry := el.Value.(*lruEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictLeastRecentLocked()
	}

	entry := &lruEntry[K, V]{key: key, value: value, expiresAt: expiresAt}
	el := c.order.PushFront(entry)
	c.items[key] = el
}

// Evict removes a specific key from the cache. It is a no-op if the key does
// not exist.
func (c *LRUCache[K, V]) Evict(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.items, key)
}

// PruneExpired removes every expired entry and returns how many were removed.
func (c *LRUCache[K, V]) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*lruEntry[K, V])
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			c.order.Remove(el)
			delete(c.items, entry.key)
			removed++
		}
		el = prev
	}
	return removed
}

// Keys returns all keys currently in the cache.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the current number of items in the cache.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Cap returns the configured maximum capacity.
func (c *LRUCache[K, V]) Cap() int {
	return c.capacity
}

// Stats returns cumulative hit and miss counts since creation or the last
// Clear.
func (c *LRUCache[K, V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear removes all items and resets counters.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element, c.capacity)
	c.hits = 0
	c.misses = 0
}

// evictLeastRecentLocked removes the back (least-recently-used) element.
// Caller must hold c.mu.
func (c *LRUCache[K, V]) evictLeastRecentLocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	delete(c.items, back.Value.(*lruEntry[K, V]).key)
}
