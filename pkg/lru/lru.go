// Package lru implements a small least recently used cache with pinned
// entries.
//
// A pinned entry is never evicted, which lets a caller keep its hot default
// resident while less common values come and go.
//
// Thread Safety: All methods are safe for concurrent access.
package lru

import "sync"

// Cache is a generic LRU cache.
//
// Type Parameters:
//   - K: Key type (must be comparable)
//   - V: Value type (any)
type Cache[K comparable, V any] struct {
	capacity int
	mu       sync.Mutex
	head     node[K, V] // sentinel; head.next is most recent
	items    map[K]*node[K, V]
}

type node[K comparable, V any] struct {
	key        K
	value      V
	pinned     bool
	prev, next *node[K, V]
}

// New creates a cache holding at most capacity entries (default 64 when
// capacity <= 0). Pinned entries count toward capacity but are skipped by
// eviction; once only pinned entries are left, a new entry is dropped as soon
// as it is added.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 64
	}
	c := &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*node[K, V]),
	}
	c.head.next = &c.head
	c.head.prev = &c.head
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(n)
	return n.value, true
}

// Put stores value under key, evicting the least recently used unpinned
// entry when the cache is over capacity.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.items[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}

	n := &node[K, V]{key: key, value: value}
	c.items[key] = n
	c.insertFront(n)
	c.evict()
}

// Pin protects key from eviction. It reports whether key was present.
func (c *Cache[K, V]) Pin(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if ok {
		n.pinned = true
	}
	return ok
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// evict drops unpinned entries from the cold end until the cache fits.
func (c *Cache[K, V]) evict() {
	n := c.head.prev
	for len(c.items) > c.capacity && n != &c.head {
		prev := n.prev
		if !n.pinned {
			c.remove(n)
		}
		n = prev
	}
}

func (c *Cache[K, V]) remove(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	delete(c.items, n.key)
}

func (c *Cache[K, V]) insertFront(n *node[K, V]) {
	n.prev = &c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *Cache[K, V]) moveToFront(n *node[K, V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	c.insertFront(n)
}
