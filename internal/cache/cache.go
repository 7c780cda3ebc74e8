package cache

import (
	"errors"
	"fmt"
)

// ErrCapacity is returned by Insert when a value cannot fit in the budget.
var ErrCapacity = errors.New("cache: value exceeds capacity")

// SizeFunc reports the number of bytes a value is charged.
type SizeFunc[V any] func(V) int64

// EvictFunc is called once for every evicted entry, after the entry has
// left the cache.
type EvictFunc[K comparable, V any] func(key K, value V)

// Cache is a byte-budgeted LRU cache.
// Cache must not be copied after creation.
type Cache[K comparable, V any] struct {
	entries map[K]*entry[K, V]
	order   recency[K, V]
	pins    map[K]struct{}

	size    SizeFunc[V]
	onEvict EvictFunc[K, V]

	maxBytes    int64
	usedBytes   int64
	pinnedBytes int64

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache holding at most maxBytes. onEvict may be nil.
func New[K comparable, V any](maxBytes int64, size SizeFunc[V], onEvict EvictFunc[K, V]) *Cache[K, V] {
	if maxBytes < 0 {
		maxBytes = 0
	}
	c := &Cache[K, V]{
		entries:  make(map[K]*entry[K, V]),
		pins:     make(map[K]struct{}),
		size:     size,
		onEvict:  onEvict,
		maxBytes: maxBytes,
	}
	c.order.init()
	return c
}

// Insert adds or replaces the value for key and marks it most recently
// used. Least recently used unpinned entries are evicted until the cache is
// back within budget. A replaced value is dropped without notification.
//
// Insert fails with ErrCapacity, leaving the cache unchanged, when the value
// is larger than the budget or cannot fit beside the pinned entries.
func (c *Cache[K, V]) Insert(key K, value V) error {
	b := c.size(value)
	if b > c.maxBytes {
		return fmt.Errorf("%w: %d bytes, budget %d", ErrCapacity, b, c.maxBytes)
	}

	_, pinned := c.pins[key]
	pinnedOthers := c.pinnedBytes
	if old, ok := c.entries[key]; ok && old.pinned {
		pinnedOthers -= old.bytes
	}
	if pinnedOthers+b > c.maxBytes {
		return fmt.Errorf("%w: %d bytes beside %d pinned, budget %d", ErrCapacity, b, pinnedOthers, c.maxBytes)
	}

	if old, ok := c.entries[key]; ok {
		c.drop(key, old)
	}

	e := &entry[K, V]{key: key, value: value, bytes: b, pinned: pinned}
	c.order.touch(e)
	c.entries[key] = e
	c.usedBytes += b
	if pinned {
		c.pinnedBytes += b
	}

	c.evictTo(c.maxBytes, false)
	return nil
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.touch(e)
	return e.value, true
}

// Peek returns the value for key without touching its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether key is resident.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.entries[key]
	return ok
}

// Remove takes key out of the cache without calling the EvictFunc.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.drop(key, e)
	return e.value, true
}

// Pin protects key from eviction by Insert. The key need not be resident
// yet; it is pinned as soon as it is inserted.
func (c *Cache[K, V]) Pin(key K) {
	if _, ok := c.pins[key]; ok {
		return
	}
	c.pins[key] = struct{}{}
	if e, ok := c.entries[key]; ok && !e.pinned {
		e.pinned = true
		c.pinnedBytes += e.bytes
	}
}

// Unpin makes key evictable again.
func (c *Cache[K, V]) Unpin(key K) {
	if _, ok := c.pins[key]; !ok {
		return
	}
	delete(c.pins, key)
	if e, ok := c.entries[key]; ok && e.pinned {
		e.pinned = false
		c.pinnedBytes -= e.bytes
	}
}

// UnpinAll makes every key evictable again.
func (c *Cache[K, V]) UnpinAll() {
	for key := range c.pins {
		c.Unpin(key)
	}
}

// Pinned reports whether key is pinned.
func (c *Cache[K, V]) Pinned(key K) bool {
	_, ok := c.pins[key]
	return ok
}

// SetMaxSize changes the budget. If usage exceeds the new budget, entries
// are evicted before SetMaxSize returns: unpinned entries first, then
// pinned ones if that is still not enough.
func (c *Cache[K, V]) SetMaxSize(maxBytes int64) {
	if maxBytes < 0 {
		maxBytes = 0
	}
	c.maxBytes = maxBytes
	c.evictTo(maxBytes, false)
	c.evictTo(maxBytes, true)
}

// Clear evicts every entry, calling the EvictFunc once per entry.
// Calling Clear on an empty cache does nothing.
func (c *Cache[K, V]) Clear() {
	for e := c.order.oldest(); e != nil; e = c.order.oldest() {
		c.evict(e)
	}
}

// Keys returns the resident keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	return c.order.keys()
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return len(c.entries) }

// Size returns the bytes currently charged.
func (c *Cache[K, V]) Size() int64 { return c.usedBytes }

// MaxSize returns the budget in bytes.
func (c *Cache[K, V]) MaxSize() int64 { return c.maxBytes }

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	s := Stats{
		Len:         len(c.entries),
		Bytes:       c.usedBytes,
		PinnedBytes: c.pinnedBytes,
		MaxBytes:    c.maxBytes,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// evictTo evicts from the LRU end until usage is at most limit. Pinned
// entries are only considered when includePinned is set.
func (c *Cache[K, V]) evictTo(limit int64, includePinned bool) {
	e := c.order.oldest()
	for c.usedBytes > limit && e != nil {
		next := c.order.next(e)
		if includePinned || !e.pinned {
			c.evict(e)
		}
		e = next
	}
}

// evict removes e and reports it.
func (c *Cache[K, V]) evict(e *entry[K, V]) {
	c.drop(e.key, e)
	c.evictions++
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

// drop removes the entry from the bookkeeping without reporting it.
func (c *Cache[K, V]) drop(key K, e *entry[K, V]) {
	c.order.detach(e)
	delete(c.entries, key)
	c.usedBytes -= e.bytes
	if e.pinned {
		c.pinnedBytes -= e.bytes
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Bytes is the memory currently charged.
	Bytes int64
	// PinnedBytes is the part of Bytes held by pinned entries.
	PinnedBytes int64
	// MaxBytes is the budget.
	MaxBytes int64
	// Hits is the number of Get calls that found their key.
	Hits uint64
	// Misses is the number of Get calls that did not.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of entries evicted.
	Evictions uint64
}
