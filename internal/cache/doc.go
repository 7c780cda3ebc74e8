// Package cache provides the byte-budgeted LRU store that owns decoded
// tiles.
//
// # Cache[K, V]
//
// Entries are charged by a caller-supplied size function. Insert marks the
// entry most recently used and, if the total then exceeds the budget,
// evicts least recently used entries one at a time until it fits again.
// Every eviction invokes the EvictFunc with the evicted key and value;
// entries removed with Remove, or replaced by a later Insert, are not
// reported.
//
//	c := cache.New[tile.ID, *tile.Tile](budget, (*tile.Tile).Bytes, onEvict)
//	if err := c.Insert(id, t); errors.Is(err, cache.ErrCapacity) {
//	    // t alone does not fit
//	}
//
// Pinned keys are skipped by the eviction that makes room for an insert.
// An insert that could only succeed by evicting pinned entries is rejected
// with ErrCapacity, so the budget holds after every call.
//
// # Thread Safety
//
// Cache is NOT safe for concurrent use. It is meant to be owned by a
// single goroutine, which is also the goroutine the EvictFunc runs on.
package cache
