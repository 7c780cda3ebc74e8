package slide

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Stats is a snapshot of manager activity.
type Stats struct {
	// Generation is the current generation.
	Generation uint64 `json:"generation"`

	// Submitted counts jobs handed to the worker pool.
	Submitted uint64 `json:"submitted"`
	// Prefetched counts the subset of Submitted queued by the prefetcher.
	Prefetched uint64 `json:"prefetched"`
	// PrefetchSkipped counts view changes where prefetch stood down.
	PrefetchSkipped uint64 `json:"prefetch_skipped"`

	// Completed counts completions handled.
	Completed uint64 `json:"completed"`
	// Decoded counts tiles decoded by the workers.
	Decoded uint64 `json:"decoded"`
	// Stale counts jobs the workers skipped as superseded.
	Stale uint64 `json:"stale"`
	// Superseded counts decoded tiles dropped after a refresh or clear.
	Superseded uint64 `json:"superseded"`
	// Failed counts jobs whose read or decode failed.
	Failed uint64 `json:"failed"`
	// Rejected counts tiles the cache refused with ErrCapacity.
	Rejected uint64 `json:"rejected"`
	// Evicted counts tiles that left the cache through eviction.
	Evicted uint64 `json:"evicted"`
	// Cancelled counts queued jobs dropped by eager retirement.
	Cancelled uint64 `json:"cancelled"`

	// InFlight is the number of outstanding jobs.
	InFlight int `json:"in_flight"`
	// QueuedVisible and QueuedPrefetch are the queue backlog per priority.
	QueuedVisible  int `json:"queued_visible"`
	QueuedPrefetch int `json:"queued_prefetch"`
	// Attached is the number of tiles attached to the surface.
	Attached int `json:"attached"`

	// CacheEntries is the number of resident tiles.
	CacheEntries int `json:"cache_entries"`
	// CacheBytes is the memory held by resident tiles.
	CacheBytes int64 `json:"cache_bytes"`
	// CacheMaxBytes is the cache budget.
	CacheMaxBytes int64 `json:"cache_max_bytes"`
	// PinnedBytes is the part of CacheBytes that cannot be evicted.
	PinnedBytes int64 `json:"pinned_bytes"`
	// CacheHitRate is hits / (hits + misses) for cache lookups.
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// counters are the manager-side event counts.
type counters struct {
	submitted       uint64
	prefetched      uint64
	prefetchSkipped uint64
	completed       uint64
	superseded      uint64
	failed          uint64
	rejected        uint64
	evicted         uint64
	cancelled       uint64
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("generation", s.Generation),
		slog.Uint64("submitted", s.Submitted),
		slog.Uint64("decoded", s.Decoded),
		slog.Uint64("stale", s.Stale),
		slog.Uint64("failed", s.Failed),
		slog.Uint64("evicted", s.Evicted),
		slog.Uint64("cancelled", s.Cancelled),
		slog.Int("in_flight", s.InFlight),
		slog.Int("attached", s.Attached),
		slog.String("cache", humanize.IBytes(uint64(max(0, s.CacheBytes)))+" / "+humanize.IBytes(uint64(max(0, s.CacheMaxBytes)))),
		slog.Float64("hit_rate", s.CacheHitRate),
	)
}
