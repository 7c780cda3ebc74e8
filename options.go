package slide

import (
	"log/slog"

	"github.com/gogpu/slide/overlay"
)

// Option configures a Manager during creation.
//
// Example:
//
//	// Defaults: 750 MiB cache, 512px tiles, GOMAXPROCS workers
//	m, err := slide.NewManager(src, canvas)
//
//	// Loaded configuration with a smaller cache
//	m, err := slide.NewManager(src, canvas,
//	    slide.WithConfig(cfg),
//	    slide.WithMaxCacheSize(256<<20))
type Option func(*managerOptions)

// managerOptions holds optional configuration for Manager creation.
type managerOptions struct {
	config            Config
	logger            *slog.Logger
	overlay           *overlay.Config
	backgroundChannel int
	plane             int
}

// defaultOptions returns the default manager options.
func defaultOptions() managerOptions {
	return managerOptions{
		config:            DefaultConfig(),
		logger:            nil, // Will be set to Logger() if nil
		backgroundChannel: -1,
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// still override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *managerOptions) {
		o.config = cfg
	}
}

// WithMaxCacheSize sets the cache budget in bytes.
func WithMaxCacheSize(bytes int64) Option {
	return func(o *managerOptions) {
		o.config.MaxCacheBytes = bytes
	}
}

// WithWorkers sets the number of decode workers. 0 selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *managerOptions) {
		o.config.Workers = n
	}
}

// WithTileSize sets the tile edge length in level pixels.
func WithTileSize(size int) Option {
	return func(o *managerOptions) {
		o.config.TileSize = size
	}
}

// WithRetirement selects the retirement policy.
func WithRetirement(r Retirement) Option {
	return func(o *managerOptions) {
		o.config.Retirement = r
	}
}

// WithPrefetch sets the prefetch ring margin in tiles and whether the
// neighbouring levels are prefetched. A margin of 0 with adjacent false
// disables prefetching.
func WithPrefetch(margin int, adjacentLevels bool) Option {
	return func(o *managerOptions) {
		o.config.PrefetchMargin = margin
		o.config.PrefetchAdjacentLevels = adjacentLevels
	}
}

// WithLogger sets the logger for this manager instead of the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = l
	}
}

// WithOverlay sets the initial foreground overlay.
func WithOverlay(cfg *overlay.Config) Option {
	return func(o *managerOptions) {
		o.overlay = cfg
	}
}

// WithBackgroundChannel renders a single channel of the background as
// grayscale. A negative channel renders natural colors.
func WithBackgroundChannel(ch int) Option {
	return func(o *managerOptions) {
		o.backgroundChannel = ch
	}
}

// WithPlane selects the initial z-plane.
func WithPlane(plane int) Option {
	return func(o *managerOptions) {
		o.plane = plane
	}
}
