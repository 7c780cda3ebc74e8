package slide

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gogpu/slide/tile"
)

// DefaultMaxCacheBytes is the default cache budget: room for a thousand
// 512x512 three-channel tiles.
const DefaultMaxCacheBytes = 1000 * 512 * 512 * 3

// Retirement selects what happens to resident tiles that leave the view.
type Retirement string

const (
	// RetireLazy leaves them attached until the cache evicts them.
	RetireLazy Retirement = "lazy"

	// RetireEager detaches and drops them on every view change.
	RetireEager Retirement = "eager"
)

// Config holds the tunables of a Manager.
type Config struct {
	MaxCacheBytes          int64      `koanf:"max_cache_bytes"`
	TileSize               int        `koanf:"tile_size"`
	Workers                int        `koanf:"workers"`                  // 0 = GOMAXPROCS
	PrefetchMargin         int        `koanf:"prefetch_margin"`          // tiles around the view
	PrefetchAdjacentLevels bool       `koanf:"prefetch_adjacent_levels"` // one level up and down
	PrefetchBacklog        int        `koanf:"prefetch_backlog"`         // visible jobs that suspend prefetch
	Retirement             Retirement `koanf:"retirement"`               // "lazy" or "eager"
	PinOverview            bool       `koanf:"pin_overview"`
	LogLevel               string     `koanf:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		MaxCacheBytes:          DefaultMaxCacheBytes,
		TileSize:               tile.DefaultSize,
		PrefetchMargin:         1,
		PrefetchAdjacentLevels: true,
		PrefetchBacklog:        8,
		Retirement:             RetireLazy,
		PinOverview:            true,
		LogLevel:               "info",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.MaxCacheBytes <= 0:
		return fmt.Errorf("%w: max_cache_bytes must be positive, got %d", ErrInvalidConfig, c.MaxCacheBytes)
	case c.TileSize <= 0:
		return fmt.Errorf("%w: tile_size must be positive, got %d", ErrInvalidConfig, c.TileSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.PrefetchMargin < 0:
		return fmt.Errorf("%w: prefetch_margin must not be negative, got %d", ErrInvalidConfig, c.PrefetchMargin)
	case c.PrefetchBacklog < 0:
		return fmt.Errorf("%w: prefetch_backlog must not be negative, got %d", ErrInvalidConfig, c.PrefetchBacklog)
	}
	switch c.Retirement {
	case RetireLazy, RetireEager:
	default:
		return fmt.Errorf("%w: retirement must be %q or %q, got %q", ErrInvalidConfig, RetireLazy, RetireEager, c.Retirement)
	}
	if c.LogLevel != "" {
		if _, err := ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ConfigPaths returns the files LoadConfig reads when given none, lowest
// priority first.
func ConfigPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, "slide", "config.toml"),
		"slide.toml",
	}
}

// LoadConfig reads TOML files over the defaults and validates the result.
// Missing files are skipped; later files override earlier ones. With no
// paths, ConfigPaths is used.
func LoadConfig(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = ConfigPaths()
	}

	k := koanf.New(".")
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return Config{}, fmt.Errorf("slide: load %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("slide: decode config: %w", err)
	}
	if cfg.Retirement == "" {
		cfg.Retirement = RetireLazy
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
