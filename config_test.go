package slide

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(786432000), cfg.MaxCacheBytes)
	assert.Equal(t, 512, cfg.TileSize)
	assert.Equal(t, RetireLazy, cfg.Retirement)
	assert.True(t, cfg.PinOverview)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero cache", func(c *Config) { c.MaxCacheBytes = 0 }},
		{"negative tile size", func(c *Config) { c.TileSize = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"negative margin", func(c *Config) { c.PrefetchMargin = -1 }},
		{"negative backlog", func(c *Config) { c.PrefetchBacklog = -1 }},
		{"unknown retirement", func(c *Config) { c.Retirement = "never" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")
	writeFile(t, base, `
max_cache_bytes = 1048576
tile_size = 256
retirement = "eager"
`)
	writeFile(t, local, `
tile_size = 128
prefetch_adjacent_levels = false
log_level = "debug"
`)

	cfg, err := LoadConfig(base, filepath.Join(dir, "missing.toml"), local)
	require.NoError(t, err)

	assert.Equal(t, int64(1<<20), cfg.MaxCacheBytes)
	assert.Equal(t, 128, cfg.TileSize, "later files win")
	assert.Equal(t, RetireEager, cfg.Retirement)
	assert.False(t, cfg.PrefetchAdjacentLevels)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1, cfg.PrefetchMargin, "unset keys keep defaults")
	assert.True(t, cfg.PinOverview)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, "tile_size = [")
	_, err := LoadConfig(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	writeFile(t, invalid, `retirement = "sometimes"`)
	_, err = LoadConfig(invalid)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigNoFiles(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigPaths(t *testing.T) {
	paths := ConfigPaths()
	require.Len(t, paths, 2)
	assert.Equal(t, "config.toml", filepath.Base(paths[0]))
	assert.Equal(t, "slide", filepath.Base(filepath.Dir(paths[0])))
	assert.Equal(t, "slide.toml", paths[1])
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slide.toml")
	writeFile(t, path, "prefetch_margin = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type update struct {
		cfg Config
		err error
	}
	updates := make(chan update, 8)
	err := WatchConfig(ctx, path, func(cfg Config, err error) {
		updates <- update{cfg, err}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	writeFile(t, path, "prefetch_margin = 3\n")
	select {
	case u := <-updates:
		require.NoError(t, u.err)
		assert.Equal(t, 3, u.cfg.PrefetchMargin)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	writeFile(t, path, "workers = -1\n")
	select {
	case u := <-updates:
		assert.ErrorIs(t, u.err, ErrInvalidConfig)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after invalid write")
	}
}

func TestWatchConfigCallbacksDoNotOverlap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slide.toml")
	writeFile(t, path, "prefetch_margin = 0\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, overlap, calls atomic.Int32
	last := make(chan int, 64)
	err := WatchConfig(ctx, path, func(cfg Config, err error) {
		if running.Add(1) > 1 {
			overlap.Add(1)
		}
		defer running.Add(-1)
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		if err == nil {
			last <- cfg.PrefetchMargin
		}
	}, WithDebounce(5*time.Millisecond))
	require.NoError(t, err)

	for margin := 1; margin <= 4; margin++ {
		writeFile(t, path, fmt.Sprintf("prefetch_margin = %d\n", margin))
		time.Sleep(30 * time.Millisecond)
	}

	deadline := time.After(5 * time.Second)
	for got := -1; got != 4; {
		select {
		case got = <-last:
		case <-deadline:
			t.Fatalf("never saw the final config after %d reloads", calls.Load())
		}
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	assert.Zero(t, overlap.Load(), "onChange ran concurrently")
}

func TestWatchConfigMissingDir(t *testing.T) {
	err := WatchConfig(context.Background(), filepath.Join(t.TempDir(), "nope", "slide.toml"), func(Config, error) {})
	assert.Error(t, err)
}
