package main

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slide"
	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/surface"
)

func TestParseScript(t *testing.T) {
	s, err := parseScript([]byte(`
width: 800
height: 600
initialize: true
steps:
  - view: {x: 10, y: 20, width: 300, height: 200}
  - view: {x: 0, y: 0, width: 100, height: 100, level: 2}
    settle: false
  - cache: 64MiB
    channel: 1
  - refresh: true
    snapshot: out.png
  - clear: true
`))
	require.NoError(t, err)

	assert.Equal(t, 800, s.Width)
	assert.True(t, s.Initialize)
	require.Len(t, s.Steps, 5)

	v := s.Steps[0].View
	require.NotNil(t, v)
	assert.Equal(t, view{X: 10, Y: 20, Width: 300, Height: 200}, *v)

	require.NotNil(t, s.Steps[1].View.Level)
	assert.Equal(t, 2, *s.Steps[1].View.Level)
	require.NotNil(t, s.Steps[1].Settle)
	assert.False(t, *s.Steps[1].Settle)

	assert.Equal(t, "64MiB", s.Steps[2].Cache)
	require.NotNil(t, s.Steps[2].Channel)
	assert.Equal(t, 1, *s.Steps[2].Channel)
	assert.True(t, s.Steps[3].Refresh)
	assert.Equal(t, "out.png", s.Steps[3].Snapshot)
	assert.True(t, s.Steps[4].Clear)
}

func TestParseScriptEmpty(t *testing.T) {
	s, err := parseScript(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Steps)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "steps:\n  - zoom: 2\n"},
		{"not yaml", "steps: [\n"},
		{"negative size", "width: -1\n"},
		{"empty view", "steps:\n  - view: {x: 1, y: 1}\n"},
		{"bad cache", "steps:\n  - cache: lots\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScript([]byte(tt.src))
			assert.ErrorIs(t, err, errScript)
		})
	}
}

func TestOverviewScript(t *testing.T) {
	s := overviewScript(4000, 3000)
	require.NoError(t, s.validate())
	assert.True(t, s.Initialize)
	require.Len(t, s.Steps, 1)
	assert.Equal(t, 4000.0, s.Steps[0].View.Width)
}

func TestPlayerAppliesReloadedConfig(t *testing.T) {
	src, err := source.NewPyramid(image.NewRGBA(image.Rect(0, 0, 512, 512)), source.WithMinLevelSize(128))
	require.NoError(t, err)
	defer src.Close()

	cfg := slide.DefaultConfig()
	cfg.TileSize = 128
	cfg.Workers = 2
	cfg.PrefetchMargin = 0
	cfg.PrefetchAdjacentLevels = false
	m, err := slide.NewManager(src, surface.NewCanvas(surface.Options{}), slide.WithConfig(cfg))
	require.NoError(t, err)
	defer m.Close()

	reloads := make(chan slide.Config, 2)
	p := &player{m: m, width: 64, height: 64, reloads: reloads}
	ctx := context.Background()
	level := 0

	require.NoError(t, p.apply(ctx, step{View: &view{Width: 512, Height: 512, Level: &level}}))
	before := m.Stats()
	require.Equal(t, 16, before.CacheEntries)
	require.Zero(t, before.Evicted)

	const tileBytes = 128 * 128 * 4
	small := cfg
	small.MaxCacheBytes = 4 * tileBytes
	stale := small
	stale.MaxCacheBytes = 8 * tileBytes
	reloads <- stale
	reloads <- small

	require.NoError(t, p.apply(ctx, step{View: &view{Width: 256, Height: 256, Level: &level}}))
	after := m.Stats()
	assert.Equal(t, small.MaxCacheBytes, m.Config().MaxCacheBytes, "newest reload wins")
	assert.Equal(t, small.MaxCacheBytes, after.CacheMaxBytes)
	assert.LessOrEqual(t, after.CacheBytes, small.MaxCacheBytes)
	assert.GreaterOrEqual(t, after.Evicted, uint64(12))

	require.NoError(t, p.apply(ctx, step{}))
	assert.Equal(t, small.MaxCacheBytes, m.Config().MaxCacheBytes, "no reload pending")
}
