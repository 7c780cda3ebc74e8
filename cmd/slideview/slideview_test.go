package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFixture writes a 600x400 PNG with a red left half and a blue right
// half, plus a config file so the user's own configuration is ignored.
func writeFixture(t *testing.T) (dir, img, cfg string) {
	t.Helper()
	dir = t.TempDir()

	m := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for y := range 400 {
		for x := range 600 {
			c := color.RGBA{R: 0xFF, A: 0xFF}
			if x >= 300 {
				c = color.RGBA{B: 0xFF, A: 0xFF}
			}
			m.SetRGBA(x, y, c)
		}
	}
	img = filepath.Join(dir, "slide.png")
	f, err := os.Create(img)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, m))
	require.NoError(t, f.Close())

	cfg = filepath.Join(dir, "slide.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("tile_size = 128\nworkers = 2\nlog_level = \"warn\"\n"), 0o600))
	return dir, img, cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfoJSON(t *testing.T) {
	_, img, cfg := writeFixture(t)

	out, err := run(t, "info", "--config", cfg, "--min-level-size", "100", "--json", img)
	require.NoError(t, err)

	var info imageInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 128, info.TileSize)
	assert.Equal(t, 4, info.Channels)
	require.Len(t, info.Levels, 4)
	assert.Equal(t, 600, info.Levels[0].Width)
	assert.Equal(t, 5, info.Levels[0].Columns)
	assert.Equal(t, 4, info.Levels[0].Rows)
	assert.Equal(t, int64(600*400*4), info.Levels[0].Bytes)
	assert.Equal(t, 1, info.OverviewLevel)
}

func TestInfoText(t *testing.T) {
	_, img, cfg := writeFixture(t)

	out, err := run(t, "info", "--config", cfg, img)
	require.NoError(t, err)
	assert.Contains(t, out, "overview level")
	assert.Contains(t, out, "downsample")
}

func TestLevels(t *testing.T) {
	_, img, cfg := writeFixture(t)

	out, err := run(t, "levels", "--config", cfg, "--min-level-size", "100", "--json",
		"--width", "300", "--height", "200", "--downsample", "1,2,100", img)
	require.NoError(t, err)

	var choices []levelChoice
	require.NoError(t, json.Unmarshal([]byte(out), &choices))
	require.Len(t, choices, 3)
	assert.Equal(t, 0, choices[0].Level)
	assert.Equal(t, 1, choices[1].Level)
	assert.Equal(t, 3, choices[2].Level, "coarser than the last level")
	assert.Equal(t, 1, choices[2].Tiles)
}

func TestLevelsRejectsBadViewport(t *testing.T) {
	_, img, cfg := writeFixture(t)
	_, err := run(t, "levels", "--config", cfg, "--width", "0", img)
	assert.Error(t, err)
}

func TestRenderScript(t *testing.T) {
	dir, img, cfg := writeFixture(t)
	shot := filepath.Join(dir, "left.png")
	out := filepath.Join(dir, "view.png")
	scriptPath := filepath.Join(dir, "view.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
width: 60
height: 40
initialize: true
steps:
  - view: {x: 0, y: 0, width: 600, height: 400}
  - view: {x: 0, y: 0, width: 200, height: 200, level: 0}
    snapshot: `+shot+`
  - cache: 1MiB
  - view: {x: 400, y: 200, width: 200, height: 200}
`), 0o600))

	stdout, err := run(t, "render", "--config", cfg, "--min-level-size", "100",
		"--script", scriptPath, "--out", out, "--json", img)
	require.NoError(t, err)

	var report renderReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "canvas", report.Surface)

	var raw struct {
		Stats map[string]any `json:"stats"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &raw))
	assert.Contains(t, raw.Stats, "cache_bytes")
	assert.Contains(t, raw.Stats, "cache_hit_rate")
	assert.NotContains(t, raw.Stats, "CacheBytes")
	assert.Equal(t, 4, report.Steps)
	assert.Equal(t, []string{shot, out}, report.Snapshots)
	assert.Zero(t, report.Stats.Failed)
	assert.LessOrEqual(t, report.Stats.CacheBytes, int64(1<<20))

	left := decodePNG(t, shot)
	assert.Equal(t, image.Rect(0, 0, 60, 40), left.Bounds())
	r, _, b, _ := left.At(30, 20).RGBA()
	assert.Greater(t, r, b, "left half is red")

	right := decodePNG(t, out)
	r, _, b, _ = right.At(30, 20).RGBA()
	assert.Greater(t, b, r, "right half is blue")
}

func TestRenderDefaultScriptWithOverlay(t *testing.T) {
	dir, img, cfg := writeFixture(t)
	out := filepath.Join(dir, "overview.png")

	stdout, err := run(t, "render", "--config", cfg, "--out", out,
		"--overlay", img, "--overlay-channel", "-1", "--opacity", "1",
		"--width", "120", "--height", "80", "--filter", "nearest", img)
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 steps on canvas surface")
	assert.Contains(t, stdout, "wrote")

	view := decodePNG(t, out)
	assert.Equal(t, image.Rect(0, 0, 120, 80), view.Bounds())
}

func TestRenderDiscardSurface(t *testing.T) {
	dir, img, cfg := writeFixture(t)
	out := filepath.Join(dir, "none.png")

	stdout, err := run(t, "render", "--config", cfg, "--surface", "discard", "--out", out, img)
	require.NoError(t, err)
	assert.Contains(t, stdout, "discard surface")
	assert.NoFileExists(t, out)
}

func TestRenderErrors(t *testing.T) {
	dir, img, cfg := writeFixture(t)
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps:\n  - zoom: 2\n"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"unknown script key", []string{"--script", bad}},
		{"unknown filter", []string{"--filter", "sinc"}},
		{"unknown surface", []string{"--surface", "vulkan"}},
		{"bad background", []string{"--background", "red"}},
		{"bad retirement", []string{"--retirement", "never"}},
		{"unknown lut", []string{"--overlay", img, "--lut", "rainbow"}},
		{"watch missing dir", []string{"--watch", filepath.Join(dir, "nope", "slide.toml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"render", "--config", cfg, "--out", filepath.Join(dir, "x.png")}, tt.args...)
			_, err := run(t, append(args, img)...)
			assert.Error(t, err)
		})
	}
}

func TestConfigCommand(t *testing.T) {
	_, _, cfg := writeFixture(t)

	out, err := run(t, "config", "--config", cfg)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "tile_size") && strings.Contains(out, "128"), out)

	out, err = run(t, "config", "--config", cfg, "--json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 2, got["workers"])
	assert.Equal(t, "lazy", got["retirement"])
}

func TestLogLevelFlag(t *testing.T) {
	_, _, cfg := writeFixture(t)
	_, err := run(t, "config", "--config", cfg, "--log-level", "chatty")
	assert.Error(t, err)
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}
