package slide

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/slide/overlay"
	"github.com/gogpu/slide/surface"
)

// TestDefaultOptions tests the values used when no option is given.
func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()

	if o.config != DefaultConfig() {
		t.Errorf("config = %+v, want DefaultConfig()", o.config)
	}
	if o.logger != nil {
		t.Error("logger should be nil by default")
	}
	if o.overlay != nil {
		t.Error("overlay should be nil by default")
	}
	if o.backgroundChannel != -1 {
		t.Errorf("backgroundChannel = %d, want -1", o.backgroundChannel)
	}
	if o.plane != 0 {
		t.Errorf("plane = %d, want 0", o.plane)
	}
}

// TestOptionsApply tests that each option sets its field.
func TestOptionsApply(t *testing.T) {
	logger := slog.New(nopHandler{})
	ov := &overlay.Config{}

	o := defaultOptions()
	for _, opt := range []Option{
		WithMaxCacheSize(1 << 20),
		WithWorkers(3),
		WithTileSize(256),
		WithRetirement(RetireEager),
		WithPrefetch(2, false),
		WithLogger(logger),
		WithOverlay(ov),
		WithBackgroundChannel(1),
		WithPlane(2),
	} {
		opt(&o)
	}

	if o.config.MaxCacheBytes != 1<<20 {
		t.Errorf("MaxCacheBytes = %d, want %d", o.config.MaxCacheBytes, 1<<20)
	}
	if o.config.Workers != 3 {
		t.Errorf("Workers = %d, want 3", o.config.Workers)
	}
	if o.config.TileSize != 256 {
		t.Errorf("TileSize = %d, want 256", o.config.TileSize)
	}
	if o.config.Retirement != RetireEager {
		t.Errorf("Retirement = %q, want %q", o.config.Retirement, RetireEager)
	}
	if o.config.PrefetchMargin != 2 || o.config.PrefetchAdjacentLevels {
		t.Errorf("prefetch = (%d, %v), want (2, false)", o.config.PrefetchMargin, o.config.PrefetchAdjacentLevels)
	}
	if o.logger != logger {
		t.Error("WithLogger did not set the logger")
	}
	if o.overlay != ov {
		t.Error("WithOverlay did not set the overlay")
	}
	if o.backgroundChannel != 1 {
		t.Errorf("backgroundChannel = %d, want 1", o.backgroundChannel)
	}
	if o.plane != 2 {
		t.Errorf("plane = %d, want 2", o.plane)
	}
}

// TestWithConfigThenOverride tests that options after WithConfig win.
func TestWithConfigThenOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 7
	cfg.TileSize = 128

	o := defaultOptions()
	WithConfig(cfg)(&o)
	WithWorkers(1)(&o)

	if o.config.Workers != 1 {
		t.Errorf("Workers = %d, want 1", o.config.Workers)
	}
	if o.config.TileSize != 128 {
		t.Errorf("TileSize = %d, want 128", o.config.TileSize)
	}
}

// TestNewManagerWithLogger tests that a manager logs to the given logger
// rather than the package logger.
func TestNewManagerWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m, err := NewManager(testPyramid(t), surface.NewDiscard(),
		WithTileSize(testTile), WithWorkers(1), WithLogger(logger))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if m.Session() == "" {
		t.Fatal("Session() is empty")
	}
	out := buf.String()
	if !strings.Contains(out, "manager started") || !strings.Contains(out, "session="+m.Session()) {
		t.Errorf("expected tagged lifecycle records, got: %s", out)
	}
}
