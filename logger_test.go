package slide

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandler(t *testing.T) {
	var h slog.Handler = nopHandler{}
	ctx := context.Background()
	for _, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(ctx, lvl) {
			t.Errorf("Enabled(%v) = true", lvl)
		}
	}
	if err := h.Handle(ctx, slog.Record{}); err != nil {
		t.Errorf("Handle() = %v", err)
	}
	for name, derived := range map[string]slog.Handler{
		"WithAttrs": h.WithAttrs([]slog.Attr{slog.Int("level", 3)}),
		"WithGroup": h.WithGroup("tile"),
	} {
		if _, ok := derived.(nopHandler); !ok {
			t.Errorf("%s returned %T", name, derived)
		}
	}
}

func TestLoggerSilentByDefault(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() = nil")
	}
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("default logger is enabled")
	}
}

func TestSetLoggerRoundTrip(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(l)
	if Logger() != l {
		t.Fatal("Logger() is not the logger passed to SetLogger")
	}
	Logger().Debug("tile attached", "col", 4)
	if !strings.Contains(buf.String(), "tile attached") || !strings.Contains(buf.String(), "col=4") {
		t.Errorf("log output = %q", buf.String())
	}

	SetLogger(nil)
	if Logger() == nil || Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}

func TestSessionLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	l1, id1 := sessionLogger(base)
	_, id2 := sessionLogger(base)
	if id1 == "" || id1 == id2 {
		t.Fatalf("session ids %q and %q should be distinct and non-empty", id1, id2)
	}

	l1.Info("tagged")
	if !strings.Contains(buf.String(), "session="+id1) {
		t.Errorf("missing session attribute: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "INFO", want: slog.LevelInfo},
		{name: "warn", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.name, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// Swapping the logger while workers log must be race free.
func TestSetLoggerConcurrent(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				Logger().Debug("decode", "worker", i)
				return
			}
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("tile attached", "level", 2, "col", 7)
	}
}
