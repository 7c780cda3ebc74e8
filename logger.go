package slide

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// nopHandler drops every record. Enabled reports false so callers skip
// building attributes.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var (
	silent  = slog.New(nopHandler{})
	current atomic.Pointer[slog.Logger]
)

func init() { current.Store(silent) }

// SetLogger routes the log output of slide and its sub-packages to l. Nil
// restores the default, which writes nothing. It may be called while
// managers are running.
//
// Debug records trace single tiles (submit, attach, evict). Info records
// cover manager lifecycle and cache resizes. Warn records report failed
// decodes and tiles the cache rejected.
//
//	slide.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	current.Store(l)
}

// Logger returns the logger set with SetLogger.
func Logger() *slog.Logger { return current.Load() }

// sessionLogger returns l tagged with a fresh session id, so the log lines
// of several managers in one process can be told apart.
func sessionLogger(l *slog.Logger) (*slog.Logger, string) {
	id := uuid.NewString()
	return l.With(slog.String("session", id)), id
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(name))
	return lvl, err
}
