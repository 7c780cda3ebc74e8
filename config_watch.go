package slide

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long WatchConfig waits for writes to settle.
const DefaultWatchDebounce = 100 * time.Millisecond

// WatchOption configures WatchConfig.
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce sets how long to wait after the last change before reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WatchConfig reloads the TOML file at path whenever it changes and passes
// the result to onChange. All calls to onChange are made from a single
// watcher goroutine, one at a time and in the order the file changed. A
// file that fails to load or validate is reported through the error
// argument.
//
// The directory is watched rather than the file so editors that replace
// the file atomically are handled. Watching stops when ctx is done.
func WatchConfig(ctx context.Context, path string, onChange func(Config, error), opts ...WatchOption) error {
	o := watchOptions{debounce: DefaultWatchDebounce}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("slide: watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("slide: watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("slide: watch %s: %w", path, err)
	}

	go func() {
		defer w.Close()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		target := filepath.Base(abs)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(o.debounce)
				} else {
					timer.Reset(o.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				cfg, err := LoadConfig(abs)
				onChange(cfg, err)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				Logger().Warn("slide: config watch error", "path", abs, "err", err)
			}
		}
	}()
	return nil
}
