package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/slide"
	"github.com/gogpu/slide/surface"
	"github.com/gogpu/slide/tile"
)

// script is a recorded viewing session:
//
//	width: 800
//	height: 600
//	initialize: true
//	steps:
//	  - view: {x: 0, y: 0, width: 40000, height: 30000}
//	  - view: {x: 12000, y: 8000, width: 4000, height: 3000, level: 1}
//	    snapshot: zoomed.png
//	  - cache: 64MiB
//	  - channel: 1
//	  - refresh: true
type script struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Initialize bool   `yaml:"initialize"`
	Steps      []step `yaml:"steps"`
}

// step is one action. Fields may be combined; they apply in declaration
// order and the step then settles unless settle is false.
type step struct {
	Cache    string `yaml:"cache,omitempty"`
	Channel  *int   `yaml:"channel,omitempty"`
	Clear    bool   `yaml:"clear,omitempty"`
	View     *view  `yaml:"view,omitempty"`
	Refresh  bool   `yaml:"refresh,omitempty"`
	Settle   *bool  `yaml:"settle,omitempty"`
	Snapshot string `yaml:"snapshot,omitempty"`
}

// view is a field of view in base image coordinates. Without a level the
// one matching the output zoom is used.
type view struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Level  *int    `yaml:"level,omitempty"`
}

var errScript = errors.New("invalid script")

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := parseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// parseScript decodes a YAML script, rejecting unknown keys.
func parseScript(data []byte) (*script, error) {
	var s script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", errScript, err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *script) validate() error {
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("%w: output size %dx%d", errScript, s.Width, s.Height)
	}
	for i, st := range s.Steps {
		if v := st.View; v != nil && (!(v.Width > 0) || !(v.Height > 0)) {
			return fmt.Errorf("%w: step %d: view size %vx%v", errScript, i+1, v.Width, v.Height)
		}
		if st.Cache != "" {
			if _, err := humanize.ParseBytes(st.Cache); err != nil {
				return fmt.Errorf("%w: step %d: cache: %w", errScript, i+1, err)
			}
		}
	}
	return nil
}

// overviewScript shows the whole image once.
func overviewScript(w0, h0 int) *script {
	return &script{
		Initialize: true,
		Steps:      []step{{View: &view{Width: float64(w0), Height: float64(h0)}}},
	}
}

// player replays a script against a manager. It runs on the manager's
// goroutine.
type player struct {
	m      *slide.Manager
	canvas *surface.Canvas // nil when the surface cannot render
	width  int
	height int
	fov    tile.FieldOfView
	shots  []string

	// reloads delivers configs to apply before the next step.
	reloads <-chan slide.Config
}

func (p *player) run(ctx context.Context, s *script) error {
	if s.Initialize {
		if err := p.m.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}
	for i, st := range s.Steps {
		if err := p.apply(ctx, st); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *player) apply(ctx context.Context, st step) error {
	if err := p.reload(); err != nil {
		return err
	}
	if st.Cache != "" {
		n, err := humanize.ParseBytes(st.Cache)
		if err != nil {
			return err
		}
		if err := p.m.SetMaxCacheSize(int64(n)); err != nil {
			return err
		}
	}
	if st.Channel != nil {
		if err := p.m.SetBackgroundChannel(*st.Channel); err != nil {
			return err
		}
	}
	if st.Clear {
		p.m.Clear()
	}
	if st.View != nil {
		if err := p.show(*st.View); err != nil {
			return err
		}
	}
	if st.Refresh {
		if err := p.m.Refresh(); err != nil {
			return err
		}
	}

	if st.Settle == nil || *st.Settle {
		if err := p.m.Settle(ctx); err != nil {
			return err
		}
	} else {
		p.m.Poll()
	}

	if st.Snapshot != "" {
		if err := p.snapshot(st.Snapshot); err != nil {
			return err
		}
	}
	return nil
}

// reload applies the newest pending config, if any. A config the manager
// refuses is logged and skipped.
func (p *player) reload() error {
	var (
		cfg     slide.Config
		pending bool
	)
	for drained := false; !drained; {
		select {
		case c := <-p.reloads:
			cfg, pending = c, true
		default:
			drained = true
		}
	}
	if !pending {
		return nil
	}
	err := p.m.ApplyConfig(cfg)
	switch {
	case errors.Is(err, slide.ErrShutdown):
		return err
	case err != nil:
		slide.Logger().Warn("slideview: config not applied", "err", err)
	default:
		slide.Logger().Info("slideview: config applied", "max_cache_bytes", cfg.MaxCacheBytes)
	}
	return nil
}

func (p *player) show(v view) error {
	fov := tile.FieldOfView{Rect: tile.Rect{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height}}
	if v.Level != nil {
		fov.Level = *v.Level
	} else {
		fov.Level = p.m.LevelFor(max(v.Width/float64(p.width), v.Height/float64(p.height)))
	}
	if err := p.m.OnFieldOfViewChanged(fov); err != nil {
		return err
	}
	p.fov = fov
	return nil
}

// snapshot writes the current view to a PNG file.
func (p *player) snapshot(path string) error {
	if p.canvas == nil {
		return fmt.Errorf("snapshot %s: surface cannot render", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, p.canvas.Render(p.fov, p.width, p.height)); err != nil {
		f.Close()
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	p.shots = append(p.shots, path)
	return nil
}
