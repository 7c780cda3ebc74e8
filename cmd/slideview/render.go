package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cobra"

	"github.com/gogpu/slide"
	"github.com/gogpu/slide/overlay"
	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/surface"
)

type renderFlags struct {
	script     string
	out        string
	width      int
	height     int
	surface    string
	filter     string
	background string
	channel    int
	retirement string
	watch      string

	overlay        string
	lut            string
	discrete       bool
	opacity        float64
	overlayChannel int
	overlayScale   float64
}

type renderReport struct {
	Path      string      `json:"path"`
	Surface   string      `json:"surface"`
	Session   string      `json:"session"`
	Steps     int         `json:"steps"`
	Snapshots []string    `json:"snapshots,omitempty"`
	Elapsed   string      `json:"elapsed"`
	Stats     slide.Stats `json:"stats"`
}

func newRenderCmd(g *globals) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Replay a viewport script through the tile manager and write the view to PNG",
		Long: `Render opens FILE, feeds the field-of-view changes of a YAML script to a
tile manager and composites the attached tiles of the last view into a PNG.
Without a script the whole image is shown once after loading the overview.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, f, args[0])
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.script, "script", "", "YAML viewport script")
	fl.StringVarP(&f.out, "out", "o", "view.png", "PNG written with the last view")
	fl.IntVar(&f.width, "width", 1024, "output width, unless the script sets one")
	fl.IntVar(&f.height, "height", 768, "output height, unless the script sets one")
	fl.StringVar(&f.surface, "surface", "", "surface backend (default: best available)")
	fl.StringVar(&f.filter, "filter", "bilinear", "tile scaling: nearest, bilinear or catmullrom")
	fl.StringVar(&f.background, "background", "#ffffff", "color behind missing tiles")
	fl.IntVar(&f.channel, "channel", -1, "render one background channel as gray")
	fl.StringVar(&f.retirement, "retirement", "", "lazy or eager (overrides the config)")
	fl.StringVar(&f.watch, "watch", "", "apply this config file between steps whenever it changes")
	fl.StringVar(&f.overlay, "overlay", "", "foreground image blended over the tiles")
	fl.StringVar(&f.lut, "lut", "labels", "overlay LUT: gray, heat, labels or value:#rrggbb[:alpha],...")
	fl.BoolVar(&f.discrete, "discrete", false, "treat a custom LUT as discrete labels")
	fl.Float64Var(&f.opacity, "opacity", 0.5, "overlay opacity")
	fl.IntVar(&f.overlayChannel, "overlay-channel", 0, "overlay channel mapped through the LUT, -1 for its own colors")
	fl.Float64Var(&f.overlayScale, "overlay-scale", 1, "background pixels per overlay pixel")
	return cmd
}

func runRender(cmd *cobra.Command, g *globals, f *renderFlags, path string) error {
	start := time.Now()
	src, err := g.open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	var s *script
	if f.script != "" {
		if s, err = loadScript(f.script); err != nil {
			return err
		}
	} else {
		w0, h0, _ := src.LevelDimensions(0)
		s = overviewScript(w0, h0)
	}
	width, height := f.width, f.height
	if s.Width > 0 {
		width = s.Width
	}
	if s.Height > 0 {
		height = s.Height
	}

	surf, name, err := f.newSurface()
	if err != nil {
		return err
	}

	opts := []slide.Option{slide.WithConfig(f.override(g.cfg)), slide.WithBackgroundChannel(f.channel)}
	if f.overlay != "" {
		ov, fg, err := f.newOverlay(g)
		if err != nil {
			return err
		}
		defer fg.Close()
		opts = append(opts, slide.WithOverlay(ov))
	}

	m, err := slide.NewManager(src, surf, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	p := &player{m: m, width: width, height: height}
	p.canvas, _ = surf.(*surface.Canvas)
	if f.watch != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if p.reloads, err = f.watchConfig(ctx); err != nil {
			return err
		}
	}
	if err := p.run(cmd.Context(), s); err != nil {
		return err
	}
	if p.canvas != nil && f.out != "" {
		if err := p.snapshot(f.out); err != nil {
			return err
		}
	}

	report := renderReport{
		Path:      path,
		Surface:   name,
		Session:   m.Session(),
		Steps:     len(s.Steps),
		Snapshots: p.shots,
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		Stats:     m.Stats(),
	}
	if g.json {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

// override applies the flags that take precedence over the config file.
func (f *renderFlags) override(cfg slide.Config) slide.Config {
	if f.retirement != "" {
		cfg.Retirement = slide.Retirement(f.retirement)
	}
	return cfg
}

// watchConfig queues every valid reload of the watched file. The player
// applies them on its own goroutine.
func (f *renderFlags) watchConfig(ctx context.Context) (<-chan slide.Config, error) {
	reloads := make(chan slide.Config, 4)
	err := slide.WatchConfig(ctx, f.watch, func(cfg slide.Config, err error) {
		if err != nil {
			slide.Logger().Warn("slideview: config rejected", "path", f.watch, "err", err)
			return
		}
		select {
		case reloads <- f.override(cfg):
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	slide.Logger().Info("slideview: watching config", "path", f.watch)
	return reloads, nil
}

func (f *renderFlags) newSurface() (surface.Surface, string, error) {
	filter, ok := surface.ParseFilter(f.filter)
	if !ok {
		return nil, "", fmt.Errorf("unknown filter %q", f.filter)
	}
	bg, err := colorful.Hex(f.background)
	if err != nil {
		return nil, "", fmt.Errorf("background: %w", err)
	}
	opts := surface.Options{Background: bg, Filter: filter}

	var s surface.Surface
	if f.surface == "" {
		s, err = surface.NewSurface(opts)
	} else {
		s, err = surface.NewSurfaceByName(f.surface, opts)
	}
	if err != nil {
		return nil, "", err
	}
	return s, surfaceName(s), nil
}

func surfaceName(s surface.Surface) string {
	switch s.(type) {
	case *surface.Canvas:
		return "canvas"
	case *surface.Discard:
		return "discard"
	}
	return fmt.Sprintf("%T", s)
}

func (f *renderFlags) newOverlay(g *globals) (*overlay.Config, *source.Pyramid, error) {
	fg, err := g.open(f.overlay)
	if err != nil {
		return nil, nil, fmt.Errorf("overlay: %w", err)
	}
	var lut *overlay.LUT
	if f.overlayChannel >= 0 {
		if strings.Contains(f.lut, ":") {
			lut, err = overlay.Parse("custom", f.lut, f.discrete)
		} else {
			lut, err = overlay.Named(f.lut)
		}
		if err != nil {
			fg.Close()
			return nil, nil, err
		}
	}
	return &overlay.Config{
		Source:  fg,
		Channel: f.overlayChannel,
		LUT:     lut,
		Opacity: f.opacity,
		Scale:   f.overlayScale,
		Enabled: true,
	}, fg, nil
}

func printReport(w io.Writer, r renderReport) {
	p := printer()
	st := r.Stats
	p.Fprintf(w, "%s: %d steps on %s surface in %s\n", r.Path, r.Steps, r.Surface, r.Elapsed)
	p.Fprintf(w, "  jobs       %d submitted (%d prefetch), %d decoded, %d stale, %d superseded, %d failed\n",
		st.Submitted, st.Prefetched, st.Decoded, st.Stale, st.Superseded, st.Failed)
	p.Fprintf(w, "  cache      %s of %s in %d tiles (%s pinned), %d evicted, %d rejected, %.1f%% hits\n",
		humanize.IBytes(uint64(st.CacheBytes)), humanize.IBytes(uint64(st.CacheMaxBytes)), st.CacheEntries,
		humanize.IBytes(uint64(st.PinnedBytes)), st.Evicted, st.Rejected, st.CacheHitRate*100)
	p.Fprintf(w, "  surface    %d tiles attached\n", st.Attached)
	for _, s := range r.Snapshots {
		fmt.Fprintf(w, "  wrote      %s\n", s)
	}
}
