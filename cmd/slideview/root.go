package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/slide"
	"github.com/gogpu/slide/source"
)

// globals holds the persistent flags and the configuration they produce.
type globals struct {
	configPaths  []string
	logLevel     string
	minLevelSize int
	json         bool

	cfg slide.Config
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "slideview",
		Short:         "Stream tiles of large images through a bounded cache",
		Version:       slide.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd.ErrOrStderr())
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&g.configPaths, "config", nil, "TOML config files, later ones win (default: XDG config, then ./slide.toml)")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")
	pf.IntVar(&g.minLevelSize, "min-level-size", 256, "smallest pyramid level edge built for plain raster files")
	pf.BoolVar(&g.json, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newInfoCmd(g),
		newLevelsCmd(g),
		newRenderCmd(g),
		newConfigCmd(g),
	)
	return root
}

// setup loads the configuration and installs the package logger.
func (g *globals) setup(stderr io.Writer) error {
	cfg, err := slide.LoadConfig(g.configPaths...)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if level, err = slide.ParseLevel(cfg.LogLevel); err != nil {
			return err
		}
	}
	slide.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	g.cfg = cfg
	return nil
}

func (g *globals) open(path string) (*source.Pyramid, error) {
	return source.Open(path, source.WithMinLevelSize(g.minLevelSize))
}

// printer formats counts with digit grouping.
func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
