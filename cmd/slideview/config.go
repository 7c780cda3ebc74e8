package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gogpu/slide"
)

func newConfigCmd(g *globals) *cobra.Command {
	var watch string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or follow a config file with --watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if err := printConfig(out, g.cfg, g.json); err != nil {
				return err
			}
			if watch == "" {
				return nil
			}

			ctx := cmd.Context()
			err := slide.WatchConfig(ctx, watch, func(cfg slide.Config, err error) {
				if err != nil {
					slide.Logger().Warn("slideview: config rejected", "path", watch, "err", err)
					return
				}
				if err := printConfig(out, cfg, g.json); err != nil {
					slide.Logger().Warn("slideview: print config", "err", err)
				}
			})
			if err != nil {
				return err
			}
			slide.Logger().Info("slideview: watching config", "path", watch)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&watch, "watch", "", "reload and print this file whenever it changes")
	return cmd
}

func printConfig(w io.Writer, cfg slide.Config, asJSON bool) error {
	if asJSON {
		return writeJSON(w, configJSON(cfg))
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "max_cache_bytes\t%d\t(%s)\n", cfg.MaxCacheBytes, humanize.IBytes(uint64(cfg.MaxCacheBytes)))
	fmt.Fprintf(tw, "tile_size\t%d\n", cfg.TileSize)
	fmt.Fprintf(tw, "workers\t%d\n", cfg.Workers)
	fmt.Fprintf(tw, "prefetch_margin\t%d\n", cfg.PrefetchMargin)
	fmt.Fprintf(tw, "prefetch_adjacent_levels\t%t\n", cfg.PrefetchAdjacentLevels)
	fmt.Fprintf(tw, "prefetch_backlog\t%d\n", cfg.PrefetchBacklog)
	fmt.Fprintf(tw, "retirement\t%s\n", cfg.Retirement)
	fmt.Fprintf(tw, "pin_overview\t%t\n", cfg.PinOverview)
	fmt.Fprintf(tw, "log_level\t%s\n", cfg.LogLevel)
	fmt.Fprintln(tw)
	return tw.Flush()
}

// configJSON mirrors the TOML keys.
func configJSON(cfg slide.Config) map[string]any {
	return map[string]any{
		"max_cache_bytes":          cfg.MaxCacheBytes,
		"tile_size":                cfg.TileSize,
		"workers":                  cfg.Workers,
		"prefetch_margin":          cfg.PrefetchMargin,
		"prefetch_adjacent_levels": cfg.PrefetchAdjacentLevels,
		"prefetch_backlog":         cfg.PrefetchBacklog,
		"retirement":               cfg.Retirement,
		"pin_overview":             cfg.PinOverview,
		"log_level":                cfg.LogLevel,
	}
}
