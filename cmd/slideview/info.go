package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/tile"
)

type levelInfo struct {
	Level      int     `json:"level"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Downsample float64 `json:"downsample"`
	Columns    int     `json:"columns"`
	Rows       int     `json:"rows"`
	Bytes      int64   `json:"bytes"`
}

type imageInfo struct {
	Path          string      `json:"path"`
	Channels      int         `json:"channels"`
	TileSize      int         `json:"tile_size"`
	OverviewLevel int         `json:"overview_level"`
	OverviewBytes int64       `json:"overview_bytes"`
	Levels        []levelInfo `json:"levels"`
}

func newInfoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print the pyramid levels and tile grid of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			info, err := describe(args[0], src, g.cfg.TileSize)
			if err != nil {
				return err
			}
			if g.json {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			return printInfo(cmd.OutOrStdout(), info)
		},
	}
}

// describe collects the level geometry of src at tileSize. Sizes are for
// decoded RGBA tiles, which is what the cache holds.
func describe(path string, src *source.Pyramid, tileSize int) (imageInfo, error) {
	grid, err := source.NewGrid(src, tileSize)
	if err != nil {
		return imageInfo{}, err
	}
	levels, err := source.Levels(src)
	if err != nil {
		return imageInfo{}, err
	}

	info := imageInfo{
		Path:          path,
		Channels:      src.Channels(),
		TileSize:      grid.TileSize(),
		OverviewLevel: source.OverviewLevel(src, grid.TileSize()),
	}
	for l, lv := range levels {
		li := levelInfo{
			Level:      l,
			Width:      lv.Width,
			Height:     lv.Height,
			Downsample: lv.Downsample,
			Columns:    grid.Columns(l),
			Rows:       grid.Rows(l),
			Bytes:      spanBytes(grid, grid.LevelSpan(l)),
		}
		info.Levels = append(info.Levels, li)
		if l == info.OverviewLevel {
			info.OverviewBytes = li.Bytes
		}
	}
	return info, nil
}

// spanBytes is the decoded size of the tiles in s.
func spanBytes(grid *tile.Grid, s tile.Span) int64 {
	var n int64
	for _, id := range s.IDs() {
		if r, ok := grid.Region(id); ok {
			n += int64(r.Width) * int64(r.Height) * 4
		}
	}
	return n
}

func printInfo(w io.Writer, info imageInfo) error {
	p := printer()
	p.Fprintf(w, "%s: %d channels, %d px tiles, overview level %d (%s)\n\n",
		info.Path, info.Channels, info.TileSize, info.OverviewLevel, humanize.IBytes(uint64(info.OverviewBytes)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "level\twidth\theight\tdownsample\ttiles\tdecoded\t")
	for _, l := range info.Levels {
		p.Fprintf(tw, "%d\t%d\t%d\t%.2f\t%d x %d\t%s\t\n",
			l.Level, l.Width, l.Height, l.Downsample, l.Columns, l.Rows, humanize.IBytes(uint64(l.Bytes)))
	}
	return tw.Flush()
}
