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

// levelChoice is the level picked for one zoom factor and what showing a
// viewport at that zoom costs.
type levelChoice struct {
	Downsample float64 `json:"downsample"`
	Level      int     `json:"level"`
	Tiles      int     `json:"tiles"`
	Bytes      int64   `json:"bytes"`
}

func newLevelsCmd(g *globals) *cobra.Command {
	var (
		width, height int
		downsamples   []float64
	)
	cmd := &cobra.Command{
		Use:   "levels FILE",
		Short: "Show which level and how many tiles a centered viewport needs per zoom",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 || height <= 0 {
				return fmt.Errorf("viewport must be positive, got %dx%d", width, height)
			}
			src, err := g.open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			choices, err := chooseLevels(src, g.cfg.TileSize, width, height, downsamples)
			if err != nil {
				return err
			}
			if g.json {
				return writeJSON(cmd.OutOrStdout(), choices)
			}
			return printLevels(cmd.OutOrStdout(), choices)
		},
	}
	cmd.Flags().IntVar(&width, "width", 1920, "viewport width in screen pixels")
	cmd.Flags().IntVar(&height, "height", 1080, "viewport height in screen pixels")
	cmd.Flags().Float64SliceVar(&downsamples, "downsample", []float64{1, 2, 4, 8, 16, 32, 64}, "zoom factors, base pixels per screen pixel")
	return cmd
}

func chooseLevels(src source.ImageSource, tileSize, width, height int, downsamples []float64) ([]levelChoice, error) {
	grid, err := source.NewGrid(src, tileSize)
	if err != nil {
		return nil, err
	}
	w0, h0, err := src.LevelDimensions(0)
	if err != nil {
		return nil, err
	}

	out := make([]levelChoice, 0, len(downsamples))
	for _, ds := range downsamples {
		if !(ds > 0) {
			return nil, fmt.Errorf("downsample must be positive, got %v", ds)
		}
		fw, fh := float64(width)*ds, float64(height)*ds
		fov := tile.FieldOfView{
			Rect:  tile.Rect{X: (float64(w0) - fw) / 2, Y: (float64(h0) - fh) / 2, Width: fw, Height: fh},
			Level: source.BestLevelForDownsample(src, ds),
		}
		span := grid.Span(fov.Rect, fov.Level)
		out = append(out, levelChoice{
			Downsample: ds,
			Level:      fov.Level,
			Tiles:      span.Len(),
			Bytes:      spanBytes(grid, span),
		})
	}
	return out, nil
}

func printLevels(w io.Writer, choices []levelChoice) error {
	p := printer()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "downsample\tlevel\ttiles\tdecoded\t")
	for _, c := range choices {
		p.Fprintf(tw, "%.2f\t%d\t%d\t%s\t\n", c.Downsample, c.Level, c.Tiles, humanize.IBytes(uint64(c.Bytes)))
	}
	return tw.Flush()
}
