package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/tile"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("overlay: invalid config")

// Config describes a foreground overlay.
//
// A Config is treated as immutable once handed to a Manager; replace it
// rather than modifying it.
type Config struct {
	// Source is the foreground image.
	Source source.ImageSource

	// Channel selects the sample mapped through LUT. A negative value
	// uses the foreground's own colors.
	Channel int

	// LUT maps samples to colors. Required when Channel >= 0.
	LUT *LUT

	// Opacity of the foreground in [0, 1].
	Opacity float64

	// Scale is the number of background level-0 pixels covered by one
	// foreground level-0 pixel. Zero means 1.
	Scale float64

	// Enabled toggles the overlay without discarding its settings.
	Enabled bool
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Source == nil {
		return fmt.Errorf("%w: no source", ErrInvalidConfig)
	}
	if c.Opacity < 0 || c.Opacity > 1 || math.IsNaN(c.Opacity) {
		return fmt.Errorf("%w: opacity %v outside [0, 1]", ErrInvalidConfig, c.Opacity)
	}
	if c.Scale < 0 || math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) {
		return fmt.Errorf("%w: scale %v", ErrInvalidConfig, c.Scale)
	}
	if c.Channel >= 0 && c.LUT == nil {
		return fmt.Errorf("%w: channel %d needs a LUT", ErrInvalidConfig, c.Channel)
	}
	return nil
}

// Active reports whether tiles should be blended.
func (c *Config) Active() bool {
	return c != nil && c.Enabled && c.Source != nil && c.Opacity > 0
}

func (c *Config) scale() float64 {
	if c.Scale <= 0 {
		return 1
	}
	return c.Scale
}

// Composite blends the foreground covering region over dst, whose bounds
// are the region's level pixels. It reports whether any foreground pixel
// was drawn. Areas outside the foreground are left untouched.
func (c *Config) Composite(dst *image.RGBA, region tile.Region) (bool, error) {
	if !c.Active() {
		return false, nil
	}
	scale := c.scale()
	level := source.BestLevelForDownsample(c.Source, region.Downsample/scale)
	fds, err := c.Source.LevelDownsample(level)
	if err != nil {
		return false, err
	}
	fw, fh, err := c.Source.LevelDimensions(level)
	if err != nil {
		return false, err
	}

	// Foreground level pixels per background level pixel.
	k := region.Downsample / (scale * fds)
	fx := float64(region.X) / (scale * fds)
	fy := float64(region.Y) / (scale * fds)
	x0 := max(0, int(math.Floor(fx)))
	y0 := max(0, int(math.Floor(fy)))
	x1 := min(fw, int(math.Ceil(fx+float64(region.Width)*k)))
	y1 := min(fh, int(math.Ceil(fy+float64(region.Height)*k)))
	if x1 <= x0 || y1 <= y0 {
		return false, nil
	}

	px, err := c.Source.ReadRegion(
		int64(math.Round(float64(x0)*fds)), int64(math.Round(float64(y0)*fds)),
		x1-x0, y1-y0, level)
	if err != nil {
		return false, fmt.Errorf("overlay: read foreground: %w", err)
	}
	fg := c.colorize(px)

	target := image.Rect(
		int(math.Round((float64(x0)-fx)/k)), int(math.Round((float64(y0)-fy)/k)),
		int(math.Round((float64(x1)-fx)/k)), int(math.Round((float64(y1)-fy)/k)),
	)
	if target.Intersect(dst.Bounds()).Empty() {
		return false, nil
	}

	// Resample first so the opacity mask applies at tile resolution.
	layer := image.NewRGBA(dst.Bounds())
	draw.NearestNeighbor.Scale(layer, target, fg, fg.Bounds(), draw.Src, nil)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(c.Opacity * 255))})
	draw.DrawMask(dst, dst.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Over)
	return true, nil
}

// colorize converts raw foreground samples to a premultiplied image.
func (c *Config) colorize(px *source.Pixels) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, px.Width, px.Height))
	for y := range px.Height {
		for x := range px.Width {
			s := px.At(x, y)
			var col color.Color
			switch {
			case c.Channel >= 0:
				col = c.LUT.Map(s[min(c.Channel, len(s)-1)])
			case len(s) >= 4:
				col = color.RGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
			case len(s) == 3:
				col = color.RGBA{R: s[0], G: s[1], B: s[2], A: 0xFF}
			default:
				col = color.Gray{Y: s[0]}
			}
			img.Set(x, y, col)
		}
	}
	return img
}
