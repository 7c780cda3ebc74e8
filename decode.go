package slide

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/slide/internal/parallel"
	"github.com/gogpu/slide/overlay"
	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/tile"
)

// renderSettings are the image settings workers read while decoding.
// They are replaced as a whole, never modified in place.
type renderSettings struct {
	channel int // background channel rendered as gray; negative for natural color
	plane   int
	overlay *overlay.Config
}

// decoder turns jobs into tiles. It runs on worker goroutines and only
// shares immutable state with the owner.
type decoder struct {
	src      source.ImageSource
	grid     *tile.Grid
	buffers  *parallel.BufferPool
	settings *atomic.Pointer[renderSettings]
	log      *slog.Logger
}

// decode reads the tile's region, converts it to RGBA and composites the
// foreground overlay, if any.
func (d *decoder) decode(job tile.Job) (*tile.Tile, error) {
	region, ok := d.grid.Region(job.ID)
	if !ok {
		return nil, fmt.Errorf("slide: decode %s: %w", job.ID, source.ErrInvalidRegion)
	}
	s := d.settings.Load()

	px, err := source.ReadPlane(d.src, s.plane, region.X, region.Y, region.Width, region.Height, region.Level)
	if err != nil {
		return nil, fmt.Errorf("slide: decode %s: %w", job.ID, err)
	}
	if px.Width != region.Width || px.Height != region.Height {
		return nil, fmt.Errorf("slide: decode %s: source returned %dx%d for %dx%d: %w",
			job.ID, px.Width, px.Height, region.Width, region.Height, source.ErrInvalidRegion)
	}

	dst := d.buffers.Get(region.Width, region.Height)
	toRGBA(dst, px, s.channel)

	blended := false
	if s.overlay.Active() {
		// A broken foreground must not hide the background.
		blended, err = s.overlay.Composite(dst, region)
		if err != nil {
			d.log.Warn("slide: overlay skipped", "tile", job.ID, "err", err)
			blended = false
		}
	}
	return tile.New(job.ID, job.Generation, region, dst, blended, d.buffers.Put), nil
}

// toRGBA writes px into dst. With channel >= 0 that channel is rendered as
// gray; otherwise one channel is gray, three are RGB and four are copied
// as premultiplied RGBA.
func toRGBA(dst *image.RGBA, px *source.Pixels, channel int) {
	n := px.Channels
	for y := range px.Height {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+px.Width*4]
		src := px.Data[y*px.Width*n : (y+1)*px.Width*n]
		for x := range px.Width {
			s := src[x*n : x*n+n]
			d := row[x*4 : x*4+4]
			switch {
			case channel >= 0 && channel < n:
				d[0], d[1], d[2], d[3] = s[channel], s[channel], s[channel], 0xFF
			case n >= 4:
				copy(d, s[:4])
			case n == 3:
				d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xFF
			default:
				d[0], d[1], d[2], d[3] = s[0], s[0], s[0], 0xFF
			}
		}
	}
}
