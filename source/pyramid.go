package source

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultMinLevelSize is the edge length below which no further pyramid
// levels are generated.
const DefaultMinLevelSize = 512

// Pyramid is an in-memory ImageSource built from a single raster.
//
// Level 0 is the raster itself; every further level halves both
// dimensions until the longest edge is at most the minimum level size.
// Grayscale rasters are kept as one channel, everything else as RGBA.
//
// Pyramid is safe for concurrent reads.
type Pyramid struct {
	levels   []draw.Image
	channels int
	closed   atomic.Bool
}

// PyramidOption configures NewPyramid.
type PyramidOption func(*pyramidOptions)

type pyramidOptions struct {
	minSize int
	scaler  draw.Scaler
	box     bool
}

// WithMinLevelSize sets the edge length at which level generation stops.
func WithMinLevelSize(n int) PyramidOption {
	return func(o *pyramidOptions) {
		if n > 0 {
			o.minSize = n
		}
	}
}

// WithScaler selects the resampling kernel used for coarser levels.
// Levels are then resampled from level 0 in parallel.
func WithScaler(s draw.Scaler) PyramidOption {
	return func(o *pyramidOptions) {
		if s != nil {
			o.scaler = s
			o.box = false
		}
	}
}

// WithBoxFilter builds each level from the previous one by averaging 2x2
// blocks. Cheaper than resampling but sequential.
func WithBoxFilter() PyramidOption {
	return func(o *pyramidOptions) {
		o.box = true
	}
}

// NewPyramid builds a pyramid from img.
func NewPyramid(img image.Image, opts ...PyramidOption) (*Pyramid, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &Error{Op: "build", Err: fmt.Errorf("%w: empty image", ErrInvalidRegion)}
	}
	o := pyramidOptions{minSize: DefaultMinLevelSize, scaler: draw.ApproxBiLinear}
	for _, opt := range opts {
		opt(&o)
	}

	base := toLevel0(img)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()

	numLevels := 1
	for lw, lh := w, h; max(lw, lh) > o.minSize && (lw > 1 || lh > 1); numLevels++ {
		lw, lh = max(1, lw/2), max(1, lh/2)
	}

	p := &Pyramid{
		levels:   make([]draw.Image, numLevels),
		channels: channelsOf(base),
	}
	p.levels[0] = base

	if o.box {
		for i := 1; i < numLevels; i++ {
			p.levels[i] = boxDownsample(p.levels[i-1])
		}
		return p, nil
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 1; i < numLevels; i++ {
		g.Go(func() error {
			dst := newLike(base, max(1, w>>i), max(1, h>>i))
			o.scaler.Scale(dst, dst.Bounds(), base, base.Bounds(), draw.Src, nil)
			p.levels[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}

// NumberOfLevels implements ImageSource.
func (p *Pyramid) NumberOfLevels() int { return len(p.levels) }

// Channels returns the number of samples per pixel.
func (p *Pyramid) Channels() int { return p.channels }

// LevelDimensions implements ImageSource.
func (p *Pyramid) LevelDimensions(level int) (int, int, error) {
	if level < 0 || level >= len(p.levels) {
		return 0, 0, &Error{Op: "dimensions", Level: level, Err: ErrInvalidLevel}
	}
	b := p.levels[level].Bounds()
	return b.Dx(), b.Dy(), nil
}

// LevelDownsample implements ImageSource.
func (p *Pyramid) LevelDownsample(level int) (float64, error) {
	if level < 0 || level >= len(p.levels) {
		return 0, &Error{Op: "downsample", Level: level, Err: ErrInvalidLevel}
	}
	return float64(int64(1) << level), nil
}

// ReadRegion implements ImageSource.
func (p *Pyramid) ReadRegion(x, y int64, width, height, level int) (*Pixels, error) {
	if p.closed.Load() {
		return nil, &Error{Op: "read", Level: level, Err: ErrSourceClosed}
	}
	if level < 0 || level >= len(p.levels) {
		return nil, &Error{Op: "read", Level: level, Err: ErrInvalidLevel}
	}
	ds := float64(int64(1) << level)
	lx := int(math.Round(float64(x) / ds))
	ly := int(math.Round(float64(y) / ds))

	im := p.levels[level]
	b := im.Bounds()
	if width <= 0 || height <= 0 || lx < 0 || ly < 0 || lx+width > b.Dx() || ly+height > b.Dy() {
		return nil, &Error{Op: "read", Level: level, Err: fmt.Errorf("%w: %dx%d at (%d,%d) outside %dx%d",
			ErrInvalidRegion, width, height, lx, ly, b.Dx(), b.Dy())}
	}

	px := NewPixels(width, height, p.channels)
	rowBytes := width * p.channels
	switch im := im.(type) {
	case *image.Gray:
		for row := range height {
			off := im.PixOffset(lx, ly+row)
			copy(px.Data[row*rowBytes:(row+1)*rowBytes], im.Pix[off:off+rowBytes])
		}
	case *image.RGBA:
		for row := range height {
			off := im.PixOffset(lx, ly+row)
			copy(px.Data[row*rowBytes:(row+1)*rowBytes], im.Pix[off:off+rowBytes])
		}
	}
	return px, nil
}

// Close releases the pyramid. Reads after Close fail with ErrSourceClosed.
func (p *Pyramid) Close() error {
	p.closed.Store(true)
	return nil
}

// toLevel0 converts img into a zero-origin Gray or RGBA buffer.
func toLevel0(img image.Image) draw.Image {
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())
	if g, ok := img.(*image.Gray); ok {
		dst := image.NewGray(r)
		draw.Draw(dst, r, g, b.Min, draw.Src)
		return dst
	}
	dst := image.NewRGBA(r)
	draw.Draw(dst, r, img, b.Min, draw.Src)
	return dst
}

func newLike(im draw.Image, w, h int) draw.Image {
	r := image.Rect(0, 0, w, h)
	if _, ok := im.(*image.Gray); ok {
		return image.NewGray(r)
	}
	return image.NewRGBA(r)
}

func channelsOf(im draw.Image) int {
	if _, ok := im.(*image.Gray); ok {
		return 1
	}
	return 4
}

// boxDownsample creates a half-size version of src by averaging 2x2 blocks.
// Odd trailing rows and columns are clamped.
func boxDownsample(src draw.Image) draw.Image {
	sb := src.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()
	dstW, dstH := max(1, srcW/2), max(1, srcH/2)
	dst := newLike(src, dstW, dstH)

	var (
		spix, dpix []byte
		sstride    int
		dstride    int
	)
	ch := channelsOf(src)
	switch s := src.(type) {
	case *image.Gray:
		d := dst.(*image.Gray)
		spix, sstride, dpix, dstride = s.Pix, s.Stride, d.Pix, d.Stride
	case *image.RGBA:
		d := dst.(*image.RGBA)
		spix, sstride, dpix, dstride = s.Pix, s.Stride, d.Pix, d.Stride
	}

	for dy := range dstH {
		sy0 := dy * 2
		sy1 := min(sy0+1, srcH-1)
		for dx := range dstW {
			sx0 := dx * 2
			sx1 := min(sx0+1, srcW-1)
			for c := range ch {
				sum := uint16(spix[sy0*sstride+sx0*ch+c]) +
					uint16(spix[sy0*sstride+sx1*ch+c]) +
					uint16(spix[sy1*sstride+sx0*ch+c]) +
					uint16(spix[sy1*sstride+sx1*ch+c])
				dpix[dy*dstride+dx*ch+c] = byte(sum / 4)
			}
		}
	}
	return dst
}
