package tile

import (
	"image"
	"sync"
)

// BytesPerPixel is the size of one decoded RGBA pixel.
const BytesPerPixel = 4

// Tile is a decoded tile.
//
// A Tile is produced by exactly one worker and handed to the cache once;
// from then on its pixels must not be modified. Surfaces only borrow the
// tile and must drop their reference when the tile is detached.
type Tile struct {
	// ID identifies the tile.
	ID ID

	// Generation is the manager generation the tile was decoded under.
	Generation uint64

	// Region is the footprint of the tile.
	Region Region

	// Pix holds the decoded pixels. Its bounds start at (0, 0) and span
	// Region.Width x Region.Height.
	Pix *image.RGBA

	// Blended reports whether a foreground overlay was composited in.
	Blended bool

	release     func(*image.RGBA)
	releaseOnce sync.Once
}

// New creates a tile. release, if non-nil, is called once by Release to
// recycle the pixel buffer.
func New(id ID, generation uint64, region Region, pix *image.RGBA, blended bool, release func(*image.RGBA)) *Tile {
	return &Tile{
		ID:         id,
		Generation: generation,
		Region:     region,
		Pix:        pix,
		Blended:    blended,
		release:    release,
	}
}

// Bytes returns the memory held by the pixel buffer.
func (t *Tile) Bytes() int64 {
	if t == nil || t.Pix == nil {
		return 0
	}
	return int64(len(t.Pix.Pix))
}

// Stride returns the row stride in bytes.
func (t *Tile) Stride() int {
	return t.Region.Width * BytesPerPixel
}

// Release hands the pixel buffer back to its pool. The tile must not be
// used afterwards. Release is safe to call more than once.
func (t *Tile) Release() {
	if t == nil {
		return
	}
	t.releaseOnce.Do(func() {
		if t.release != nil && t.Pix != nil {
			t.release(t.Pix)
		}
		t.Pix = nil
	})
}
