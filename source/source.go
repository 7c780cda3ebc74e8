// Package source defines the image-source capability the streaming
// pipeline reads tiles from, and provides an in-memory pyramid
// implementation backed by an ordinary raster file.
//
// An ImageSource is a multi-resolution image: NumberOfLevels levels, level 0
// at full resolution, each coarser level described by its dimensions and its
// downsample factor relative to level 0. ReadRegion returns raw interleaved
// 8-bit samples for a rectangle whose origin is given in level-0
// coordinates and whose size is given in pixels of the requested level.
//
// Implementations must be safe for concurrent ReadRegion calls; the worker
// pool reads from several goroutines at once.
package source

import (
	"fmt"

	"github.com/gogpu/slide/tile"
)

// ImageSource is a multi-resolution image.
type ImageSource interface {
	// NumberOfLevels returns the number of pyramid levels.
	NumberOfLevels() int

	// LevelDimensions returns the size of a level in pixels.
	LevelDimensions(level int) (width, height int, err error)

	// LevelDownsample returns the downsample factor of a level relative
	// to level 0.
	LevelDownsample(level int) (float64, error)

	// ReadRegion reads width x height pixels of level, starting at the
	// level-0 coordinate (x, y).
	ReadRegion(x, y int64, width, height, level int) (*Pixels, error)
}

// PlaneReader is implemented by sources with several focal (z) planes.
type PlaneReader interface {
	// NumberOfPlanes returns the number of z-planes.
	NumberOfPlanes() int

	// ReadPlaneRegion is ReadRegion for a specific plane.
	ReadPlaneRegion(plane int, x, y int64, width, height, level int) (*Pixels, error)
}

// Pixels is a block of interleaved 8-bit samples.
type Pixels struct {
	Width    int
	Height   int
	Channels int
	Data     []byte
}

// NewPixels allocates a zeroed block.
func NewPixels(width, height, channels int) *Pixels {
	return &Pixels{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]byte, width*height*channels),
	}
}

// At returns the samples of pixel (x, y). The slice aliases Data.
func (p *Pixels) At(x, y int) []byte {
	off := (y*p.Width + x) * p.Channels
	return p.Data[off : off+p.Channels]
}

// Levels describes every level of src in the form tile.NewGrid expects.
func Levels(src ImageSource) ([]tile.Level, error) {
	n := src.NumberOfLevels()
	if n <= 0 {
		return nil, &Error{Op: "levels", Level: 0, Err: ErrInvalidLevel}
	}
	levels := make([]tile.Level, n)
	for i := range n {
		w, h, err := src.LevelDimensions(i)
		if err != nil {
			return nil, err
		}
		ds, err := src.LevelDownsample(i)
		if err != nil {
			return nil, err
		}
		levels[i] = tile.Level{Width: w, Height: h, Downsample: ds}
	}
	return levels, nil
}

// NewGrid builds the tile grid of src for the given tile size.
func NewGrid(src ImageSource, tileSize int) (*tile.Grid, error) {
	levels, err := Levels(src)
	if err != nil {
		return nil, fmt.Errorf("source: describe levels: %w", err)
	}
	return tile.NewGrid(tileSize, levels)
}

// ReadPlane reads from plane when src supports planes, and falls back to
// ReadRegion for plane 0 otherwise.
func ReadPlane(src ImageSource, plane int, x, y int64, width, height, level int) (*Pixels, error) {
	if pr, ok := src.(PlaneReader); ok {
		return pr.ReadPlaneRegion(plane, x, y, width, height, level)
	}
	if plane != 0 {
		return nil, &Error{Op: "read", Level: level, Err: fmt.Errorf("%w: plane %d", ErrInvalidRegion, plane)}
	}
	return src.ReadRegion(x, y, width, height, level)
}
