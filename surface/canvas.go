// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"cmp"
	"image"
	"image/color"
	"math"
	"slices"

	"golang.org/x/image/draw"

	"github.com/gogpu/slide/tile"
)

// Canvas is a Surface that keeps attached tiles and composites them on
// demand.
//
// Tiles from coarser levels are drawn first so finer tiles cover them;
// areas without any tile show the background color.
type Canvas struct {
	tiles  map[tile.ID]*tile.Tile
	bg     image.Image
	interp draw.Interpolator
	counts Counts
}

// NewCanvas creates an empty canvas.
func NewCanvas(opts Options) *Canvas {
	bg := opts.Background
	if bg == nil {
		bg = color.White
	}
	return &Canvas{
		tiles:  make(map[tile.ID]*tile.Tile),
		bg:     image.NewUniform(bg),
		interp: interpolator(opts.Filter),
	}
}

func interpolator(f Filter) draw.Interpolator {
	switch f {
	case FilterBilinear:
		return draw.BiLinear
	case FilterCatmullRom:
		return draw.CatmullRom
	}
	return draw.NearestNeighbor
}

// Attach implements Surface.
func (c *Canvas) Attach(id tile.ID, t *tile.Tile) {
	c.tiles[id] = t
	c.counts.Attaches++
}

// Detach implements Surface.
func (c *Canvas) Detach(id tile.ID) {
	if _, ok := c.tiles[id]; !ok {
		return
	}
	delete(c.tiles, id)
	c.counts.Detaches++
}

// Attached reports whether id is attached.
func (c *Canvas) Attached(id tile.ID) bool {
	_, ok := c.tiles[id]
	return ok
}

// Tile returns the tile attached under id.
func (c *Canvas) Tile(id tile.ID) (*tile.Tile, bool) {
	t, ok := c.tiles[id]
	return t, ok
}

// IDs returns the attached tile IDs, coarsest level first, row-major.
func (c *Canvas) IDs() []tile.ID {
	ids := make([]tile.ID, 0, len(c.tiles))
	for id := range c.tiles {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b tile.ID) int {
		return cmp.Or(
			cmp.Compare(b.Level, a.Level),
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(a.Col, b.Col),
		)
	})
	return ids
}

// Counts implements Counter.
func (c *Canvas) Counts() Counts {
	n := c.counts
	n.Attached = len(c.tiles)
	return n
}

// Render composites the tiles intersecting fov into a width x height image.
// fov.Rect is in base image coordinates and is stretched to fill the image.
func (c *Canvas) Render(fov tile.FieldOfView, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), c.bg, image.Point{}, draw.Src)
	if fov.Rect.Empty() || width <= 0 || height <= 0 {
		return dst
	}

	sx := float64(width) / fov.Rect.Width
	sy := float64(height) / fov.Rect.Height
	for _, id := range c.IDs() {
		t := c.tiles[id]
		if t == nil || t.Pix == nil {
			continue
		}
		br := t.Region.BaseRect()
		if !br.Intersects(fov.Rect) {
			continue
		}
		dr := image.Rect(
			int(math.Floor((br.X-fov.Rect.X)*sx)),
			int(math.Floor((br.Y-fov.Rect.Y)*sy)),
			int(math.Ceil((br.MaxX()-fov.Rect.X)*sx)),
			int(math.Ceil((br.MaxY()-fov.Rect.Y)*sy)),
		)
		c.interp.Scale(dst, dr, t.Pix, t.Pix.Bounds(), draw.Over, nil)
	}
	return dst
}
