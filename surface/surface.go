// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"image/color"

	"github.com/gogpu/slide/tile"
)

// Surface receives tiles for display.
//
// Attach may be called again for an attached ID with a newer tile, which
// replaces the previous one. Detach of an ID that is not attached is a
// no-op.
type Surface interface {
	// Attach makes t displayable under id. The surface borrows t until
	// the matching Detach.
	Attach(id tile.ID, t *tile.Tile)

	// Detach stops displaying id.
	Detach(id tile.ID)
}

// Counter is an optional interface for surfaces that report activity.
type Counter interface {
	Surface

	// Counts returns the number of attached tiles and the total number
	// of Attach and Detach calls.
	Counts() Counts
}

// Counts is a snapshot of surface activity.
type Counts struct {
	Attached int
	Attaches uint64
	Detaches uint64
}

// Options configures surface creation.
type Options struct {
	// Background fills areas not covered by any tile.
	// Default: white.
	Background color.Color

	// Filter selects the resampling used when compositing.
	Filter Filter
}

// Filter specifies the interpolation mode for tile scaling.
type Filter uint8

const (
	// FilterNearest uses nearest-neighbor interpolation.
	FilterNearest Filter = iota

	// FilterBilinear uses bilinear interpolation.
	FilterBilinear

	// FilterCatmullRom uses the Catmull-Rom kernel.
	FilterCatmullRom
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterNearest:
		return "nearest"
	case FilterBilinear:
		return "bilinear"
	case FilterCatmullRom:
		return "catmullrom"
	}
	return "unknown"
}

// ParseFilter returns the filter with the given name.
func ParseFilter(name string) (Filter, bool) {
	for f := FilterNearest; f <= FilterCatmullRom; f++ {
		if f.String() == name {
			return f, true
		}
	}
	return FilterNearest, false
}

// Discard is a Surface that keeps no tiles.
type Discard struct {
	attached map[tile.ID]struct{}
	counts   Counts
}

// NewDiscard creates a Discard surface.
func NewDiscard() *Discard {
	return &Discard{attached: make(map[tile.ID]struct{})}
}

// Attach implements Surface.
func (d *Discard) Attach(id tile.ID, _ *tile.Tile) {
	d.attached[id] = struct{}{}
	d.counts.Attaches++
}

// Detach implements Surface.
func (d *Discard) Detach(id tile.ID) {
	if _, ok := d.attached[id]; !ok {
		return
	}
	delete(d.attached, id)
	d.counts.Detaches++
}

// Counts implements Counter.
func (d *Discard) Counts() Counts {
	c := d.counts
	c.Attached = len(d.attached)
	return c
}
