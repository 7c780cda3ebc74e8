package tile

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSize is the default tile edge length in level pixels.
const DefaultSize = 512

// ErrInvalidGrid is returned by NewGrid for unusable pyramid descriptions.
var ErrInvalidGrid = errors.New("tile: invalid grid")

// Level describes one pyramid level.
type Level struct {
	Width      int
	Height     int
	Downsample float64
}

// Grid maps rectangles onto tile identities for a fixed tile size.
//
// Grid is immutable after creation and safe for concurrent use.
type Grid struct {
	size   int
	levels []Level
}

// NewGrid creates a grid for the given tile size and levels.
// A size of 0 or less selects DefaultSize.
func NewGrid(size int, levels []Level) (*Grid, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidGrid)
	}
	for i, l := range levels {
		if l.Width <= 0 || l.Height <= 0 || !(l.Downsample > 0) {
			return nil, fmt.Errorf("%w: level %d is %dx%d with downsample %v",
				ErrInvalidGrid, i, l.Width, l.Height, l.Downsample)
		}
	}
	return &Grid{size: size, levels: append([]Level(nil), levels...)}, nil
}

// TileSize returns the tile edge length in level pixels.
func (g *Grid) TileSize() int { return g.size }

// NumLevels returns the number of pyramid levels.
func (g *Grid) NumLevels() int { return len(g.levels) }

// Level returns the description of level l.
func (g *Grid) Level(l int) (Level, bool) {
	if l < 0 || l >= len(g.levels) {
		return Level{}, false
	}
	return g.levels[l], true
}

// Columns returns the number of tile columns at level l.
func (g *Grid) Columns(l int) int {
	lv, ok := g.Level(l)
	if !ok {
		return 0
	}
	return (lv.Width + g.size - 1) / g.size
}

// Rows returns the number of tile rows at level l.
func (g *Grid) Rows(l int) int {
	lv, ok := g.Level(l)
	if !ok {
		return 0
	}
	return (lv.Height + g.size - 1) / g.size
}

// Valid reports whether id names a tile that exists in the grid.
func (g *Grid) Valid(id ID) bool {
	return id.Row >= 0 && id.Col >= 0 &&
		id.Row < g.Rows(id.Level) && id.Col < g.Columns(id.Level)
}

// Region returns the footprint of a tile. Edge tiles are clipped to the
// level dimensions.
func (g *Grid) Region(id ID) (Region, bool) {
	lv, ok := g.Level(id.Level)
	if !ok || !g.Valid(id) {
		return Region{}, false
	}
	px := id.Col * g.size
	py := id.Row * g.size
	return Region{
		Level:      id.Level,
		X:          int64(math.Round(float64(px) * lv.Downsample)),
		Y:          int64(math.Round(float64(py) * lv.Downsample)),
		Width:      min(g.size, lv.Width-px),
		Height:     min(g.size, lv.Height-py),
		Downsample: lv.Downsample,
	}, true
}

// Span is a half-open block of tiles [Col0, Col1) x [Row0, Row1) at one level.
type Span struct {
	Level      int
	Col0, Row0 int
	Col1, Row1 int
}

// Empty reports whether the span holds no tiles.
func (s Span) Empty() bool { return s.Col1 <= s.Col0 || s.Row1 <= s.Row0 }

// Len returns the number of tiles in the span.
func (s Span) Len() int {
	if s.Empty() {
		return 0
	}
	return (s.Col1 - s.Col0) * (s.Row1 - s.Row0)
}

// Contains reports whether id lies inside the span.
func (s Span) Contains(id ID) bool {
	return id.Level == s.Level &&
		id.Col >= s.Col0 && id.Col < s.Col1 &&
		id.Row >= s.Row0 && id.Row < s.Row1
}

// IDs returns the tiles of the span in row-major order.
func (s Span) IDs() []ID {
	if s.Empty() {
		return nil
	}
	ids := make([]ID, 0, s.Len())
	for row := s.Row0; row < s.Row1; row++ {
		for col := s.Col0; col < s.Col1; col++ {
			ids = append(ids, ID{Level: s.Level, Row: row, Col: col})
		}
	}
	return ids
}

// Span returns the tiles at level l needed to fully cover r, clipped to the
// level dimensions. The result is empty when r lies outside the image or l
// is not a valid level.
func (g *Grid) Span(r Rect, l int) Span {
	lv, ok := g.Level(l)
	if !ok || r.Empty() {
		return Span{Level: l}
	}
	lr := r.Scale(lv.Downsample)
	ts := float64(g.size)

	s := Span{
		Level: l,
		Col0:  clampInt(int(math.Floor(lr.X/ts)), 0, g.Columns(l)),
		Row0:  clampInt(int(math.Floor(lr.Y/ts)), 0, g.Rows(l)),
		Col1:  clampInt(int(math.Ceil(lr.MaxX()/ts)), 0, g.Columns(l)),
		Row1:  clampInt(int(math.Ceil(lr.MaxY()/ts)), 0, g.Rows(l)),
	}
	if s.Empty() {
		return Span{Level: l}
	}
	return s
}

// Expand grows the span by margin tiles on every side, clipped to the grid.
func (g *Grid) Expand(s Span, margin int) Span {
	if s.Empty() || margin <= 0 {
		return s
	}
	return Span{
		Level: s.Level,
		Col0:  max(0, s.Col0-margin),
		Row0:  max(0, s.Row0-margin),
		Col1:  min(g.Columns(s.Level), s.Col1+margin),
		Row1:  min(g.Rows(s.Level), s.Row1+margin),
	}
}

// LevelSpan returns the span covering every tile of level l.
func (g *Grid) LevelSpan(l int) Span {
	if _, ok := g.Level(l); !ok {
		return Span{Level: l}
	}
	return Span{Level: l, Col1: g.Columns(l), Row1: g.Rows(l)}
}

// Needed returns the tiles covering fov at its level, row-major.
func (g *Grid) Needed(fov FieldOfView) []ID {
	return g.Span(fov.Rect, fov.Level).IDs()
}

// Ring returns the tiles within margin tiles of the visible span at the
// FOV level, excluding the visible span itself.
func (g *Grid) Ring(fov FieldOfView, margin int) []ID {
	inner := g.Span(fov.Rect, fov.Level)
	if inner.Empty() || margin <= 0 {
		return nil
	}
	outer := g.Expand(inner, margin)
	ids := make([]ID, 0, outer.Len()-inner.Len())
	for _, id := range outer.IDs() {
		if !inner.Contains(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
