package tile

import "math"

// Rect is an axis-aligned rectangle in base-image (level 0) coordinates.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0) || math.IsNaN(r.X) || math.IsNaN(r.Y)
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Intersects reports whether r and o overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.MaxX() && o.X < r.MaxX() && r.Y < o.MaxY() && o.Y < r.MaxY()
}

// Scale returns the rectangle with every coordinate divided by downsample,
// mapping base coordinates into the pixel space of a level.
func (r Rect) Scale(downsample float64) Rect {
	if downsample <= 0 {
		return r
	}
	return Rect{
		X:      r.X / downsample,
		Y:      r.Y / downsample,
		Width:  r.Width / downsample,
		Height: r.Height / downsample,
	}
}

// FieldOfView is the visible rectangle in base-image coordinates together
// with the pyramid level currently displayed.
type FieldOfView struct {
	Rect  Rect
	Level int
}

// Region is the footprint of one tile: its origin in base coordinates (the
// convention of region reads) and its size in level pixels.
type Region struct {
	Level      int
	X, Y       int64
	Width      int
	Height     int
	Downsample float64
}

// BaseRect returns the area covered by the region in base coordinates.
func (r Region) BaseRect() Rect {
	return Rect{
		X:      float64(r.X),
		Y:      float64(r.Y),
		Width:  float64(r.Width) * r.Downsample,
		Height: float64(r.Height) * r.Downsample,
	}
}
