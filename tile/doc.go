// Package tile defines the value types shared by the slide streaming pipeline.
//
// A whole-slide image is a pyramid of levels; level 0 is full resolution and
// every level is cut into square tiles of a fixed size (in level pixels). A
// tile is identified by its (level, row, column) triple:
//
//	id := tile.ID{Level: 2, Row: 10, Col: 4}
//
// Grid turns a FieldOfView (a rectangle in base-image coordinates plus the
// level being displayed) into the exact set of tiles covering it:
//
//	g, _ := tile.NewGrid(512, levels)
//	span := g.Span(fov.Rect, fov.Level)
//	for _, id := range span.IDs() {
//	    // request id
//	}
//
// Tile is a decoded tile: an RGBA buffer plus the region it covers. Once a
// Tile has been published by a worker it must be treated as immutable.
package tile
