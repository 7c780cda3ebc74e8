package parallel

import (
	"math/bits"
	"sync/atomic"
)

// Coverage tracks which tiles of one pyramid level are resident, using an
// atomic bitmap. The owner updates it as tiles enter and leave the cache;
// other goroutines (an overview map, a progress reporter) may read it
// concurrently without locking.
//
// The bitmap uses one bit per tile, packed into uint64 words (64 tiles per word).
type Coverage struct {
	// words is the atomic bitmap where each bit represents a tile.
	// Bit index = row * cols + col
	words []atomic.Uint64

	cols int
	rows int
}

// NewCoverage creates an empty bitmap for a cols x rows tile grid.
// Returns nil if dimensions are invalid (zero or negative).
func NewCoverage(cols, rows int) *Coverage {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	total := cols * rows
	return &Coverage{
		words: make([]atomic.Uint64, (total+63)/64),
		cols:  cols,
		rows:  rows,
	}
}

// Set marks the tile at (col, row) as resident.
// Does nothing if coordinates are out of bounds.
func (c *Coverage) Set(col, row int) {
	if c == nil || col < 0 || col >= c.cols || row < 0 || row >= c.rows {
		return
	}
	idx := row*c.cols + col
	c.words[idx/64].Or(1 << (idx & 63))
}

// Unset marks the tile at (col, row) as not resident.
func (c *Coverage) Unset(col, row int) {
	if c == nil || col < 0 || col >= c.cols || row < 0 || row >= c.rows {
		return
	}
	idx := row*c.cols + col
	c.words[idx/64].And(^(uint64(1) << (idx & 63)))
}

// Has reports whether the tile at (col, row) is resident.
// Returns false for out-of-bounds coordinates.
func (c *Coverage) Has(col, row int) bool {
	if c == nil || col < 0 || col >= c.cols || row < 0 || row >= c.rows {
		return false
	}
	idx := row*c.cols + col
	return c.words[idx/64].Load()&(1<<(idx&63)) != 0
}

// Reset marks every tile as not resident.
func (c *Coverage) Reset() {
	if c == nil {
		return
	}
	for i := range c.words {
		c.words[i].Store(0)
	}
}

// Count returns the number of resident tiles.
func (c *Coverage) Count() int {
	if c == nil {
		return 0
	}
	count := 0
	for i := range c.words {
		count += bits.OnesCount64(c.words[i].Load())
	}
	return count
}

// Fraction returns the resident share of the level, 0.0 to 1.0.
func (c *Coverage) Fraction() float64 {
	if c == nil {
		return 0
	}
	return float64(c.Count()) / float64(c.cols*c.rows)
}

// ForEach calls fn for each resident tile in row-major order.
func (c *Coverage) ForEach(fn func(col, row int)) {
	if c == nil || fn == nil {
		return
	}
	total := c.cols * c.rows
	for wordIdx := range c.words {
		word := c.words[wordIdx].Load()
		for word != 0 {
			bitIdx := bits.TrailingZeros64(word)
			idx := wordIdx*64 + bitIdx
			if idx >= total {
				break
			}
			fn(idx%c.cols, idx/c.cols)
			word &^= 1 << bitIdx
		}
	}
}
