package parallel

import (
	"image"
	"sync"
)

// BufferPool provides reuse of RGBA tile buffers via sync.Pool.
//
// The pool reduces GC pressure while panning: tiles evicted from the cache
// hand their buffers back and the next decode reuses them.
//
// Thread safety: BufferPool is safe for concurrent use.
type BufferPool struct {
	// size is the full tile edge length; full tiles use fullPool.
	size int

	// fullPool is the dedicated pool for full-size tiles.
	// This is the most common case, so we optimize for it.
	fullPool sync.Pool

	// pools holds separate sync.Pool instances for edge tile sizes.
	// Key format: (width << 16) | height
	pools sync.Map
}

// NewBufferPool creates a pool for tiles of the given edge length.
func NewBufferPool(size int) *BufferPool {
	p := &BufferPool{size: size}
	p.fullPool.New = func() any {
		return image.NewRGBA(image.Rect(0, 0, size, size))
	}
	return p
}

// Get retrieves a zeroed buffer of the given dimensions.
// Returns nil for non-positive dimensions.
func (p *BufferPool) Get(width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return nil
	}

	var img *image.RGBA
	if width == p.size && height == p.size {
		img = p.fullPool.Get().(*image.RGBA)
	} else {
		img = p.getOrCreatePool(width, height).Get().(*image.RGBA)
	}
	clear(img.Pix)
	return img
}

// Put returns a buffer to the pool. Buffers of unknown sizes are left to
// the garbage collector. Put(nil) is a no-op.
func (p *BufferPool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Rect.Min != (image.Point{}) || img.Stride != w*4 {
		return
	}
	if w == p.size && h == p.size {
		p.fullPool.Put(img)
		return
	}
	if pool, ok := p.pools.Load(poolKey(w, h)); ok {
		pool.(*sync.Pool).Put(img)
	}
}

// poolKey creates a unique key for a buffer size.
// Width and height are clamped to 16-bit values to prevent overflow.
func poolKey(width, height int) uint32 {
	w := min(width, 0xFFFF)
	h := min(height, 0xFFFF)
	return uint32(w)<<16 | uint32(h) //nolint:gosec // values are clamped above
}

// getOrCreatePool gets or creates a sync.Pool for the given dimensions.
func (p *BufferPool) getOrCreatePool(width, height int) *sync.Pool {
	key := poolKey(width, height)
	if pool, ok := p.pools.Load(key); ok {
		return pool.(*sync.Pool)
	}

	newPool := &sync.Pool{
		New: func() any {
			return image.NewRGBA(image.Rect(0, 0, width, height))
		},
	}

	// Try to store; if another goroutine beat us, use theirs
	actual, _ := p.pools.LoadOrStore(key, newPool)
	return actual.(*sync.Pool)
}
