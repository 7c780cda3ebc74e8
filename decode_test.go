package slide

import (
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slide/internal/parallel"
	"github.com/gogpu/slide/overlay"
	"github.com/gogpu/slide/source"
	"github.com/gogpu/slide/tile"
)

func TestToRGBA(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		data     []byte
		channel  int
		want     color.RGBA
	}{
		{"gray", 1, []byte{7}, -1, color.RGBA{7, 7, 7, 255}},
		{"rgb", 3, []byte{1, 2, 3}, -1, color.RGBA{1, 2, 3, 255}},
		{"rgba", 4, []byte{1, 2, 3, 4}, -1, color.RGBA{1, 2, 3, 4}},
		{"channel 2 of rgb", 3, []byte{1, 2, 3}, 2, color.RGBA{3, 3, 3, 255}},
		{"channel out of range", 3, []byte{1, 2, 3}, 5, color.RGBA{1, 2, 3, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px := source.NewPixels(2, 1, tt.channels)
			copy(px.Data, tt.data)
			copy(px.Data[tt.channels:], tt.data)

			dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
			toRGBA(dst, px, tt.channel)
			assert.Equal(t, tt.want, dst.RGBAAt(0, 0))
			assert.Equal(t, tt.want, dst.RGBAAt(1, 0))
		})
	}
}

// shortSource returns regions one pixel narrower than asked.
type shortSource struct{ source.ImageSource }

func (s shortSource) ReadRegion(x, y int64, w, h, level int) (*source.Pixels, error) {
	return s.ImageSource.ReadRegion(x, y, w-1, h, level)
}

func newTestDecoder(t *testing.T, src source.ImageSource, s *renderSettings) *decoder {
	t.Helper()
	grid, err := source.NewGrid(src, testTile)
	require.NoError(t, err)
	var settings atomic.Pointer[renderSettings]
	settings.Store(s)
	return &decoder{
		src:      src,
		grid:     grid,
		buffers:  parallel.NewBufferPool(testTile),
		settings: &settings,
		log:      Logger(),
	}
}

func TestDecode(t *testing.T) {
	d := newTestDecoder(t, testPyramid(t), &renderSettings{channel: -1})

	job := tile.Job{ID: tile.ID{Level: 0, Row: 3, Col: 7}, Generation: 4}
	got, err := d.decode(job)
	require.NoError(t, err)
	defer got.Release()

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, uint64(4), got.Generation)
	assert.Equal(t, int64(testTileBytes), got.Bytes())
	assert.Equal(t, color.RGBA{R: 192, G: 192, B: 0x80, A: 0xFF}, got.Pix.RGBAAt(0, 0))
}

func TestDecodeErrors(t *testing.T) {
	d := newTestDecoder(t, testPyramid(t), &renderSettings{channel: -1})
	_, err := d.decode(tile.Job{ID: tile.ID{Level: 0, Row: 9}})
	assert.ErrorIs(t, err, source.ErrInvalidRegion)

	d = newTestDecoder(t, shortSource{testPyramid(t)}, &renderSettings{channel: -1})
	_, err = d.decode(tile.Job{ID: tile.ID{Level: 1}})
	assert.ErrorIs(t, err, source.ErrInvalidRegion)
}

// failingSource fails every read.
type failingSource struct{ source.ImageSource }

func (failingSource) ReadRegion(int64, int64, int, int, int) (*source.Pixels, error) {
	return nil, &source.Error{Op: "read", Err: source.ErrIO}
}

func TestDecodeOverlayFailureKeepsBackground(t *testing.T) {
	lut, err := overlay.Named("gray")
	require.NoError(t, err)
	ov := &overlay.Config{Source: failingSource{testPyramid(t)}, LUT: lut, Opacity: 1, Enabled: true}
	d := newTestDecoder(t, testPyramid(t), &renderSettings{channel: -1, overlay: ov})

	got, err := d.decode(tile.Job{ID: tile.ID{Level: 0}})
	require.NoError(t, err)
	defer got.Release()

	assert.False(t, got.Blended)
	assert.Equal(t, color.RGBA{B: 0x80, A: 0xFF}, got.Pix.RGBAAt(0, 0))
}
