package source

import (
	"fmt"
	"image"
	"os"

	// Registered decoders for Open.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Open decodes the raster at path (TIFF, PNG, JPEG, GIF, BMP or WebP) and
// builds a Pyramid from it.
func Open(path string, opts ...PyramidOption) (*Pyramid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "open", Err: fmt.Errorf("%w: %w", ErrIO, err)}
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("%w: %s: %w", ErrIO, path, err)}
	}
	p, err := NewPyramid(img, opts...)
	if err != nil {
		return nil, fmt.Errorf("source: build pyramid for %s image %s: %w", format, path, err)
	}
	return p, nil
}
