// Package raster implements the image buffer value produced by raster
// node kinds. The engine hands finished buffers to the render backend
// unmodified; nothing here rasterizes vector geometry.
package raster

import (
	"fmt"
	"hash"
	"math"
)

// Image is an RGBA buffer with 8 bits per channel. Like geom.Path, an
// Image is treated as immutable once built: operations return new
// buffers so cached values can be shared safely.
type Image struct {
	width  int
	height int
	pix    []byte // RGBA interleaved, row-major
}

// New allocates a transparent image of the given dimensions.
func New(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	return &Image{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*4),
	}, nil
}

// Width reports the image width in pixels.
func (im *Image) Width() int { return im.width }

// Height reports the image height in pixels.
func (im *Image) Height() int { return im.height }

// Pix exposes the raw RGBA pixel data. Callers must not mutate it; the
// render backend consumes it read-only.
func (im *Image) Pix() []byte { return im.pix }

// clamp8 converts a [0, 1] channel value to an 8-bit channel.
func clamp8(f float64) byte {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return byte(math.Round(f * 255))
}

// Fill returns a copy of the image with every pixel set to the given
// color, channels in [0, 1].
func (im *Image) Fill(r, g, b, a float64) *Image {
	out := &Image{width: im.width, height: im.height, pix: make([]byte, len(im.pix))}
	pr, pg, pb, pa := clamp8(r), clamp8(g), clamp8(b), clamp8(a)
	for i := 0; i < len(out.pix); i += 4 {
		out.pix[i] = pr
		out.pix[i+1] = pg
		out.pix[i+2] = pb
		out.pix[i+3] = pa
	}
	return out
}

// Over composites fg over the receiver using source-over alpha blending.
// Both images must have identical dimensions.
func (im *Image) Over(fg *Image) (*Image, error) {
	if im.width != fg.width || im.height != fg.height {
		return nil, fmt.Errorf("composite size mismatch: %dx%d over %dx%d",
			fg.width, fg.height, im.width, im.height)
	}

	out := &Image{width: im.width, height: im.height, pix: make([]byte, len(im.pix))}
	for i := 0; i < len(im.pix); i += 4 {
		fa := float64(fg.pix[i+3]) / 255
		ba := float64(im.pix[i+3]) / 255
		oa := fa + ba*(1-fa)
		if oa == 0 {
			continue
		}
		for c := 0; c < 3; c++ {
			fc := float64(fg.pix[i+c]) / 255
			bc := float64(im.pix[i+c]) / 255
			out.pix[i+c] = clamp8((fc*fa + bc*ba*(1-fa)) / oa)
		}
		out.pix[i+3] = clamp8(oa)
	}
	return out, nil
}

// Opacity returns a copy with every pixel's alpha scaled by factor in
// [0, 1].
func (im *Image) Opacity(factor float64) (*Image, error) {
	if factor < 0 || factor > 1 {
		return nil, fmt.Errorf("opacity factor %v out of range [0, 1]", factor)
	}
	out := &Image{width: im.width, height: im.height, pix: make([]byte, len(im.pix))}
	copy(out.pix, im.pix)
	for i := 3; i < len(out.pix); i += 4 {
		out.pix[i] = clamp8(float64(out.pix[i]) / 255 * factor)
	}
	return out, nil
}

// Equal reports whether two images have identical dimensions and pixels.
func (im *Image) Equal(other *Image) bool {
	if im.width != other.width || im.height != other.height {
		return false
	}
	for i := range im.pix {
		if im.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}

// Fingerprint writes the image dimensions and pixel data into h.
func (im *Image) Fingerprint(h hash.Hash) {
	var dims [8]byte
	for i := 0; i < 4; i++ {
		dims[i] = byte(im.width >> (8 * i))
		dims[4+i] = byte(im.height >> (8 * i))
	}
	h.Write(dims[:])
	h.Write(im.pix)
}

// EstimatedSize reports the approximate in-memory size of the buffer in
// bytes, used by the cache for capacity accounting.
func (im *Image) EstimatedSize() int {
	return len(im.pix) + 16
}
