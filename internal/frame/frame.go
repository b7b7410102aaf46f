// Package frame holds decoded video frames and the numeric helpers the
// analysis engines share: color conversion, spectral transforms and
// summary statistics.
package frame

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrEmptyFrame is returned by conversions on a frame without pixels.
var ErrEmptyFrame = errors.New("frame has no pixels")

// Frame is an 8-bit RGB raster. Pix is row-major, three bytes per pixel.
// Frames are treated as immutable once built.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black frame.
func New(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// FromRGB wraps an existing rgb24 buffer without copying.
func FromRGB(width, height int, pix []uint8) (*Frame, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*3 {
		return nil, ErrEmptyFrame
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts any image into a Frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			f.Pix[i] = c.R
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.B
			i += 3
		}
	}
	return f
}

// Valid reports whether the frame has a consistent, non-empty pixel buffer.
func (f *Frame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// RGB returns the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the pixel at (x, y).
func (f *Frame) Set(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Image returns a copy of the frame as an *image.RGBA.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for p, q := 0, 0; p < len(f.Pix); p, q = p+3, q+4 {
		img.Pix[q] = f.Pix[p]
		img.Pix[q+1] = f.Pix[p+1]
		img.Pix[q+2] = f.Pix[p+2]
		img.Pix[q+3] = 0xff
	}
	return img
}

// Crop returns a copy of the region r intersected with the frame bounds.
// The result is nil when the intersection is empty.
func (f *Frame) Crop(r image.Rectangle) *Frame {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return nil
	}
	out := New(r.Dx(), r.Dy())
	for y := 0; y < r.Dy(); y++ {
		src := ((r.Min.Y+y)*f.Width + r.Min.X) * 3
		copy(out.Pix[y*out.Width*3:(y+1)*out.Width*3], f.Pix[src:src+out.Width*3])
	}
	return out
}

// Resize scales the frame with bilinear interpolation.
func (f *Frame) Resize(width, height int) *Frame {
	if width <= 0 || height <= 0 || !f.Valid() {
		return nil
	}
	if width == f.Width && height == f.Height {
		out := New(width, height)
		copy(out.Pix, f.Pix)
		return out
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), f.Image(), f.Bounds(), draw.Src, nil)
	return FromImage(dst)
}

// MeanAbsDiff is the mean absolute per-channel difference between two
// frames of identical size. Mismatched frames yield ok=false.
func MeanAbsDiff(a, b *Frame) (float64, bool) {
	if !a.Valid() || !b.Valid() || a.Width != b.Width || a.Height != b.Height {
		return 0, false
	}
	var sum int64
	for i := range a.Pix {
		d := int64(a.Pix[i]) - int64(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a.Pix)), true
}
