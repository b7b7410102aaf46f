package frame

import "math"

// Plane is a single-channel float raster, row-major.
type Plane struct {
	Width  int
	Height int
	Data   []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Data: make([]float64, width*height)}
}

// At returns the value at row y, column x.
func (p Plane) At(x, y int) float64 {
	return p.Data[y*p.Width+x]
}

// Empty reports whether the plane has no samples.
func (p Plane) Empty() bool {
	return p.Width <= 0 || p.Height <= 0 || len(p.Data) != p.Width*p.Height
}

// Channel indices of a Frame.
const (
	Red = iota
	Green
	Blue
)

// lumaByte is the 8-bit BT.601 luma used for grayscale conversion.
func lumaByte(r, g, b uint8) uint8 {
	return saturate(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
}

func saturate(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Luma converts the frame to 8-bit grayscale and scales it into [0, 1].
func (f *Frame) Luma() (Plane, error) {
	if !f.Valid() {
		return Plane{}, ErrEmptyFrame
	}
	p := NewPlane(f.Width, f.Height)
	for i, j := 0, 0; j < len(p.Data); i, j = i+3, j+1 {
		p.Data[j] = float64(lumaByte(f.Pix[i], f.Pix[i+1], f.Pix[i+2])) / 255
	}
	return p, nil
}

// GrayBytes converts the frame to 8-bit grayscale without scaling.
func (f *Frame) GrayBytes() ([]uint8, error) {
	if !f.Valid() {
		return nil, ErrEmptyFrame
	}
	out := make([]uint8, f.Width*f.Height)
	for i, j := 0, 0; j < len(out); i, j = i+3, j+1 {
		out[j] = lumaByte(f.Pix[i], f.Pix[i+1], f.Pix[i+2])
	}
	return out, nil
}

// Channel returns one color channel scaled into [0, 1].
func (f *Frame) Channel(c int) (Plane, error) {
	if !f.Valid() || c < Red || c > Blue {
		return Plane{}, ErrEmptyFrame
	}
	p := NewPlane(f.Width, f.Height)
	for i, j := c, 0; j < len(p.Data); i, j = i+3, j+1 {
		p.Data[j] = float64(f.Pix[i]) / 255
	}
	return p, nil
}

// YCrCb converts the frame into 8-bit luma and chroma planes using the
// BT.601 full-range transform with a 128 chroma offset.
func (f *Frame) YCrCb() (y, cr, cb []uint8, err error) {
	if !f.Valid() {
		return nil, nil, nil, ErrEmptyFrame
	}
	n := f.Width * f.Height
	y = make([]uint8, n)
	cr = make([]uint8, n)
	cb = make([]uint8, n)
	for i, j := 0, 0; j < n; i, j = i+3, j+1 {
		r, g, b := float64(f.Pix[i]), float64(f.Pix[i+1]), float64(f.Pix[i+2])
		luma := 0.299*r + 0.587*g + 0.114*b
		y[j] = saturate(luma)
		cr[j] = saturate((r-luma)*0.713 + 128)
		cb[j] = saturate((b-luma)*0.564 + 128)
	}
	return y, cr, cb, nil
}
