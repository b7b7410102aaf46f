package frame

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTMagnitude returns |F| of the unnormalized 2-D DFT of p, with the
// zero frequency at index (0, 0).
func FFTMagnitude(p Plane) Plane {
	if p.Empty() {
		return Plane{}
	}
	w, h := p.Width, p.Height
	buf := make([]complex128, w*h)
	for i, v := range p.Data {
		buf[i] = complex(v, 0)
	}

	rowFFT := fourier.NewCmplxFFT(w)
	row := make([]complex128, w)
	for y := 0; y < h; y++ {
		seg := buf[y*w : (y+1)*w]
		copy(row, seg)
		rowFFT.Coefficients(seg, row)
	}

	colFFT := fourier.NewCmplxFFT(h)
	col := make([]complex128, h)
	out := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = buf[y*w+x]
		}
		colFFT.Coefficients(out, col)
		for y := 0; y < h; y++ {
			buf[y*w+x] = out[y]
		}
	}

	mag := NewPlane(w, h)
	for i, c := range buf {
		mag.Data[i] = cmplx.Abs(c)
	}
	return mag
}

// FFTShift moves the zero frequency to the center (h/2, w/2).
func FFTShift(p Plane) Plane {
	if p.Empty() {
		return Plane{}
	}
	w, h := p.Width, p.Height
	out := NewPlane(w, h)
	for y := 0; y < h; y++ {
		sy := (y + h/2) % h
		for x := 0; x < w; x++ {
			sx := (x + w/2) % w
			out.Data[sy*w+sx] = p.Data[y*w+x]
		}
	}
	return out
}

// DCT computes the top-left rows x cols coefficients of the orthonormal
// 2-D DCT-II of p. Requests larger than the plane are truncated.
func DCT(p Plane, rows, cols int) Plane {
	if p.Empty() {
		return Plane{}
	}
	rows = min(rows, p.Height)
	cols = min(cols, p.Width)
	if rows <= 0 || cols <= 0 {
		return Plane{}
	}

	ch := dctBasis(rows, p.Height)
	cw := dctBasis(cols, p.Width)

	// Transform columns first, keeping only the requested rows.
	tmp := make([]float64, rows*p.Width)
	for k := 0; k < rows; k++ {
		basis := ch[k*p.Height : (k+1)*p.Height]
		dst := tmp[k*p.Width : (k+1)*p.Width]
		for y, c := range basis {
			src := p.Data[y*p.Width : (y+1)*p.Width]
			for x, v := range src {
				dst[x] += c * v
			}
		}
	}

	out := NewPlane(cols, rows)
	for k := 0; k < rows; k++ {
		src := tmp[k*p.Width : (k+1)*p.Width]
		for l := 0; l < cols; l++ {
			basis := cw[l*p.Width : (l+1)*p.Width]
			var s float64
			for x, c := range basis {
				s += c * src[x]
			}
			out.Data[k*cols+l] = s
		}
	}
	return out
}

// dctBasis returns the first k orthonormal DCT-II basis vectors of length n.
func dctBasis(k, n int) []float64 {
	basis := make([]float64, k*n)
	scale0 := math.Sqrt(1 / float64(n))
	scale := math.Sqrt(2 / float64(n))
	for u := 0; u < k; u++ {
		s := scale
		if u == 0 {
			s = scale0
		}
		for x := 0; x < n; x++ {
			basis[u*n+x] = s * math.Cos(math.Pi*float64(2*x+1)*float64(u)/float64(2*n))
		}
	}
	return basis
}
