package temporal

import (
	"math"

	"github.com/kdimtricp/verifai/internal/frame"
)

// FlowOptions tunes the pyramidal Lucas-Kanade dense flow estimator.
type FlowOptions struct {
	Levels     int
	Radius     int
	Iterations int
	MinDet     float64
	MinSize    int
}

func DefaultFlowOptions() FlowOptions {
	return FlowOptions{
		Levels:     3,
		Radius:     7,
		Iterations: 3,
		MinDet:     1e-2,
		MinSize:    16,
	}
}

// FlowField is a per-pixel displacement field in pixels.
type FlowField struct {
	Width  int
	Height int
	U      []float64
	V      []float64
}

// MeanMagnitude is the mean Euclidean norm of the field.
func (f FlowField) MeanMagnitude() float64 {
	if len(f.U) == 0 {
		return 0
	}
	var s float64
	for i := range f.U {
		s += math.Hypot(f.U[i], f.V[i])
	}
	return frame.Sanitize(s / float64(len(f.U)))
}

// grayPlane returns 8-bit luma as floats in [0, 255].
func grayPlane(f *frame.Frame) (frame.Plane, error) {
	g, err := f.GrayBytes()
	if err != nil {
		return frame.Plane{}, err
	}
	p := frame.NewPlane(f.Width, f.Height)
	for i, v := range g {
		p.Data[i] = float64(v)
	}
	return p, nil
}

// DenseFlow estimates the displacement taking prev onto next. Both planes
// must share dimensions; otherwise an empty field is returned.
func DenseFlow(prev, next frame.Plane, opts FlowOptions) FlowField {
	if prev.Empty() || next.Empty() || prev.Width != next.Width || prev.Height != next.Height {
		return FlowField{}
	}

	p1 := pyramid(prev, opts.Levels, opts.MinSize)
	p2 := pyramid(next, len(p1), opts.MinSize)

	var u, v []float64
	for l := len(p1) - 1; l >= 0; l-- {
		i1, i2 := p1[l], p2[l]
		if u == nil {
			u = make([]float64, len(i1.Data))
			v = make([]float64, len(i1.Data))
		} else {
			u, v = upsampleFlow(u, v, p1[l+1], i1)
		}
		refine(i1, i2, u, v, opts)
	}
	return FlowField{Width: prev.Width, Height: prev.Height, U: u, V: v}
}

// pyramid builds up to levels images by 2x2 box downsampling, stopping
// before either side falls below minSize.
func pyramid(p frame.Plane, levels, minSize int) []frame.Plane {
	out := []frame.Plane{p}
	for len(out) < max(levels, 1) {
		cur := out[len(out)-1]
		w, h := cur.Width/2, cur.Height/2
		if w < minSize || h < minSize {
			break
		}
		down := frame.NewPlane(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				s := cur.At(2*x, 2*y) + cur.At(2*x+1, 2*y) + cur.At(2*x, 2*y+1) + cur.At(2*x+1, 2*y+1)
				down.Data[y*w+x] = s / 4
			}
		}
		out = append(out, down)
	}
	return out
}

func upsampleFlow(u, v []float64, coarse, fine frame.Plane) ([]float64, []float64) {
	nu := make([]float64, len(fine.Data))
	nv := make([]float64, len(fine.Data))
	for y := 0; y < fine.Height; y++ {
		cy := min(y/2, coarse.Height-1)
		for x := 0; x < fine.Width; x++ {
			cx := min(x/2, coarse.Width-1)
			nu[y*fine.Width+x] = 2 * u[cy*coarse.Width+cx]
			nv[y*fine.Width+x] = 2 * v[cy*coarse.Width+cx]
		}
	}
	return nu, nv
}

// refine runs Lucas-Kanade iterations in place on u and v.
func refine(i1, i2 frame.Plane, u, v []float64, opts FlowOptions) {
	w, h := i1.Width, i1.Height
	n := w * h
	ix := make([]float64, n)
	iy := make([]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ix[y*w+x] = (i1.At(min(x+1, w-1), y) - i1.At(max(x-1, 0), y)) / 2
			iy[y*w+x] = (i1.At(x, min(y+1, h-1)) - i1.At(x, max(y-1, 0))) / 2
		}
	}

	a := boxSum(product(ix, ix), w, h, opts.Radius)
	b := boxSum(product(ix, iy), w, h, opts.Radius)
	c := boxSum(product(iy, iy), w, h, opts.Radius)
	limit := float64(max(opts.Radius, 1))

	it := make([]float64, n)
	for iter := 0; iter < max(opts.Iterations, 1); iter++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				k := y*w + x
				it[k] = bilinear(i2, float64(x)+u[k], float64(y)+v[k]) - i1.Data[k]
			}
		}
		d := boxSum(product(ix, it), w, h, opts.Radius)
		e := boxSum(product(iy, it), w, h, opts.Radius)

		for k := 0; k < n; k++ {
			det := a[k]*c[k] - b[k]*b[k]
			if det < opts.MinDet {
				continue
			}
			du := (b[k]*e[k] - c[k]*d[k]) / det
			dv := (b[k]*d[k] - a[k]*e[k]) / det
			u[k] += math.Max(-limit, math.Min(limit, du))
			v[k] += math.Max(-limit, math.Min(limit, dv))
		}
	}
}

func product(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

// boxSum sums src over a (2r+1)^2 window clipped at the borders, using a
// summed-area table.
func boxSum(src []float64, w, h, r int) []float64 {
	sat := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += src[y*w+x]
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
		}
	}
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r+1, w)
			out[y*w+x] = sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
		}
	}
	return out
}

// bilinear samples p at a sub-pixel position, clamping to the border.
func bilinear(p frame.Plane, x, y float64) float64 {
	x = math.Max(0, math.Min(x, float64(p.Width-1)))
	y = math.Max(0, math.Min(y, float64(p.Height-1)))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, p.Width-1), min(y0+1, p.Height-1)
	fx, fy := x-float64(x0), y-float64(y0)
	top := p.At(x0, y0)*(1-fx) + p.At(x1, y0)*fx
	bottom := p.At(x0, y1)*(1-fx) + p.At(x1, y1)*fx
	return top*(1-fy) + bottom*fy
}
