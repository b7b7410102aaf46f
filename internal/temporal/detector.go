package temporal

import (
	"image"
	"sort"

	"github.com/kdimtricp/verifai/internal/frame"
)

// RegionDetector finds bounding boxes of one kind of object in a frame,
// most prominent first. An empty result means nothing was found.
type RegionDetector interface {
	DetectRegions(f *frame.Frame) []image.Rectangle
}

// DetectorFunc adapts a plain function to RegionDetector.
type DetectorFunc func(f *frame.Frame) []image.Rectangle

func (fn DetectorFunc) DetectRegions(f *frame.Frame) []image.Rectangle { return fn(f) }

// SkinFaceDetector locates faces as large connected regions of skin-tone
// chroma sampled on a coarse grid.
type SkinFaceDetector struct {
	Step        int
	CrMin       uint8
	CrMax       uint8
	CbMin       uint8
	CbMax       uint8
	MinFraction float64
	MinAspect   float64
	MaxAspect   float64
	MaxFaces    int
}

func NewSkinFaceDetector() *SkinFaceDetector {
	return &SkinFaceDetector{
		Step:        4,
		CrMin:       133,
		CrMax:       173,
		CbMin:       77,
		CbMax:       127,
		MinFraction: 0.01,
		MinAspect:   0.6,
		MaxAspect:   2.5,
		MaxFaces:    4,
	}
}

func (d *SkinFaceDetector) DetectRegions(f *frame.Frame) []image.Rectangle {
	_, cr, cb, err := f.YCrCb()
	if err != nil {
		return nil
	}
	step := max(d.Step, 1)
	gw, gh := (f.Width+step-1)/step, (f.Height+step-1)/step
	mask := make([]bool, gw*gh)
	for gy := 0; gy < gh; gy++ {
		y := min(gy*step+step/2, f.Height-1)
		for gx := 0; gx < gw; gx++ {
			x := min(gx*step+step/2, f.Width-1)
			i := y*f.Width + x
			mask[gy*gw+gx] = cr[i] >= d.CrMin && cr[i] <= d.CrMax && cb[i] >= d.CbMin && cb[i] <= d.CbMax
		}
	}

	minCells := int(d.MinFraction * float64(gw*gh))
	var faces []image.Rectangle
	for _, c := range components(mask, gw, gh) {
		if c.area < max(minCells, 1) {
			continue
		}
		box := image.Rect(c.minX*step, c.minY*step, (c.maxX+1)*step, (c.maxY+1)*step).Intersect(f.Bounds())
		aspect := float64(box.Dy()) / float64(max(box.Dx(), 1))
		if aspect < d.MinAspect || aspect > d.MaxAspect {
			continue
		}
		faces = append(faces, box)
		if d.MaxFaces > 0 && len(faces) == d.MaxFaces {
			break
		}
	}
	return faces
}

// DarkEyeDetector finds eyes as dark blobs in the upper band of a detected
// face, at most one per face half.
type DarkEyeDetector struct {
	Faces        RegionDetector
	BandTop      float64
	BandBottom   float64
	DarkRatio    float64
	MinAreaRatio float64
	MaxAreaRatio float64
}

func NewDarkEyeDetector(faces RegionDetector) *DarkEyeDetector {
	return &DarkEyeDetector{
		Faces:        faces,
		BandTop:      0.15,
		BandBottom:   0.55,
		DarkRatio:    0.55,
		MinAreaRatio: 0.001,
		MaxAreaRatio: 0.08,
	}
}

func (d *DarkEyeDetector) DetectRegions(f *frame.Frame) []image.Rectangle {
	faces := d.Faces.DetectRegions(f)
	if len(faces) == 0 {
		return nil
	}
	gray, err := f.GrayBytes()
	if err != nil {
		return nil
	}

	face := faces[0]
	top := face.Min.Y + int(d.BandTop*float64(face.Dy()))
	bottom := face.Min.Y + int(d.BandBottom*float64(face.Dy()))
	mid := face.Min.X + face.Dx()/2
	faceArea := float64(face.Dx() * face.Dy())

	var eyes []image.Rectangle
	for _, half := range []image.Rectangle{
		image.Rect(face.Min.X, top, mid, bottom),
		image.Rect(mid, top, face.Max.X, bottom),
	} {
		half = half.Intersect(f.Bounds())
		if half.Empty() {
			continue
		}
		w, h := half.Dx(), half.Dy()

		var sum float64
		for y := half.Min.Y; y < half.Max.Y; y++ {
			for x := half.Min.X; x < half.Max.X; x++ {
				sum += float64(gray[y*f.Width+x])
			}
		}
		cutoff := d.DarkRatio * sum / float64(w*h)

		mask := make([]bool, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				mask[y*w+x] = float64(gray[(half.Min.Y+y)*f.Width+half.Min.X+x]) < cutoff
			}
		}
		for _, c := range components(mask, w, h) {
			ratio := float64(c.area) / faceArea
			if ratio < d.MinAreaRatio || ratio > d.MaxAreaRatio {
				continue
			}
			eyes = append(eyes, image.Rect(
				half.Min.X+c.minX, half.Min.Y+c.minY,
				half.Min.X+c.maxX+1, half.Min.Y+c.maxY+1,
			))
			break
		}
	}
	return eyes
}

type component struct {
	minX, minY, maxX, maxY int
	area                   int
}

// components labels 4-connected true cells, largest first.
func components(mask []bool, w, h int) []component {
	seen := make([]bool, len(mask))
	var out []component
	stack := make([]int, 0, 64)
	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		c := component{minX: w, minY: h, maxX: -1, maxY: -1}
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			k := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := k%w, k/w
			c.area++
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if mask[j] && !seen[j] {
					seen[j] = true
					stack = append(stack, j)
				}
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].area > out[j].area })
	return out
}
