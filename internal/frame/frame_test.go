package frame

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, r, g, b uint8) *Frame {
	f := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, r, g, b)
		}
	}
	return f
}

func TestFrameConversions(t *testing.T) {
	f := solid(4, 3, 100, 100, 100)

	t.Run("luma of gray pixel", func(t *testing.T) {
		p, err := f.Luma()
		require.NoError(t, err)
		assert.Equal(t, 12, len(p.Data))
		assert.InDelta(t, 100.0/255, p.At(2, 1), 1e-9)
	})

	t.Run("ycrcb of gray pixel is chroma neutral", func(t *testing.T) {
		y, cr, cb, err := f.YCrCb()
		require.NoError(t, err)
		assert.Equal(t, uint8(100), y[0])
		assert.Equal(t, uint8(128), cr[0])
		assert.Equal(t, uint8(128), cb[0])
	})

	t.Run("channel scaling", func(t *testing.T) {
		g := solid(2, 2, 255, 0, 51)
		red, err := g.Channel(Red)
		require.NoError(t, err)
		blue, err := g.Channel(Blue)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, red.Data[0], 1e-9)
		assert.InDelta(t, 0.2, blue.Data[3], 1e-9)
	})

	t.Run("empty frame errors", func(t *testing.T) {
		_, err := (&Frame{}).Luma()
		assert.ErrorIs(t, err, ErrEmptyFrame)
		_, _, _, err = (&Frame{Width: 2, Height: 2}).YCrCb()
		assert.ErrorIs(t, err, ErrEmptyFrame)
	})
}

func TestCropAndResize(t *testing.T) {
	f := New(10, 8)
	f.Set(5, 4, 200, 10, 10)

	c := f.Crop(image.Rect(4, 4, 20, 20))
	require.NotNil(t, c)
	assert.Equal(t, 6, c.Width)
	assert.Equal(t, 4, c.Height)
	r, _, _ := c.RGB(1, 0)
	assert.Equal(t, uint8(200), r)

	assert.Nil(t, f.Crop(image.Rect(20, 20, 30, 30)))

	big := solid(16, 16, 40, 80, 120).Resize(64, 64)
	require.NotNil(t, big)
	assert.Equal(t, 64, big.Width)
	rr, gg, bb := big.RGB(31, 31)
	assert.InDelta(t, 40, int(rr), 1)
	assert.InDelta(t, 80, int(gg), 1)
	assert.InDelta(t, 120, int(bb), 1)
}

func TestMeanAbsDiff(t *testing.T) {
	a := solid(4, 4, 10, 10, 10)
	b := solid(4, 4, 14, 10, 6)
	d, ok := MeanAbsDiff(a, b)
	require.True(t, ok)
	assert.InDelta(t, 8.0/3, d, 1e-9)

	_, ok = MeanAbsDiff(a, solid(2, 2, 0, 0, 0))
	assert.False(t, ok)
}

func TestFFTMagnitude(t *testing.T) {
	p := NewPlane(6, 4)
	for i := range p.Data {
		p.Data[i] = 1
	}
	mag := FFTMagnitude(p)
	assert.InDelta(t, 24.0, mag.At(0, 0), 1e-9)
	for i := 1; i < len(mag.Data); i++ {
		assert.InDelta(t, 0.0, mag.Data[i], 1e-9)
	}

	shifted := FFTShift(mag)
	assert.InDelta(t, 24.0, shifted.At(3, 2), 1e-9)
}

func TestDCT(t *testing.T) {
	p := NewPlane(8, 6)
	for i := range p.Data {
		p.Data[i] = 0.5
	}
	d := DCT(p, 4, 4)
	require.Equal(t, 16, len(d.Data))
	assert.InDelta(t, 0.5*math.Sqrt(48), d.At(0, 0), 1e-9)
	for i := 1; i < len(d.Data); i++ {
		assert.InDelta(t, 0.0, d.Data[i], 1e-9)
	}

	assert.Equal(t, 6, DCT(p, 100, 3).Height)
}

func TestStats(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(vals), 1e-12)
	assert.InDelta(t, 4.0, Variance(vals), 1e-12)
	assert.InDelta(t, 2.0, StdDev(vals), 1e-12)
	assert.Equal(t, 0.0, Mean(nil))

	r, ok := Pearson([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, ok = Pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, ok = Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.False(t, ok)
	_, ok = Pearson([]float64{1, 2}, []float64{1, 2, 3})
	assert.False(t, ok)
	_, ok = Pearson(nil, nil)
	assert.False(t, ok)

	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, ByteVariance(nil))
	assert.Equal(t, 0.0, Variance([]float64{3, 3, 3}))

	assert.Equal(t, 3, Distinct([]uint8{1, 1, 2, 9}))
	assert.InDelta(t, 0.25, ByteVariance([]uint8{1, 2, 1, 2}), 1e-12)

	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.0, Sanitize(math.Inf(-1)))
	assert.Equal(t, 0.5312, Round(0.53118, 4))
}

func TestSequence(t *testing.T) {
	s := NewSequence(5, solid(4, 4, 0, 0, 0), &Frame{}, solid(2, 2, 0, 0, 0), solid(4, 4, 1, 1, 1))
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.Head(10), 2)
	assert.Len(t, s.Head(1), 1)
	s.Release()
	assert.Equal(t, 0, s.Len())

	var nilSeq *Sequence
	assert.Equal(t, 0, nilSeq.Len())
}
