package frame

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

// Variance is the population variance, or 0 for an empty slice.
func Variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.PopVariance(vals, nil)
}

// StdDev is the population standard deviation.
func StdDev(vals []float64) float64 {
	return math.Sqrt(Variance(vals))
}

// ByteVariance is the population variance of 8-bit samples.
func ByteVariance(vals []uint8) float64 {
	f := make([]float64, len(vals))
	for i, v := range vals {
		f[i] = float64(v)
	}
	return Variance(f)
}

// Distinct counts the distinct values among 8-bit samples.
func Distinct(vals []uint8) int {
	var seen [256]bool
	n := 0
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			n++
		}
	}
	return n
}

// Pearson returns the correlation coefficient of a and b. ok is false when
// the lengths differ or either input has zero variance.
func Pearson(a, b []float64) (r float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	if Variance(a) == 0 || Variance(b) == 0 {
		return 0, false
	}
	r = stat.Correlation(a, b, nil)
	if !Finite(r) {
		return 0, false
	}
	return r, true
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize maps non-finite values to 0.
func Sanitize(v float64) float64 {
	if !Finite(v) {
		return 0
	}
	return v
}

// Clamp01 sanitizes v and bounds it to [0, 1].
func Clamp01(v float64) float64 {
	v = Sanitize(v)
	return math.Max(0, math.Min(1, v))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
