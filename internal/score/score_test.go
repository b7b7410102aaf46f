package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClampsConfidence(t *testing.T) {
	tests := map[string]struct {
		in   float64
		want float64
	}{
		"in range": {0.42, 0.42},
		"above":    {1.7, 1},
		"below":    {-0.3, 0},
		"nan":      {math.NaN(), 0},
		"inf":      {math.Inf(1), 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := New(tt.in, true, "x")
			assert.InDelta(t, tt.want, r.Confidence, 1e-12)
			assert.Equal(t, StatusOK, r.Status)
			assert.True(t, r.Sufficient())
		})
	}
}

func TestInsufficient(t *testing.T) {
	r := Insufficient("need 2 frames")
	assert.Zero(t, r.Confidence)
	assert.False(t, r.Anomaly)
	assert.False(t, r.Sufficient())
	assert.Equal(t, "need 2 frames", r.Detail)
}
