package forensic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/score"
)

type stubAnalyzer struct {
	artifact Artifact
	conf     float64
}

func (s stubAnalyzer) Artifact() Artifact { return s.artifact }

func (s stubAnalyzer) Analyze(*frame.Frame) score.Result {
	return score.New(s.conf, false, "stub")
}

func scored(vals ...float64) []Scored {
	names := []Artifact{Frequency, GAN, Diffusion, Compression}
	out := make([]Scored, len(vals))
	for i, v := range vals {
		out[i] = Scored{Artifact: names[i], Confidence: v}
	}
	return out
}

func TestCombine(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		scores    []Scored
		want      float64
		penalized bool
		dominant  Artifact
	}{
		{
			name:     "equal scores never penalized",
			scores:   scored(0.3, 0.3, 0.3, 0.3),
			want:     0.3,
			dominant: Frequency,
		},
		{
			name:     "confident analyzer skips penalty",
			scores:   scored(0.9, 0.1, 0.1, 0.1),
			want:     0.38,
			dominant: Frequency,
		},
		{
			name:      "unconfident disagreement halves the average",
			scores:    scored(0.55, 0.2, 0.2, 0.2),
			want:      0.3225 / 2,
			penalized: true,
			dominant:  Frequency,
		},
		{
			name:     "dominant follows highest score",
			scores:   scored(0.1, 0.2, 0.7, 0.3),
			want:     0.1*0.35 + 0.2*0.35 + 0.7*0.2 + 0.3*0.1,
			dominant: Diffusion,
		},
		{
			name:      "non-finite sub-scores are sanitized",
			scores:    scored(math.NaN(), math.Inf(1), 0.4, 0),
			want:      0.04,
			penalized: true,
			dominant:  Diffusion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Combine(tt.scores, cfg)
			assert.InDelta(t, tt.want, c.Confidence, 1e-9)
			assert.Equal(t, tt.penalized, c.Penalized)
			assert.Equal(t, tt.dominant, c.Dominant)
		})
	}

	t.Run("penalty is exactly half of the unpenalized average", func(t *testing.T) {
		noPenalty := cfg
		noPenalty.PenaltyFactor = 1
		full := Combine(scored(0.55, 0.2, 0.2, 0.2), noPenalty)
		half := Combine(scored(0.55, 0.2, 0.2, 0.2), cfg)
		assert.InDelta(t, full.Confidence/2, half.Confidence, 1e-12)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, Combination{}, Combine(nil, cfg))
	})
}

func TestEngineWithStubs(t *testing.T) {
	e := NewEngineWith(DefaultConfig(),
		stubAnalyzer{Frequency, 0.2},
		stubAnalyzer{GAN, 0.8},
		stubAnalyzer{Diffusion, 0.4},
		stubAnalyzer{Compression, 0.1},
	)

	r := e.Evaluate(frame.New(4, 4))
	assert.Equal(t, GAN, r.DominantArtifact)
	assert.InDelta(t, 0.8, r.MaxConfidence, 1e-12)
	assert.InDelta(t, 0.2*0.35+0.8*0.35+0.4*0.2+0.1*0.1, r.Confidence, 1e-12)
	assert.Len(t, r.Breakdown, 4)

	results, avg := e.EvaluateFrames([]*frame.Frame{frame.New(2, 2), frame.New(2, 2)})
	assert.Len(t, results, 2)
	assert.InDelta(t, r.Confidence, avg, 1e-12)

	_, avg = e.EvaluateFrames(nil)
	assert.Equal(t, 0.0, avg)
}

// testFrames covers flat, textured, noisy and degenerate inputs.
func testFrames() map[string]*frame.Frame {
	const w, h = 96, 80
	noise := frame.New(w, h)
	seed := uint32(12345)
	for i := range noise.Pix {
		seed = seed*1664525 + 1013904223
		noise.Pix[i] = uint8(seed >> 24)
	}

	gradient := frame.New(w, h)
	checker := frame.New(w, h)
	flat := frame.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gradient.Set(x, y, uint8(x*2), uint8(y*3), uint8((x+y)%256))
			if (x/8+y/8)%2 == 0 {
				checker.Set(x, y, 255, 255, 255)
			}
			flat.Set(x, y, 90, 120, 150)
		}
	}

	return map[string]*frame.Frame{
		"noise":    noise,
		"gradient": gradient,
		"checker":  checker,
		"flat":     flat,
		"black":    frame.New(w, h),
		"tiny":     frame.New(3, 3),
		"empty":    {},
	}
}

func TestAnalyzersStayInRange(t *testing.T) {
	cfg := DefaultConfig()
	analyzers := []Analyzer{
		NewFrequencyAnalyzer(cfg),
		NewBlockAnalyzer(cfg),
		NewDiffusionAnalyzer(cfg),
		NewCompressionAnalyzer(cfg),
	}

	for name, f := range testFrames() {
		for _, a := range analyzers {
			t.Run(name+"/"+string(a.Artifact()), func(t *testing.T) {
				r := a.Analyze(f)
				assert.False(t, math.IsNaN(r.Confidence))
				assert.GreaterOrEqual(t, r.Confidence, 0.0)
				assert.LessOrEqual(t, r.Confidence, 1.0)
			})
		}
	}

	e := NewEngine(cfg)
	for name, f := range testFrames() {
		t.Run("engine/"+name, func(t *testing.T) {
			r := e.Evaluate(f)
			assert.GreaterOrEqual(t, r.Confidence, 0.0)
			assert.LessOrEqual(t, r.Confidence, 1.0)
			assert.LessOrEqual(t, r.Confidence, r.MaxConfidence+1e-12)
		})
	}
}

func TestDegenerateFrames(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("empty frame is insufficient everywhere", func(t *testing.T) {
		for _, a := range []Analyzer{
			NewFrequencyAnalyzer(cfg),
			NewBlockAnalyzer(cfg),
			NewDiffusionAnalyzer(cfg),
			NewCompressionAnalyzer(cfg),
		} {
			r := a.Analyze(&frame.Frame{})
			assert.False(t, r.Sufficient(), a.Artifact())
			assert.Equal(t, 0.0, r.Confidence)
		}
		assert.Equal(t, 0.0, NewEngine(cfg).Evaluate(nil).Confidence)
	})

	t.Run("frame smaller than a block", func(t *testing.T) {
		r := NewBlockAnalyzer(cfg).Analyze(frame.New(8, 8))
		assert.False(t, r.Sufficient())
		assert.Equal(t, "No blocks analyzed", r.Detail)
	})

	t.Run("flat frame has no high frequencies", func(t *testing.T) {
		r := NewFrequencyAnalyzer(cfg).Analyze(testFrames()["flat"])
		assert.Equal(t, 0.0, r.Confidence)
	})

	t.Run("flat chroma is fully posterized", func(t *testing.T) {
		r := NewCompressionAnalyzer(cfg).Analyze(testFrames()["flat"])
		require.True(t, r.Sufficient())
		assert.InDelta(t, 0.5+0.5*(1-2.0/512), r.Confidence, 1e-9)
		assert.True(t, r.Anomaly)
	})
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	f := testFrames()["noise"]
	assert.Equal(t, e.Evaluate(f), e.Evaluate(f))
}
