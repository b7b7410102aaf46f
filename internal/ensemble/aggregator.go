// Package ensemble fuses the engine scores into a classification with
// ranked evidence.
package ensemble

import (
	"math"

	"github.com/kdimtricp/verifai/internal/frame"
)

// Classification is the binary verdict.
type Classification string

const (
	Real        Classification = "Real"
	AIGenerated Classification = "AI-Generated"
)

// Breakdown carries one scalar per engine.
type Breakdown struct {
	Spatial  float64 `json:"spatial"`
	Temporal float64 `json:"temporal"`
	Forensic float64 `json:"forensic"`
	Metadata float64 `json:"metadata"`
}

// Sanitized maps non-finite scores to 0 and clamps the rest into [0, 1].
func (b Breakdown) Sanitized() Breakdown {
	return Breakdown{
		Spatial:  frame.Clamp01(b.Spatial),
		Temporal: frame.Clamp01(b.Temporal),
		Forensic: frame.Clamp01(b.Forensic),
		Metadata: frame.Clamp01(b.Metadata),
	}
}

func (b Breakdown) scores() [4]float64 {
	return [4]float64{b.Spatial, b.Temporal, b.Forensic, b.Metadata}
}

// Verdict is the outcome of one aggregation.
type Verdict struct {
	Breakdown      Breakdown      `json:"breakdown"`
	Base           float64        `json:"base"`
	Boost          float64        `json:"boost"`
	Final          float64        `json:"final"`
	Classification Classification `json:"classification"`
}

// Aggregator applies a Config to engine scores. It holds no mutable state
// and is safe for concurrent use.
type Aggregator struct {
	cfg Config
}

func NewAggregator(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

func (a *Aggregator) Config() Config { return a.cfg }

// Aggregate computes the weighted base score, applies the red-flag boost
// and classifies.
func (a *Aggregator) Aggregate(b Breakdown) Verdict {
	b = b.Sanitized()
	w := a.cfg.Weights
	base := frame.Sanitize(b.Spatial*w.Spatial + b.Temporal*w.Temporal + b.Forensic*w.Forensic + b.Metadata*w.Metadata)

	var boost float64
	if b.Spatial > a.cfg.SpatialRedFlag {
		boost = math.Max(boost, a.cfg.RedFlagBoost)
	}
	if b.Forensic > a.cfg.ForensicRedFlag {
		boost = math.Max(boost, a.cfg.RedFlagBoost)
	}

	final := frame.Clamp01(base + boost)
	return Verdict{
		Breakdown:      b,
		Base:           base,
		Boost:          boost,
		Final:          final,
		Classification: a.Classify(final),
	}
}

// Classify applies the hard threshold. A score equal to the threshold is Real.
func (a *Aggregator) Classify(final float64) Classification {
	if frame.Sanitize(final) > a.cfg.Threshold {
		return AIGenerated
	}
	return Real
}

// AverageScores is the mean of the finite values in vals, or 0 when there
// are none.
func AverageScores(vals []float64) float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if frame.Finite(v) {
			finite = append(finite, v)
		}
	}
	return frame.Clamp01(frame.Mean(finite))
}
