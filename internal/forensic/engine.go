// Package forensic scores single frames for generation artifacts in the
// frequency, DCT block, per-channel spectral and chroma domains.
package forensic

import "github.com/kdimtricp/verifai/internal/frame"

// Result is the combined forensic evaluation of one frame.
type Result struct {
	Confidence       float64              `json:"confidence"`
	MaxConfidence    float64              `json:"max_confidence"`
	DominantArtifact Artifact             `json:"dominant_artifact"`
	Penalized        bool                 `json:"penalized"`
	Breakdown        map[Artifact]float64 `json:"breakdown"`
	Details          map[Artifact]string  `json:"details"`
}

// Engine runs an ordered set of analyzers and fuses their scores.
type Engine struct {
	cfg       Config
	analyzers []Analyzer
}

// NewEngine builds an engine with the four standard analyzers.
func NewEngine(cfg Config) *Engine {
	return NewEngineWith(cfg,
		NewFrequencyAnalyzer(cfg),
		NewBlockAnalyzer(cfg),
		NewDiffusionAnalyzer(cfg),
		NewCompressionAnalyzer(cfg),
	)
}

// NewEngineWith builds an engine over caller-supplied analyzers. Order
// breaks ties when picking the dominant artifact.
func NewEngineWith(cfg Config, analyzers ...Analyzer) *Engine {
	return &Engine{cfg: cfg, analyzers: analyzers}
}

// Evaluate scores one frame.
func (e *Engine) Evaluate(f *frame.Frame) Result {
	res := Result{
		Breakdown: make(map[Artifact]float64, len(e.analyzers)),
		Details:   make(map[Artifact]string, len(e.analyzers)),
	}
	scores := make([]Scored, 0, len(e.analyzers))
	for _, a := range e.analyzers {
		r := a.Analyze(f)
		res.Breakdown[a.Artifact()] = r.Confidence
		res.Details[a.Artifact()] = r.Detail
		scores = append(scores, Scored{Artifact: a.Artifact(), Confidence: r.Confidence})
	}

	c := Combine(scores, e.cfg)
	res.Confidence = c.Confidence
	res.MaxConfidence = c.Max
	res.DominantArtifact = c.Dominant
	res.Penalized = c.Penalized
	return res
}

// EvaluateFrames scores each frame and returns the per-frame results with
// their mean confidence.
func (e *Engine) EvaluateFrames(frames []*frame.Frame) ([]Result, float64) {
	results := make([]Result, 0, len(frames))
	confs := make([]float64, 0, len(frames))
	for _, f := range frames {
		r := e.Evaluate(f)
		results = append(results, r)
		confs = append(confs, r.Confidence)
	}
	return results, frame.Clamp01(frame.Mean(confs))
}

// Scored pairs an artifact with its sub-score.
type Scored struct {
	Artifact   Artifact
	Confidence float64
}

// Combination is the output of Combine.
type Combination struct {
	Confidence float64
	Max        float64
	Dominant   Artifact
	Penalized  bool
}

// Combine takes the weighted mean of the sub-scores and halves it when no
// analyzer is confident and the analyzers disagree.
func Combine(scores []Scored, cfg Config) Combination {
	if len(scores) == 0 {
		return Combination{}
	}

	vals := make([]float64, len(scores))
	var weighted, weightSum float64
	best := 0
	for i, s := range scores {
		v := frame.Clamp01(s.Confidence)
		vals[i] = v
		w := cfg.Weights.For(s.Artifact)
		weighted += w * v
		weightSum += w
		if v > vals[best] {
			best = i
		}
	}

	var avg float64
	if weightSum > 0 {
		avg = weighted / weightSum
	}
	maxConf := vals[best]

	c := Combination{Max: maxConf, Dominant: scores[best].Artifact}
	if maxConf < cfg.PenaltyMaxBelow && frame.StdDev(vals) > cfg.PenaltyStdAbove {
		avg *= cfg.PenaltyFactor
		c.Penalized = true
	}
	c.Confidence = frame.Clamp01(avg)
	return c
}
