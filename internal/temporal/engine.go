// Package temporal scores a frame sequence for motion, mouth and blink
// behavior that is atypical of camera footage.
package temporal

import (
	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/score"
)

// Result is the sequence-level temporal evaluation. Status is
// insufficient_data when no analyzer could score the sequence.
type Result struct {
	Confidence   float64            `json:"confidence"`
	Status       score.Status       `json:"status"`
	HasAnomaly   bool               `json:"has_anomaly"`
	AnomalyTypes []Anomaly          `json:"anomaly_types"`
	Breakdown    map[string]float64 `json:"breakdown"`
	Details      map[string]string  `json:"details"`
}

// Engine runs the temporal analyzers in order and averages the ones that
// had enough input.
type Engine struct {
	analyzers []Analyzer
}

// NewEngine wires the motion, lip-sync and blink analyzers. faces feeds the
// lip-sync analyzer and eyes the blink analyzer.
func NewEngine(cfg Config, faces, eyes RegionDetector) *Engine {
	return NewEngineWith(
		NewMotionAnalyzer(cfg.Motion, cfg.Flow),
		NewLipSyncAnalyzer(cfg.LipSync, faces),
		NewBlinkAnalyzer(cfg.Blink, eyes),
	)
}

// NewDefaultEngine uses the built-in skin-tone face and dark-blob eye
// detectors.
func NewDefaultEngine(cfg Config) *Engine {
	faces := NewSkinFaceDetector()
	return NewEngine(cfg, faces, NewDarkEyeDetector(faces))
}

func NewEngineWith(analyzers ...Analyzer) *Engine {
	return &Engine{analyzers: analyzers}
}

// Analyze scores the sequence.
func (e *Engine) Analyze(seq *frame.Sequence) Result {
	frames := seq.Frames()
	res := Result{
		Status:       score.StatusOK,
		AnomalyTypes: []Anomaly{},
		Breakdown:    make(map[string]float64, len(e.analyzers)),
		Details:      make(map[string]string, len(e.analyzers)),
	}

	var valid []float64
	for _, a := range e.analyzers {
		r := a.Analyze(frames)
		res.Breakdown[a.Name()] = frame.Clamp01(r.Confidence)
		res.Details[a.Name()] = r.Detail
		if !r.Sufficient() {
			continue
		}
		valid = append(valid, frame.Clamp01(r.Confidence))
		if r.Anomaly {
			res.AnomalyTypes = append(res.AnomalyTypes, a.Anomaly())
		}
	}

	if len(valid) == 0 {
		res.Status = score.StatusInsufficientData
		res.Details["status"] = "Insufficient frames for temporal analysis"
		return res
	}
	res.Confidence = frame.Clamp01(frame.Mean(valid))
	res.HasAnomaly = len(res.AnomalyTypes) > 0
	return res
}
