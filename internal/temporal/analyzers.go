package temporal

import (
	"fmt"
	"image"
	"math"

	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/score"
)

// Analyzer scores an ordered run of frames for one temporal cue.
type Analyzer interface {
	Name() string
	Anomaly() Anomaly
	Analyze(frames []*frame.Frame) score.Result
}

// Anomaly tags a triggered temporal cue.
type Anomaly string

const (
	SmoothMotion Anomaly = "smooth_motion"
	LipSync      Anomaly = "lip_sync"
	BlinkPattern Anomaly = "blink_pattern"
)

// MotionAnalyzer treats low variance of inter-frame flow magnitude as
// unnaturally smooth motion.
type MotionAnalyzer struct {
	cfg  MotionConfig
	flow FlowOptions
}

func NewMotionAnalyzer(cfg MotionConfig, flow FlowOptions) *MotionAnalyzer {
	return &MotionAnalyzer{cfg: cfg, flow: flow}
}

func (a *MotionAnalyzer) Name() string     { return "motion_smoothness" }
func (a *MotionAnalyzer) Anomaly() Anomaly { return SmoothMotion }

func (a *MotionAnalyzer) Analyze(frames []*frame.Frame) score.Result {
	if len(frames) < max(a.cfg.MinFrames, 2) {
		return score.Insufficient("Insufficient frames")
	}

	magnitudes := make([]float64, 0, len(frames)-1)
	prev, err := grayPlane(frames[0])
	if err != nil {
		return score.Insufficient("Grayscale conversion failed")
	}
	for _, f := range frames[1:] {
		next, err := grayPlane(f)
		if err != nil {
			continue
		}
		field := DenseFlow(prev, next, a.flow)
		if len(field.U) > 0 {
			magnitudes = append(magnitudes, field.MeanMagnitude())
		}
		prev = next
	}
	if len(magnitudes) == 0 {
		return score.Insufficient("No flow computed")
	}

	activity := frame.Mean(magnitudes)
	variance := frame.Variance(magnitudes)

	var conf float64
	if activity < a.cfg.ActivityFloor {
		conf = a.cfg.StaticScale * (activity / a.cfg.ActivityFloor)
	} else {
		conf = 1 - variance/(variance+a.cfg.VarianceScale)
	}
	conf = frame.Clamp01(conf)
	return score.New(conf, conf > a.cfg.FlagAbove,
		fmt.Sprintf("Motion smoothness: %.2f (Activity: %.3f)", conf, activity))
}

// LipSyncAnalyzer looks for outlier jumps in mouth-region change between
// consecutive frames.
type LipSyncAnalyzer struct {
	cfg   LipSyncConfig
	faces RegionDetector
}

func NewLipSyncAnalyzer(cfg LipSyncConfig, faces RegionDetector) *LipSyncAnalyzer {
	return &LipSyncAnalyzer{cfg: cfg, faces: faces}
}

func (a *LipSyncAnalyzer) Name() string     { return "lip_sync" }
func (a *LipSyncAnalyzer) Anomaly() Anomaly { return LipSync }

func (a *LipSyncAnalyzer) Analyze(frames []*frame.Frame) score.Result {
	frames = frames[:min(len(frames), a.cfg.MaxFrames)]
	size := max(a.cfg.MouthSize, 1)

	mouths := make([]*frame.Frame, 0, len(frames))
	for _, f := range frames {
		faces := a.faces.DetectRegions(f)
		if len(faces) == 0 {
			continue
		}
		face := faces[0]
		region := image.Rect(face.Min.X, face.Min.Y+face.Dy()/2, face.Max.X, face.Max.Y)
		crop := f.Crop(region)
		if crop == nil {
			continue
		}
		if m := crop.Resize(size, size); m != nil {
			mouths = append(mouths, m)
		}
	}
	if len(mouths) < a.cfg.MinDetections || len(mouths) < 2 {
		return score.Insufficient("Insufficient face detections for lip-sync analysis")
	}

	changes := make([]float64, 0, len(mouths)-1)
	for i := 0; i+1 < len(mouths); i++ {
		if d, ok := frame.MeanAbsDiff(mouths[i], mouths[i+1]); ok {
			changes = append(changes, d)
		}
	}
	if len(changes) == 0 {
		return score.Insufficient("No mouth movements detected")
	}

	mean := frame.Mean(changes)
	std := frame.StdDev(changes)
	anomalies := 0
	for _, c := range changes {
		if math.Abs(c-mean) > a.cfg.DeviationK*std {
			anomalies++
		}
	}

	conf := math.Min(float64(anomalies)/float64(len(changes)), 1)
	return score.New(conf, conf > a.cfg.FlagAbove,
		fmt.Sprintf("Lip-sync inconsistency in %d/%d transitions", anomalies, len(changes)))
}

// BlinkAnalyzer compares the eye visibility transition rate against a
// baseline blink rate.
type BlinkAnalyzer struct {
	cfg  BlinkConfig
	eyes RegionDetector
}

func NewBlinkAnalyzer(cfg BlinkConfig, eyes RegionDetector) *BlinkAnalyzer {
	return &BlinkAnalyzer{cfg: cfg, eyes: eyes}
}

func (a *BlinkAnalyzer) Name() string     { return "blink_pattern" }
func (a *BlinkAnalyzer) Anomaly() Anomaly { return BlinkPattern }

func (a *BlinkAnalyzer) Analyze(frames []*frame.Frame) score.Result {
	frames = frames[:min(len(frames), a.cfg.MaxFrames)]
	if len(frames) < a.cfg.MinFrames {
		return score.Insufficient("Insufficient frames for blink analysis")
	}

	visible := make([]bool, len(frames))
	for i, f := range frames {
		visible[i] = len(a.eyes.DetectRegions(f)) >= a.cfg.EyesRequired
	}
	return a.rate(visible)
}

func (a *BlinkAnalyzer) rate(visible []bool) score.Result {
	changes := 0
	for i := 0; i+1 < len(visible); i++ {
		if visible[i] != visible[i+1] {
			changes++
		}
	}

	expected := float64(len(visible)) / a.cfg.BaselineFrames * a.cfg.BaselineBlinks
	var ratio float64
	if expected > 0 {
		ratio = float64(changes) / expected
	}

	var conf float64
	anomaly := false
	switch {
	case ratio < a.cfg.LowRatio:
		conf = (1 - ratio/a.cfg.LowRatio) * a.cfg.LowCap
		anomaly = true
	case ratio > a.cfg.HighRatio:
		conf = math.Min((ratio-a.cfg.HighRatio)/a.cfg.HighSpan, a.cfg.HighCap)
		anomaly = true
	}
	return score.New(conf, anomaly,
		fmt.Sprintf("Blink frequency: %d (expected ~%.1f)", changes, expected))
}
