package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/logging"
)

// NeutralClassifier scores every frame 0. It stands in when no model
// endpoint is configured.
type NeutralClassifier struct{}

func (NeutralClassifier) Classify(context.Context, *frame.Frame) (float64, error) { return 0, nil }

func (NeutralClassifier) Name() string { return "neutral" }

// ClassifierName identifies c. Classifiers without a Name method fall back
// to their type.
func ClassifierName(c SpatialClassifier) string {
	if n, ok := c.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", c)
}

// NewSpatialClassifier picks the remote classifier when an endpoint is
// configured and the neutral one otherwise.
func NewSpatialClassifier(config *Config) SpatialClassifier {
	if config.ClassifierURL == "" {
		logging.Info().Msg("spatial classifier disabled (no endpoint), scoring frames as 0")
		return NeutralClassifier{}
	}
	logging.Info().Str("endpoint", config.ClassifierURL).Msg("spatial classifier enabled")
	return NewRemoteClassifier(config)
}

// ScoreFrames classifies up to limit frames in order and averages the
// successful scores. A frame whose classification fails is logged and
// skipped; with no successes the confidence is 0.
func ScoreFrames(ctx context.Context, c SpatialClassifier, frames []*frame.Frame, limit int) SpatialScore {
	if limit > 0 && len(frames) > limit {
		frames = frames[:limit]
	}
	res := SpatialScore{Timestamp: time.Now(), Scores: make([]float64, 0, len(frames))}

	for i, f := range frames {
		if ctx.Err() != nil {
			res.Failed += len(frames) - i
			break
		}
		p, err := c.Classify(ctx, f)
		if err != nil || !frame.Finite(p) {
			logging.Ctx(ctx).Warn().Err(err).Int("frame", i).Msg("spatial classification failed")
			res.Failed++
			continue
		}
		res.Scores = append(res.Scores, frame.Clamp01(p))
	}

	res.Frames = len(res.Scores)
	res.Confidence = frame.Clamp01(frame.Mean(res.Scores))
	return res
}
