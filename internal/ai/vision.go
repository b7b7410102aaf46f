package ai

import (
	"context"
	"time"

	"github.com/kdimtricp/verifai/internal/frame"
)

// SpatialClassifier returns the probability that a single frame is
// synthetic. Implementations must be safe for concurrent use.
type SpatialClassifier interface {
	Classify(ctx context.Context, f *frame.Frame) (float64, error)
}

// SpatialScore summarizes a classifier run over several frames.
type SpatialScore struct {
	Confidence float64   `json:"confidence"`
	Frames     int       `json:"frames"`
	Failed     int       `json:"failed"`
	Scores     []float64 `json:"scores"`
	Timestamp  time.Time `json:"timestamp"`
}

type Config struct {
	// ClassifierURL is the model endpoint. Empty disables remote
	// classification.
	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierTimeout time.Duration
	// RequestsPerSecond limits outbound classifier calls; Burst is the
	// bucket size.
	RequestsPerSecond float64
	Burst             int
	JPEGQuality       int

	Extract ExtractOptions
}

func NewConfig() *Config {
	return &Config{
		ClassifierTimeout: 30 * time.Second,
		RequestsPerSecond: 10,
		Burst:             5,
		JPEGQuality:       90,
		Extract:           DefaultExtractOptions(),
	}
}
