// Package score defines the result every analyzer returns.
package score

import "github.com/kdimtricp/verifai/internal/frame"

// Status distinguishes a genuine score from an analyzer that could not run.
type Status string

const (
	StatusOK               Status = "ok"
	StatusInsufficientData Status = "insufficient_data"
)

// Result is a single analyzer output. Confidence is always finite and
// within [0, 1].
type Result struct {
	Confidence float64            `json:"confidence"`
	Anomaly    bool               `json:"has_anomaly"`
	Status     Status             `json:"status"`
	Breakdown  map[string]float64 `json:"breakdown,omitempty"`
	Detail     string             `json:"details,omitempty"`
}

// New builds an OK result, clamping confidence into [0, 1].
func New(confidence float64, anomaly bool, detail string) Result {
	return Result{
		Confidence: frame.Clamp01(confidence),
		Anomaly:    anomaly,
		Status:     StatusOK,
		Detail:     detail,
	}
}

// Insufficient is the zero-confidence result for unmet input requirements.
func Insufficient(detail string) Result {
	return Result{Status: StatusInsufficientData, Detail: detail}
}

// Sufficient reports whether the analyzer had enough input to score.
func (r Result) Sufficient() bool {
	return r.Status != StatusInsufficientData
}
