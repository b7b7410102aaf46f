package ensemble

import (
	"fmt"
	"sort"

	"github.com/kdimtricp/verifai/internal/frame"
)

// Severity grades an evidence item.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// EvidenceItem is one human-readable finding backing the verdict.
type EvidenceItem struct {
	Rank             int      `json:"rank"`
	Type             string   `json:"type"`
	Confidence       float64  `json:"confidence"`
	Severity         Severity `json:"severity"`
	Explanation      string   `json:"explanation"`
	TechnicalDetails string   `json:"technical_details"`
}

// Evidence types.
const (
	EvidenceSpatial     = "Spatial Artifacts"
	EvidenceTemporal    = "Temporal Inconsistency"
	EvidenceForensic    = "Forensic Frequency Anomalies"
	EvidenceMetadata    = "Metadata Inconsistencies"
	EvidenceConsensus   = "Multi-Engine Consensus"
	EvidenceMotion      = "Natural Motion Patterns"
	EvidenceSensorNoise = "Sensor Noise Integrity"
)

func graded(v, high float64) Severity {
	if v > high {
		return SeverityHigh
	}
	return SeverityMedium
}

// RankEvidence maps engine scores to evidence items, sorted by confidence
// descending, ranked from 1 and truncated to the configured maximum. Equal
// confidences keep rule order.
func (a *Aggregator) RankEvidence(b Breakdown) []EvidenceItem {
	b = b.Sanitized()
	cfg := a.cfg.Evidence
	round := func(v float64) float64 { return frame.Round(v, cfg.Precision) }

	items := []EvidenceItem{}
	if b.Spatial > cfg.SpatialAbove {
		items = append(items, EvidenceItem{
			Type:       EvidenceSpatial,
			Confidence: round(b.Spatial),
			Severity:   graded(b.Spatial, cfg.SpatialHigh),
			Explanation: fmt.Sprintf("Detected significant spatial anomalies (score: %.2f). "+
				"This includes distortions in skin texture or facial inconsistencies.", b.Spatial),
			TechnicalDetails: "CNN-based spatial artifact detection",
		})
	}
	if b.Temporal > cfg.TemporalAbove {
		items = append(items, EvidenceItem{
			Type:       EvidenceTemporal,
			Confidence: round(b.Temporal),
			Severity:   graded(b.Temporal, cfg.TemporalHigh),
			Explanation: fmt.Sprintf("Motion patterns exhibit unnatural smoothness (score: %.2f). "+
				"Real videos typically have natural jitter, while AI is often overly smooth.", b.Temporal),
			TechnicalDetails: "Optical flow variance analysis",
		})
	}
	if b.Forensic > cfg.ForensicAbove {
		items = append(items, EvidenceItem{
			Type:       EvidenceForensic,
			Confidence: round(b.Forensic),
			Severity:   graded(b.Forensic, cfg.ForensicHigh),
			Explanation: fmt.Sprintf("Frequency analysis reveals patterns (score: %.2f) "+
				"consistent with AI generation. These high-frequency artifacts "+
				"are rarely seen in authentic cameras.", b.Forensic),
			TechnicalDetails: "FFT-based frequency analysis",
		})
	}
	if b.Metadata > cfg.MetadataAbove {
		items = append(items, EvidenceItem{
			Type:             EvidenceMetadata,
			Confidence:       round(b.Metadata),
			Severity:         SeverityMedium,
			Explanation:      fmt.Sprintf("Video metadata shows anomalies (score: %.2f) typical of AI tools.", b.Metadata),
			TechnicalDetails: "EXIF and codec metadata analysis",
		})
	}

	scores := b.scores()
	flagged := 0
	for i, s := range scores {
		if s > cfg.ConsensusAbove[i] {
			flagged++
		}
	}
	if flagged >= cfg.ConsensusMin {
		var sum float64
		for _, s := range scores {
			if s > cfg.ConsensusFloor {
				sum += s
			}
		}
		items = append(items, EvidenceItem{
			Type:             EvidenceConsensus,
			Confidence:       round(frame.Clamp01(sum / float64(max(flagged, 1)))),
			Severity:         SeverityHigh,
			Explanation:      "Multiple detection engines flagged this video as AI-generated.",
			TechnicalDetails: "Ensemble agreement",
		})
	}

	authentic := true
	for _, s := range scores {
		if s >= cfg.AuthenticBelow {
			authentic = false
			break
		}
	}
	if authentic {
		items = append(items,
			EvidenceItem{
				Type:             EvidenceMotion,
				Confidence:       round(1 - b.Temporal),
				Severity:         SeverityLow,
				Explanation:      "Motion jitter and micro-movements are consistent with a real camera sensor.",
				TechnicalDetails: "Natural temporal variance",
			},
			EvidenceItem{
				Type:             EvidenceSensorNoise,
				Confidence:       round(1 - b.Forensic),
				Severity:         SeverityLow,
				Explanation:      "No structured frequency artifacts detected. The sensor noise appears consistent with organic footage.",
				TechnicalDetails: "Spectral domain consistency",
			},
		)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Confidence > items[j].Confidence })
	if cfg.MaxItems > 0 && len(items) > cfg.MaxItems {
		items = items[:cfg.MaxItems]
	}
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}
