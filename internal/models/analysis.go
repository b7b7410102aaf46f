package models

import (
	"time"

	"github.com/kdimtricp/verifai/internal/ensemble"
)

// AnalysisRecord is one stored verdict, a row of analysis_results.
type AnalysisRecord struct {
	JobID            string                  `json:"job_id"`
	Filename         string                  `json:"filename"`
	Classification   string                  `json:"classification"`
	Confidence       float64                 `json:"confidence"`
	SpatialScore     float64                 `json:"spatial_score"`
	TemporalScore    float64                 `json:"temporal_score"`
	ForensicScore    float64                 `json:"forensic_score"`
	MetadataScore    float64                 `json:"metadata_score"`
	Evidence         []ensemble.EvidenceItem `json:"evidence"`
	ProcessingTimeMs float64                 `json:"processing_time_ms"`
	Timestamp        time.Time               `json:"timestamp"`
}

func NewAnalysisRecord(filename string, report ensemble.EnsembleReport, b ensemble.Breakdown) *AnalysisRecord {
	return &AnalysisRecord{
		JobID:            report.JobID,
		Filename:         filename,
		Classification:   string(report.Classification),
		Confidence:       report.FinalConfidence,
		SpatialScore:     b.Spatial,
		TemporalScore:    b.Temporal,
		ForensicScore:    b.Forensic,
		MetadataScore:    b.Metadata,
		Evidence:         report.Evidence,
		ProcessingTimeMs: report.ProcessingTimeMs,
		Timestamp:        time.Now().UTC(),
	}
}

// Breakdown returns the stored engine scores.
func (r *AnalysisRecord) Breakdown() ensemble.Breakdown {
	return ensemble.Breakdown{
		Spatial:  r.SpatialScore,
		Temporal: r.TemporalScore,
		Forensic: r.ForensicScore,
		Metadata: r.MetadataScore,
	}
}
