package ensemble

import (
	"fmt"
	"strings"

	"github.com/kdimtricp/verifai/internal/frame"
)

// EnsembleReport is the response contract of one analysis.
type EnsembleReport struct {
	JobID            string         `json:"job_id"`
	FinalConfidence  float64        `json:"final_confidence"`
	Classification   Classification `json:"classification"`
	Evidence         []EvidenceItem `json:"evidence"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
}

// EngineContribution is one row of the engine breakdown table.
type EngineContribution struct {
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// DetailedReport is the long-form explanation of a verdict.
type DetailedReport struct {
	Summary         string                        `json:"summary"`
	ConfidenceLevel string                        `json:"confidence_level"`
	Evidence        []EvidenceItem                `json:"evidence"`
	EngineBreakdown map[string]EngineContribution `json:"engine_breakdown"`
}

// ConfidenceLevel describes how far final sits from the decision boundary.
func ConfidenceLevel(final float64) string {
	switch {
	case final > 0.8 || final < 0.2:
		return "Very High"
	case final > 0.65 || final < 0.35:
		return "High"
	case final > 0.55 || final < 0.45:
		return "Moderate"
	default:
		return "Low (Uncertain)"
	}
}

func summarize(final float64, class Classification, level string) string {
	var sb strings.Builder
	if class == AIGenerated {
		fmt.Fprintf(&sb, "This video is classified as AI-Generated with %.1f%% confidence. ", final*100)
		fmt.Fprintf(&sb, "Analysis confidence: %s. ", level)
		switch {
		case final > 0.8:
			sb.WriteString("Strong indicators across multiple detection methods.")
		case final > 0.65:
			sb.WriteString("Multiple detection methods flagged this content.")
		default:
			sb.WriteString("Some AI characteristics detected, but results are uncertain.")
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "This video is classified as Real with %.1f%% confidence. ", (1-final)*100)
	fmt.Fprintf(&sb, "Analysis confidence: %s. ", level)
	switch {
	case final < 0.2:
		sb.WriteString("Strong indicators of authentic footage.")
	case final < 0.35:
		sb.WriteString("Most detection methods indicate real content.")
	default:
		sb.WriteString("Appears real, but some anomalies detected.")
	}
	return sb.String()
}

// BuildDetailedReport explains a verdict using the aggregator's active
// weights.
func (a *Aggregator) BuildDetailedReport(v Verdict) DetailedReport {
	b := v.Breakdown.Sanitized()
	w := a.cfg.Weights
	p := a.cfg.Evidence.Precision
	row := func(score, weight float64) EngineContribution {
		return EngineContribution{
			Score:        frame.Round(score, p),
			Weight:       weight,
			Contribution: frame.Round(score*weight, p),
		}
	}

	level := ConfidenceLevel(v.Final)
	return DetailedReport{
		Summary:         summarize(v.Final, v.Classification, level),
		ConfidenceLevel: level,
		Evidence:        a.RankEvidence(b),
		EngineBreakdown: map[string]EngineContribution{
			"spatial":  row(b.Spatial, w.Spatial),
			"temporal": row(b.Temporal, w.Temporal),
			"forensic": row(b.Forensic, w.Forensic),
			"metadata": row(b.Metadata, w.Metadata),
		},
	}
}

// Report assembles the response contract for a verdict. The final
// confidence is rounded to four decimals.
func (a *Aggregator) Report(jobID string, v Verdict, elapsedMs float64) EnsembleReport {
	return EnsembleReport{
		JobID:            jobID,
		FinalConfidence:  frame.Round(v.Final, 4),
		Classification:   v.Classification,
		Evidence:         a.RankEvidence(v.Breakdown),
		ProcessingTimeMs: frame.Sanitize(elapsedMs),
	}
}
