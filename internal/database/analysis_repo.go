package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/models"
)

const analysisColumns = `job_id, filename, classification, confidence,
	spatial_score, temporal_score, forensic_score, metadata_score,
	evidence, processing_time_ms, timestamp`

type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Save inserts the record, replacing any earlier row with the same job id.
func (r *AnalysisRepo) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	evidence := rec.Evidence
	if evidence == nil {
		evidence = []ensemble.EvidenceItem{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence: %w", err)
	}

	query := `
		INSERT INTO analysis_results (` + analysisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_id)
		DO UPDATE SET
			filename = EXCLUDED.filename,
			classification = EXCLUDED.classification,
			confidence = EXCLUDED.confidence,
			spatial_score = EXCLUDED.spatial_score,
			temporal_score = EXCLUDED.temporal_score,
			forensic_score = EXCLUDED.forensic_score,
			metadata_score = EXCLUDED.metadata_score,
			evidence = EXCLUDED.evidence,
			processing_time_ms = EXCLUDED.processing_time_ms,
			timestamp = EXCLUDED.timestamp`

	_, err = r.db.conn.ExecContext(ctx, query,
		rec.JobID,
		rec.Filename,
		rec.Classification,
		rec.Confidence,
		rec.SpatialScore,
		rec.TemporalScore,
		rec.ForensicScore,
		rec.MetadataScore,
		string(evidenceJSON),
		rec.ProcessingTimeMs,
		rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", rec.JobID, err)
	}
	return nil
}

// GetByJobID returns ErrNotFound for an unknown job.
func (r *AnalysisRepo) GetByJobID(ctx context.Context, jobID string) (*models.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analysis_results WHERE job_id = $1`

	rec, err := scanRecord(r.db.conn.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis %s: %w", jobID, err)
	}
	return rec, nil
}

// ListRecent returns up to limit records, newest first.
func (r *AnalysisRepo) ListRecent(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + analysisColumns + ` FROM analysis_results ORDER BY timestamp DESC, job_id LIMIT $1`

	rows, err := r.db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	records := []*models.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByClassification returns the number of stored verdicts per label.
func (r *AnalysisRepo) CountByClassification(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT classification, COUNT(*) FROM analysis_results GROUP BY classification`)
	if err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[class] = n
	}
	return counts, rows.Err()
}

// Delete removes a stored verdict, returning ErrNotFound for an unknown job.
func (r *AnalysisRepo) Delete(ctx context.Context, jobID string) error {
	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM analysis_results WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete analysis %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete analysis %s: %w", jobID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.AnalysisRecord, error) {
	rec := &models.AnalysisRecord{}
	var evidenceJSON string
	err := row.Scan(
		&rec.JobID,
		&rec.Filename,
		&rec.Classification,
		&rec.Confidence,
		&rec.SpatialScore,
		&rec.TemporalScore,
		&rec.ForensicScore,
		&rec.MetadataScore,
		&evidenceJSON,
		&rec.ProcessingTimeMs,
		&rec.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	rec.Evidence = []ensemble.EvidenceItem{}
	if evidenceJSON != "" {
		if err := json.Unmarshal([]byte(evidenceJSON), &rec.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
	}
	return rec, nil
}
