package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kdimtricp/verifai/internal/analysis"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/logging"
	"github.com/kdimtricp/verifai/internal/models"
	"github.com/kdimtricp/verifai/internal/storage"
)

var validate = validator.New()

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

type App struct {
	Storage       storage.Storage
	DB            *database.DB
	Results       *database.AnalysisRepo
	Service       *analysis.Service
	Downloader    *Downloader
	MaxUploadSize int64

	CORSOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
}

func (app *App) allowedOrigins() []string {
	if len(app.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return app.CORSOrigins
}

type errorResponse struct {
	Error string `json:"error"`
}

type AnalyzeURLRequest struct {
	URL string `json:"url" validate:"required,url"`
}

type ResultsResponse struct {
	Results []*models.AnalysisRecord `json:"results"`
	Counts  map[string]int           `json:"counts"`
}

type ReportResponse struct {
	JobID           string                  `json:"job_id"`
	Filename        string                  `json:"filename"`
	Classification  ensemble.Classification `json:"classification"`
	FinalConfidence float64                 `json:"final_confidence"`
	Timestamp       time.Time               `json:"timestamp"`
	Report          ensemble.DetailedReport `json:"report"`
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// AnalyzeHandler accepts a multipart upload in the "file" field.
func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to get file")
		return
	}
	defer file.Close()

	jobID := analysis.NewJobID()
	filename := storage.SanitizeFilename(header.Filename)
	name, err := app.Storage.SaveFile(file, storage.FileInfo{
		JobID:       jobID,
		Filename:    filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		logging.Err(err).Str("job_id", jobID).Msg("failed to save upload")
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	app.analyzeStored(w, r, jobID, name, filename)
}

// AnalyzeURLHandler downloads {"url": ...} and analyzes it.
func (app *App) AnalyzeURLHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeURLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "A valid url is required")
		return
	}

	jobID := analysis.NewJobID()
	filename := storage.SanitizeFilename(FilenameFromURL(req.URL))
	name, err := app.Downloader.Download(r.Context(), req.URL, storage.FileInfo{
		JobID:    jobID,
		Filename: filename,
	})
	if err != nil {
		logging.Warn().Err(err).Str("job_id", jobID).Str("url", req.URL).Msg("download failed")
		writeError(w, http.StatusBadRequest, "Failed to download video from URL")
		return
	}

	app.analyzeStored(w, r, jobID, name, filename)
}

// analyzeStored runs the analysis on a stored file and always removes it.
func (app *App) analyzeStored(w http.ResponseWriter, r *http.Request, jobID, name, filename string) {
	defer func() {
		if err := app.Storage.DeleteFile(name); err != nil {
			logging.Warn().Err(err).Str("job_id", jobID).Msg("failed to remove analyzed file")
		}
	}()

	path, err := app.Storage.Path(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to locate file")
		return
	}

	res, err := app.Service.Analyze(r.Context(), analysis.Request{
		JobID:    jobID,
		Path:     path,
		Filename: filename,
	})
	if errors.Is(err, analysis.ErrNoFrames) {
		writeError(w, http.StatusUnprocessableEntity, analysis.ErrNoFrames.Error())
		return
	}
	if err != nil {
		logging.Err(err).Str("job_id", jobID).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, "Analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, res.Report)
}

// ListResultsHandler returns the newest stored verdicts, ?limit=N.
func (app *App) ListResultsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxResultsLimit)
	}

	records, err := app.Results.ListRecent(r.Context(), limit)
	if err != nil {
		logging.Err(err).Msg("failed to list results")
		writeError(w, http.StatusInternalServerError, "Error loading results")
		return
	}
	counts, err := app.Results.CountByClassification(r.Context())
	if err != nil {
		logging.Err(err).Msg("failed to count results")
		writeError(w, http.StatusInternalServerError, "Error loading results")
		return
	}

	writeJSON(w, http.StatusOK, ResultsResponse{Results: records, Counts: counts})
}

func (app *App) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := app.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetReportHandler rebuilds the detailed report from the stored engine
// scores using the active weight set.
func (app *App) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := app.lookup(w, r)
	if !ok {
		return
	}

	agg := app.Service.Aggregator()
	verdict := agg.Aggregate(rec.Breakdown())
	writeJSON(w, http.StatusOK, ReportResponse{
		JobID:           rec.JobID,
		Filename:        rec.Filename,
		Classification:  verdict.Classification,
		FinalConfidence: verdict.Final,
		Timestamp:       rec.Timestamp,
		Report:          agg.BuildDetailedReport(verdict),
	})
}

// DeleteResultHandler forgets a stored verdict.
func (app *App) DeleteResultHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	err := app.Results.Delete(r.Context(), jobID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		logging.Err(err).Str("job_id", jobID).Msg("failed to delete result")
		writeError(w, http.StatusInternalServerError, "Error deleting result")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) lookup(w http.ResponseWriter, r *http.Request) (*models.AnalysisRecord, bool) {
	jobID := chi.URLParam(r, "jobID")
	rec, err := app.Results.GetByJobID(r.Context(), jobID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return nil, false
	}
	if err != nil {
		logging.Err(err).Str("job_id", jobID).Msg("failed to load result")
		writeError(w, http.StatusInternalServerError, "Error loading result")
		return nil, false
	}
	return rec, true
}
