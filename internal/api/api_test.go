package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/verifai/internal/ai"
	"github.com/kdimtricp/verifai/internal/analysis"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/forensic"
	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/models"
	"github.com/kdimtricp/verifai/internal/storage"
	"github.com/kdimtricp/verifai/internal/temporal"
)

// stubFrames yields a fixed number of blank frames for any path.
type stubFrames struct {
	mu     sync.Mutex
	frames int
	seen   []string
}

func (s *stubFrames) setFrames(n int) {
	s.mu.Lock()
	s.frames = n
	s.mu.Unlock()
}

func (s *stubFrames) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *stubFrames) ExtractSequence(ctx context.Context, path string, opts ai.ExtractOptions) (*frame.Sequence, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, path)
	seq := frame.NewSequence(opts.FPS)
	for i := 0; i < s.frames; i++ {
		seq.Append(frame.New(16, 16))
	}
	return seq, nil
}

type TestServer struct {
	Server    *httptest.Server
	App       *App
	Repo      *database.AnalysisRepo
	Frames    *stubFrames
	UploadDir string
}

func setupTestServer(t *testing.T) *TestServer {
	t.Helper()
	tempDir := t.TempDir()

	uploadDir := filepath.Join(tempDir, "uploads")
	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(tempDir, "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	repo := database.NewAnalysisRepo(db)

	// No engine analyzers: every frame score is 0, so the verdict depends on
	// metadata alone and is deterministic.
	frames := &stubFrames{frames: 6}
	service := analysis.NewService(
		frames,
		ai.NeutralClassifier{},
		forensic.NewEngineWith(forensic.DefaultConfig()),
		temporal.NewEngineWith(),
		ai.NewMetadataInspector(ai.DefaultMetadataConfig(), nil),
		ensemble.NewAggregator(ensemble.DefaultConfig()),
		analysis.Config{},
	).WithStore(repo)

	app := &App{
		Storage:       localStorage,
		DB:            db,
		Results:       repo,
		Service:       service,
		Downloader:    NewDownloader(localStorage, DefaultDownloaderConfig()),
		MaxUploadSize: 1 << 20,
	}

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(func() {
		server.Close()
		db.Close()
	})

	return &TestServer{Server: server, App: app, Repo: repo, Frames: frames, UploadDir: uploadDir}
}

func createMultipartUpload(field, filename string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func uploadVideo(t *testing.T, server, field, filename string, content []byte) *http.Response {
	t.Helper()
	body, contentType, err := createMultipartUpload(field, filename, content)
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}

	resp, err := http.Post(server+"/api/analyze", contentType, body)
	if err != nil {
		t.Fatalf("Failed to upload video: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return v
}

func assertUploadDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected analyzed files to be removed, found %d", len(entries))
	}
}

func TestPing(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.Server.URL + "/ping")
	if err != nil {
		t.Fatalf("Failed to ping: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "pong" {
		t.Errorf("Expected 200 pong, got %d %q", resp.StatusCode, body)
	}
}

func TestAnalyzeUpload(t *testing.T) {
	ts := setupTestServer(t)

	resp := uploadVideo(t, ts.Server.URL, "file", "clip.mp4", []byte("fake mp4 content"))
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON response, got %s", ct)
	}
	report := decode[ensemble.EnsembleReport](t, resp)

	// Metadata only: fresh file, no camera tags, small size = .15; .15 * .10.
	if report.Classification != ensemble.Real || report.FinalConfidence != 0.015 {
		t.Errorf("Unexpected verdict %s %.4f", report.Classification, report.FinalConfidence)
	}
	if len(report.JobID) != 36 {
		t.Errorf("Expected uuid job id, got %q", report.JobID)
	}
	if report.Evidence == nil {
		t.Error("Expected evidence array, got null")
	}

	if seen := ts.Frames.paths(); len(seen) != 1 || filepath.Base(seen[0]) != report.JobID+"_clip.mp4" {
		t.Errorf("Expected file stored as {job_id}_clip.mp4, got %v", seen)
	}
	assertUploadDirEmpty(t, ts.UploadDir)

	rec, err := ts.Repo.GetByJobID(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("Expected stored result: %v", err)
	}
	if rec.Filename != "clip.mp4" || rec.Classification != "Real" {
		t.Errorf("Unexpected stored record: %+v", rec)
	}
}

func TestAnalyzeUploadErrors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name           string
		field          string
		content        []byte
		frames         int
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Wrong form field",
			field:          "video",
			content:        []byte("data"),
			frames:         6,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Failed to get file",
		},
		{
			name:           "No decodable frames",
			field:          "file",
			content:        []byte("not a video"),
			frames:         0,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "no frames could be decoded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts.Frames.setFrames(tt.frames)
			resp := uploadVideo(t, ts.Server.URL, tt.field, "clip.mp4", tt.content)
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}
			body := decode[errorResponse](t, resp)
			if body.Error != tt.expectedError {
				t.Errorf("Expected error %q, got %q", tt.expectedError, body.Error)
			}
			assertUploadDirEmpty(t, ts.UploadDir)
		})
	}
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	ts := setupTestServer(t)

	body, contentType, err := createMultipartUpload("file", "clip.mp4", bytes.Repeat([]byte("x"), 2<<20))
	if err != nil {
		t.Fatalf("Failed to create multipart upload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	NewRouter(ts.App).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "File too large") {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
	assertUploadDirEmpty(t, ts.UploadDir)
}

func TestAnalyzeURL(t *testing.T) {
	ts := setupTestServer(t)

	videoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/clip":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("remote mp4 bytes"))
		case "/empty.mp4":
		default:
			http.NotFound(w, r)
		}
	}))
	defer videoServer.Close()

	post := func(t *testing.T, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.Server.URL+"/api/analyze_url", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("Failed to post: %v", err)
		}
		return resp
	}

	t.Run("Downloads and analyzes", func(t *testing.T) {
		resp := post(t, fmt.Sprintf(`{"url": %q}`, videoServer.URL+"/videos/clip?token=abc"))
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, body)
		}
		report := decode[ensemble.EnsembleReport](t, resp)

		seen := ts.Frames.paths()
		last := seen[len(seen)-1]
		if filepath.Base(last) != report.JobID+"_clip.mp4" {
			t.Errorf("Expected .mp4 appended to the url name, got %s", filepath.Base(last))
		}
		assertUploadDirEmpty(t, ts.UploadDir)
	})

	failures := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"Not found upstream", fmt.Sprintf(`{"url": %q}`, videoServer.URL+"/missing.mp4"), http.StatusBadRequest, "Failed to download video from URL"},
		{"Empty body upstream", fmt.Sprintf(`{"url": %q}`, videoServer.URL+"/empty.mp4"), http.StatusBadRequest, "Failed to download video from URL"},
		{"Unsupported scheme", `{"url": "ftp://example.com/clip.mp4"}`, http.StatusBadRequest, "Failed to download video from URL"},
		{"Missing url", `{}`, http.StatusBadRequest, "A valid url is required"},
		{"Not a url", `{"url": "clip.mp4"}`, http.StatusBadRequest, "A valid url is required"},
		{"Malformed body", `{"url":`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, resp.StatusCode)
			}
			if body := decode[errorResponse](t, resp); body.Error != tt.error {
				t.Errorf("Expected error %q, got %q", tt.error, body.Error)
			}
			assertUploadDirEmpty(t, ts.UploadDir)
		})
	}
}

func seedRecord(jobID, class string, at time.Time) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		JobID:          jobID,
		Filename:       jobID + ".mp4",
		Classification: class,
		Confidence:     0.825,
		SpatialScore:   0.9,
		TemporalScore:  0.4,
		ForensicScore:  0.8,
		MetadataScore:  0.15,
		Timestamp:      at,
	}
}

func TestResults(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	for i, class := range []string{"Real", "AI-Generated", "AI-Generated"} {
		rec := seedRecord(fmt.Sprintf("job-%d", i), class, time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC))
		if err := ts.Repo.Save(ctx, rec); err != nil {
			t.Fatalf("Failed to seed result: %v", err)
		}
	}

	t.Run("List", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/results?limit=2")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		list := decode[ResultsResponse](t, resp)
		if len(list.Results) != 2 || list.Results[0].JobID != "job-2" {
			t.Errorf("Expected the two newest results, got %d", len(list.Results))
		}
		if list.Counts["AI-Generated"] != 2 || list.Counts["Real"] != 1 {
			t.Errorf("Unexpected counts %v", list.Counts)
		}
	})

	t.Run("Bad limit", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/results?limit=zero")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("Get", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/results/job-1")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		rec := decode[map[string]any](t, resp)
		if rec["job_id"] != "job-1" || rec["classification"] != "AI-Generated" {
			t.Errorf("Unexpected record %v", rec)
		}
	})

	t.Run("Report", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/results/job-1/report")
		if err != nil {
			t.Fatalf("Failed to get report: %v", err)
		}
		report := decode[ReportResponse](t, resp)
		// .9*.3 + .4*.35 + .8*.25 + .15*.1 = .625, plus the .2 red-flag boost.
		if report.Classification != ensemble.AIGenerated || report.Report.ConfidenceLevel != "Very High" {
			t.Errorf("Unexpected report %+v", report)
		}
		if diff := report.FinalConfidence - 0.825; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Expected final 0.825, got %v", report.FinalConfidence)
		}
		if len(report.Report.EngineBreakdown) != 4 {
			t.Errorf("Expected four engine rows, got %v", report.Report.EngineBreakdown)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		del := func() *http.Response {
			req, err := http.NewRequest(http.MethodDelete, ts.Server.URL+"/api/results/job-0", nil)
			if err != nil {
				t.Fatalf("Failed to build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Failed to delete: %v", err)
			}
			return resp
		}

		resp := del()
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", resp.StatusCode)
		}
		if _, err := ts.Repo.GetByJobID(ctx, "job-0"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("Expected the result to be gone, got %v", err)
		}

		resp = del()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404 on second delete, got %d", resp.StatusCode)
		}
		if body := decode[errorResponse](t, resp); body.Error != "result not found" {
			t.Errorf("Unexpected error %q", body.Error)
		}
	})

	t.Run("Not found", func(t *testing.T) {
		for _, path := range []string{"/api/results/nope", "/api/results/nope/report"} {
			resp, err := http.Get(ts.Server.URL + path)
			if err != nil {
				t.Fatalf("Failed to get: %v", err)
			}
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
			}
			if body := decode[errorResponse](t, resp); body.Error != "result not found" {
				t.Errorf("%s: unexpected error %q", path, body.Error)
			}
		}
	})
}

func TestFilenameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/a/b/clip.mp4":          "clip.mp4",
		"https://cdn.example.com/a/b/clip.mov?sig=123":  "clip.mov",
		"https://cdn.example.com/watch?v=abc":           "watch.mp4",
		"https://cdn.example.com/":                      "video.mp4",
		"https://cdn.example.com":                       "video.mp4",
		"https://cdn.example.com/movie.avi#t=10":        "movie.avi",
		"https://cdn.example.com/stream.webm":           "stream.webm.mp4",
		"https://cdn.example.com/CLIP.MP4":              "CLIP.MP4.mp4",
		"https://cdn.example.com/path/with%20space.mp4": "with space.mp4",
	}
	for in, want := range tests {
		if got := FilenameFromURL(in); got != want {
			t.Errorf("FilenameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
