package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/resilience"
)

const classifierBreaker = "spatial-classifier"

// RemoteClassifier posts JPEG frames to an HTTP model server.
type RemoteClassifier struct {
	endpoint   string
	apiKey     string
	quality    int
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[float64]
}

func NewRemoteClassifier(config *Config) *RemoteClassifier {
	timeout := config.ClassifierTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	quality := config.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = 90
	}

	return &RemoteClassifier{
		endpoint:   config.ClassifierURL,
		apiKey:     config.ClassifierAPIKey,
		quality:    quality,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, max(config.Burst, 1)),
		cb:         resilience.NewBreaker[float64](classifierBreaker, resilience.DefaultBreakerConfig()),
	}
}

// Name identifies the model by its endpoint.
func (c *RemoteClassifier) Name() string {
	return "remote " + c.endpoint
}

type classifyRequest struct {
	Image string `json:"image"`
}

type classifyResponse struct {
	FakeProbability *float64 `json:"fake_probability"`
	Error           string   `json:"error,omitempty"`
}

// Classify returns the model's fake probability for f, clamped to [0, 1].
func (c *RemoteClassifier) Classify(ctx context.Context, f *frame.Frame) (float64, error) {
	if !f.Valid() {
		return 0, frame.ErrEmptyFrame
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	p, err := c.cb.Execute(func() (float64, error) {
		return c.request(ctx, f)
	})
	resilience.Record(classifierBreaker, err)
	if err != nil {
		return 0, err
	}
	return frame.Clamp01(p), nil
}

func (c *RemoteClassifier) request(ctx context.Context, f *frame.Frame) (float64, error) {
	var img bytes.Buffer
	if err := jpeg.Encode(&img, f.Image(), &jpeg.Options{Quality: c.quality}); err != nil {
		return 0, fmt.Errorf("failed to encode frame: %w", err)
	}

	jsonData, err := json.Marshal(classifyRequest{Image: base64.StdEncoding.EncodeToString(img.Bytes())})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out classifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("classifier error: %s", out.Error)
	}
	if out.FakeProbability == nil {
		return 0, fmt.Errorf("classifier response missing fake_probability")
	}
	return *out.FakeProbability, nil
}
