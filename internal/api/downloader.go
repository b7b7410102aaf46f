package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kdimtricp/verifai/internal/resilience"
	"github.com/kdimtricp/verifai/internal/storage"
)

const (
	downloaderBreaker = "url-downloader"
	// maxHostBreakers bounds the per-host breaker set; past it the set is
	// rebuilt from scratch.
	maxHostBreakers = 512
)

var (
	ErrUnsupportedScheme = errors.New("only http and https urls are supported")
	ErrEmptyDownload     = errors.New("downloaded file is empty")
	ErrDownloadTooLarge  = errors.New("download exceeds size limit")
)

type DownloaderConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:   2 * time.Minute,
		MaxBytes:  100 << 20,
		UserAgent: "verifai/1.0",
	}
}

// StatusError is a non-200 answer from the remote host.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download returned status %d", e.Code)
}

// downloadSucceeded reports errors that are the caller's fault rather than
// the host's.
func downloadSucceeded(err error) bool {
	if resilience.IgnoreCanceled(err) {
		return true
	}
	if errors.Is(err, ErrEmptyDownload) || errors.Is(err, ErrDownloadTooLarge) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// Downloader fetches remote videos into storage. Each host gets its own
// breaker.
type Downloader struct {
	client  *http.Client
	storage storage.Storage
	cfg     DownloaderConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

func NewDownloader(st storage.Storage, cfg DownloaderConfig) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultDownloaderConfig().Timeout
	}
	return &Downloader{
		client:   &http.Client{},
		storage:  st,
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
}

func (d *Downloader) breaker(host string) *gobreaker.CircuitBreaker[string] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[host]; ok {
		return cb
	}
	if len(d.breakers) >= maxHostBreakers {
		d.breakers = make(map[string]*gobreaker.CircuitBreaker[string])
	}
	cfg := resilience.DefaultBreakerConfig()
	cfg.IsSuccessful = downloadSucceeded
	cb := resilience.NewBreaker[string](downloaderBreaker+":"+host, cfg)
	d.breakers[host] = cb
	return cb
}

// Download saves the body at rawURL and returns the stored name.
func (d *Downloader) Download(ctx context.Context, rawURL string, info storage.FileInfo) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedScheme
	}

	name, err := d.breaker(u.Host).Execute(func() (string, error) {
		return d.fetch(ctx, u.String(), info)
	})
	resilience.Record(downloaderBreaker, err)
	return name, err
}

func (d *Downloader) fetch(ctx context.Context, rawURL string, info storage.FileInfo) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode}
	}

	info.ContentType = resp.Header.Get("Content-Type")
	body := io.Reader(resp.Body)
	if d.cfg.MaxBytes > 0 {
		body = &cappedReader{r: resp.Body, remaining: d.cfg.MaxBytes}
	}
	counter := &countingReader{r: body}

	name, err := d.storage.SaveFile(counter, info)
	if err != nil {
		return "", err
	}
	if counter.n == 0 {
		_ = d.storage.DeleteFile(name)
		return "", ErrEmptyDownload
	}
	return name, nil
}

type cappedReader struct {
	r         io.Reader
	remaining int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.remaining <= 0 {
		var probe [1]byte
		if n, _ := c.r.Read(probe[:]); n > 0 {
			return 0, ErrDownloadTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// FilenameFromURL takes the last path segment of rawURL, dropping the query,
// and appends .mp4 unless it already ends in .mp4, .mov or .avi.
func FilenameFromURL(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "video.mp4"
	}
	for _, ext := range []string{".mp4", ".mov", ".avi"} {
		if strings.HasSuffix(name, ext) {
			return name
		}
	}
	return name + ".mp4"
}
