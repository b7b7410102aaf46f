package ai

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/logging"
)

var (
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrUnreadableVideo means the container could not be probed or
	// decoded at all.
	ErrUnreadableVideo = errors.New("unreadable video")
)

// ExtractOptions controls frame sampling. MaxDimension caps the longer
// side; 0 keeps the source resolution, which the forensic thresholds are
// tuned for.
type ExtractOptions struct {
	FPS          float64
	MaxFrames    int
	MaxDimension int
}

func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{FPS: 5, MaxFrames: 150}
}

// VideoInfo is what Probe learns about a file.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	FPS      float64 `json:"fps"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	Encoder  string  `json:"encoder"`
}

// FrameSource decodes a video into an ordered frame sequence. An empty
// sequence with a nil error means the file held no decodable frames.
type FrameSource interface {
	ExtractSequence(ctx context.Context, path string, opts ExtractOptions) (*frame.Sequence, error)
}

// Prober reads container and stream metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
}

type FrameExtractor struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFrameExtractor() (*FrameExtractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	logging.Info().Str("path", ffmpegPath).Msg("found ffmpeg")

	fe := &FrameExtractor{ffmpegPath: ffmpegPath}
	if p, err := exec.LookPath("ffprobe"); err == nil {
		fe.ffprobePath = p
	} else {
		logging.Warn().Msg("ffprobe not found, falling back to ffmpeg banner parsing")
	}
	return fe, nil
}

type probeOutput struct {
	Streams []struct {
		CodecName  string            `json:"codec_name"`
		Width      int               `json:"width"`
		Height     int               `json:"height"`
		RFrameRate string            `json:"r_frame_rate"`
		Tags       map[string]string `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// Probe returns duration, frame rate, size and encoder tags of the first
// video stream.
func (fe *FrameExtractor) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file not accessible: %w", err)
	}

	if fe.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, fe.ffprobePath,
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream=codec_name,width,height,r_frame_rate:stream_tags:format=duration:format_tags",
			"-of", "json",
			path)
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err == nil {
			if info, err := parseProbeJSON(stdout.Bytes()); err == nil {
				return info, nil
			}
		}
	}

	// Fallback to parsing the ffmpeg banner.
	cmd := exec.CommandContext(ctx, fe.ffmpegPath, "-hide_banner", "-i", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()
	info, err := parseBanner(stderr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableVideo, err)
	}
	return info, nil
}

func parseProbeJSON(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, errors.New("no video stream")
	}
	s := out.Streams[0]
	info := &VideoInfo{
		Width:   s.Width,
		Height:  s.Height,
		Codec:   s.CodecName,
		FPS:     parseFrameRate(s.RFrameRate),
		Encoder: s.Tags["encoder"],
	}
	if info.Encoder == "" {
		info.Encoder = out.Format.Tags["encoder"]
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid stream size %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// parseFrameRate parses "30000/1001" or "25".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

var (
	streamRe  = regexp.MustCompile(`Stream #\d+:\d+.*?: Video: (\w+).*?, (\d{2,5})x(\d{2,5})`)
	fpsRe     = regexp.MustCompile(`([\d.]+) fps`)
	encoderRe = regexp.MustCompile(`(?m)^\s+encoder\s*:\s*(.+)$`)
)

func parseBanner(output string) (*VideoInfo, error) {
	m := streamRe.FindStringSubmatch(output)
	if m == nil {
		return nil, errors.New("no video stream in ffmpeg output")
	}
	info := &VideoInfo{Codec: m[1]}
	info.Width, _ = strconv.Atoi(m[2])
	info.Height, _ = strconv.Atoi(m[3])
	if f := fpsRe.FindStringSubmatch(output); f != nil {
		info.FPS, _ = strconv.ParseFloat(f[1], 64)
	}
	if e := encoderRe.FindStringSubmatch(output); e != nil {
		info.Encoder = strings.TrimSpace(e[1])
	}
	if d, err := parseDuration(output); err == nil {
		info.Duration = d
	}
	return info, nil
}

// parseDuration reads "Duration: HH:MM:SS.ss," from ffmpeg output.
func parseDuration(output string) (float64, error) {
	const prefix = "Duration: "
	start := strings.Index(output, prefix)
	if start == -1 {
		return 0, errors.New("duration not found in ffmpeg output")
	}
	start += len(prefix)
	end := strings.Index(output[start:], ",")
	if end == -1 {
		return 0, errors.New("invalid duration format")
	}

	parts := strings.Split(output[start:start+end], ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", output[start:start+end])
	}
	var total float64
	for i, unit := range []float64{3600, 60, 1} {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0, err
		}
		total += v * unit
	}
	return total, nil
}

// scaledSize fits w x h inside a maxDim square, keeping the aspect ratio and
// rounding both sides down to even numbers.
func scaledSize(w, h, maxDim int) (int, int) {
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
	}
	w, h = w&^1, h&^1
	return max(w, 2), max(h, 2)
}

// ExtractSequence samples the video at opts.FPS into RGB frames.
func (fe *FrameExtractor) ExtractSequence(ctx context.Context, path string, opts ExtractOptions) (*frame.Sequence, error) {
	if opts.FPS <= 0 {
		opts.FPS = DefaultExtractOptions().FPS
	}
	info, err := fe.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	w, h := scaledSize(info.Width, info.Height, opts.MaxDimension)

	args := []string{
		"-v", "error",
		"-i", path,
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d", strconv.FormatFloat(opts.FPS, 'f', -1, 64), w, h),
	}
	if opts.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(opts.MaxFrames))
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "pipe:1")

	cmd := exec.CommandContext(ctx, fe.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}

	logging.Debug().Str("path", path).Int("width", w).Int("height", h).Float64("fps", opts.FPS).Msg("extracting frames")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	seq, readErr := readFrames(bufio.NewReaderSize(stdout, w*h*3), w, h, opts)
	// Drain so ffmpeg is never blocked on a full pipe after an early stop.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if readErr != nil {
		seq.Release()
		return nil, readErr
	}
	if waitErr != nil {
		if seq.Len() == 0 {
			return nil, fmt.Errorf("%w: ffmpeg: %v: %s", ErrUnreadableVideo, waitErr, strings.TrimSpace(stderr.String()))
		}
		logging.Warn().Err(waitErr).Int("frames", seq.Len()).Msg("ffmpeg exited with error after partial decode")
	}

	logging.Debug().Int("frames", seq.Len()).Msg("frames extracted")
	return seq, nil
}

// readFrames decodes packed rgb24 frames of w x h until EOF or MaxFrames.
// A trailing partial frame is dropped.
func readFrames(r io.Reader, w, h int, opts ExtractOptions) (*frame.Sequence, error) {
	seq := frame.NewSequence(opts.FPS)
	size := w * h * 3
	for opts.MaxFrames <= 0 || seq.Len() < opts.MaxFrames {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return seq, fmt.Errorf("failed to read frame: %w", err)
		}
		f, err := frame.FromRGB(w, h, buf)
		if err != nil {
			return seq, err
		}
		seq.Append(f)
	}
	return seq, nil
}
