package ai

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := map[string]float64{
		"30000/1001": 30000.0 / 1001,
		"25/1":       25,
		"24":         24,
		"0/0":        0,
		"":           0,
		"abc":        0,
	}
	for in, want := range tests {
		if got := parseFrameRate(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("parseFrameRate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("  Duration: 00:01:02.50, start: 0.000000, bitrate: 1205 kb/s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 62.5 {
		t.Errorf("expected 62.5, got %v", d)
	}

	if _, err := parseDuration("no duration here"); err == nil {
		t.Error("expected error for missing duration")
	}
	if _, err := parseDuration("Duration: 1:2, x"); err == nil {
		t.Error("expected error for malformed duration")
	}
}

func TestParseBanner(t *testing.T) {
	out := `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
  Metadata:
    major_brand     : isom
    encoder         : Lavf60.3.100
  Duration: 00:00:04.00, start: 0.000000, bitrate: 900 kb/s
  Stream #0:0[0x1](und): Video: h264 (High) (avc1 / 0x31637661), yuv420p(progressive), 1280x720 [SAR 1:1 DAR 16:9], 800 kb/s, 29.97 fps, 29.97 tbr, 30k tbn (default)`

	info, err := parseBanner(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Codec != "h264" || info.Width != 1280 || info.Height != 720 {
		t.Errorf("unexpected stream info: %+v", info)
	}
	if info.FPS != 29.97 || info.Duration != 4 {
		t.Errorf("unexpected timing: %+v", info)
	}
	if info.Encoder != "Lavf60.3.100" {
		t.Errorf("unexpected encoder %q", info.Encoder)
	}

	if _, err := parseBanner("clip.mp4: Invalid data found when processing input"); err == nil {
		t.Error("expected error without a video stream")
	}
}

func TestParseProbeJSON(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30/1", "tags": {"encoder": "Sora"}}],
		"format": {"duration": "5.005", "tags": {"encoder": "Lavf"}}
	}`)
	info, err := parseProbeJSON(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 || info.FPS != 30 || info.Duration != 5.005 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.Encoder != "Sora" {
		t.Errorf("stream encoder tag should win, got %q", info.Encoder)
	}

	info, err = parseProbeJSON([]byte(`{"streams": [{"width": 2, "height": 2}], "format": {"tags": {"encoder": "pika"}}}`))
	if err != nil || info.Encoder != "pika" {
		t.Errorf("expected format encoder fallback, got %+v, %v", info, err)
	}

	if _, err := parseProbeJSON([]byte(`{"streams": []}`)); err == nil {
		t.Error("expected error without streams")
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{1920, 1080, 512, 512, 288},
		{1080, 1920, 512, 288, 512},
		{320, 240, 512, 320, 240},
		{321, 241, 512, 320, 240},
		{1000, 3, 512, 512, 2},
		{1920, 1080, 0, 1920, 1080},
		{640, 480, 0, 640, 480},
	}
	for _, tt := range tests {
		w, h := scaledSize(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("scaledSize(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestReadFrames(t *testing.T) {
	const w, h = 4, 2
	size := w * h * 3
	raw := make([]byte, 0, size*3+5)
	for i := 0; i < 3; i++ {
		raw = append(raw, bytes.Repeat([]byte{byte(i * 50)}, size)...)
	}
	raw = append(raw, 1, 2, 3, 4, 5)

	seq, err := readFrames(bytes.NewReader(raw), w, h, ExtractOptions{FPS: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seq.Len() != 3 {
		t.Fatalf("expected 3 frames, trailing partial frame dropped, got %d", seq.Len())
	}
	if r, _, _ := seq.Frames()[2].RGB(0, 0); r != 100 {
		t.Errorf("expected third frame level 100, got %d", r)
	}

	seq, err = readFrames(bytes.NewReader(raw), w, h, ExtractOptions{FPS: 5, MaxFrames: 2})
	if err != nil || seq.Len() != 2 {
		t.Errorf("expected MaxFrames to cap at 2, got %d, %v", seq.Len(), err)
	}

	seq, err = readFrames(bytes.NewReader(nil), w, h, ExtractOptions{FPS: 5})
	if err != nil || seq.Len() != 0 {
		t.Errorf("expected empty sequence, got %d, %v", seq.Len(), err)
	}
}

func TestFrameExtractorWithFFmpeg(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	path := filepath.Join(t.TempDir(), "testsrc.mp4")
	gen := exec.Command(ffmpeg, "-v", "error", "-f", "lavfi", "-i", "testsrc=size=320x240:rate=25",
		"-t", "2", "-pix_fmt", "yuv420p", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("could not generate test video: %v: %s", err, out)
	}

	fe, err := NewFrameExtractor()
	if err != nil {
		t.Fatalf("NewFrameExtractor: %v", err)
	}

	info, err := fe.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("unexpected size %dx%d", info.Width, info.Height)
	}

	seq, err := fe.ExtractSequence(context.Background(), path, DefaultExtractOptions())
	if err != nil {
		t.Fatalf("ExtractSequence: %v", err)
	}
	if seq.Len() < 9 || seq.Len() > 11 {
		t.Errorf("expected about 10 frames at 5 fps, got %d", seq.Len())
	}
	if f := seq.Frames()[0]; f.Width != 320 || f.Height != 240 {
		t.Errorf("unexpected frame size %dx%d", f.Width, f.Height)
	}

	bogus := filepath.Join(t.TempDir(), "bogus.mp4")
	if err := os.WriteFile(bogus, []byte("not a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fe.ExtractSequence(context.Background(), bogus, DefaultExtractOptions()); !errors.Is(err, ErrUnreadableVideo) {
		t.Errorf("expected ErrUnreadableVideo, got %v", err)
	}
}
