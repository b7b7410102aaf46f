package ai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kdimtricp/verifai/internal/frame"
)

// MetadataResult is the outcome of the file-level heuristic.
type MetadataResult struct {
	Confidence float64 `json:"confidence"`
	HasAnomaly bool    `json:"has_anomaly"`
	Details    string  `json:"details"`
	FileSize   int64   `json:"file_size"`
}

// MetadataConfig holds the heuristic's weights.
type MetadataConfig struct {
	SameTimeWindow   time.Duration
	SameTimeScore    float64
	NoCameraTags     float64
	PartialTags      float64
	TagReadError     float64
	ExifMention      float64
	GeneratorScore   float64
	ProbeErrorScore  float64
	CodecMention     float64
	SmallFileBytes   int64
	SmallFileScore   float64
	AnomalyAbove     float64
	ScanBytes        int64
	GeneratorMarkers []string
}

func DefaultMetadataConfig() MetadataConfig {
	return MetadataConfig{
		SameTimeWindow:   time.Second,
		SameTimeScore:    0.05,
		NoCameraTags:     0.05,
		PartialTags:      0.02,
		TagReadError:     0.1,
		ExifMention:      0.1,
		GeneratorScore:   0.4,
		ProbeErrorScore:  0.05,
		CodecMention:     0.1,
		SmallFileBytes:   50000,
		SmallFileScore:   0.05,
		AnomalyAbove:     0.5,
		ScanBytes:        1 << 20,
		GeneratorMarkers: []string{"sora", "runway", "pika"},
	}
}

// Camera tag signatures as they appear in QuickTime/MP4 metadata atoms and
// embedded EXIF blocks.
var cameraTags = [][][]byte{
	{[]byte("com.apple.quicktime.make"), []byte("\xa9mak"), []byte("Make")},
	{[]byte("com.apple.quicktime.model"), []byte("\xa9mod"), []byte("Model")},
	{[]byte("com.apple.quicktime.creationdate"), []byte("DateTimeOriginal")},
}

// MetadataInspector scores file timestamps, embedded camera tags, encoder
// signatures and size.
type MetadataInspector struct {
	cfg    MetadataConfig
	prober Prober
}

// NewMetadataInspector builds an inspector. prober may be nil, in which case
// the encoder check is skipped.
func NewMetadataInspector(cfg MetadataConfig, prober Prober) *MetadataInspector {
	return &MetadataInspector{cfg: cfg, prober: prober}
}

func (m *MetadataInspector) Inspect(ctx context.Context, path string) MetadataResult {
	info, err := os.Stat(path)
	if err != nil {
		return MetadataResult{Details: "File not found"}
	}

	var score float64
	var details []string

	created, modified := changeTime(info), info.ModTime()
	if diff := modified.Sub(created); diff < m.cfg.SameTimeWindow && diff > -m.cfg.SameTimeWindow {
		score += m.cfg.SameTimeScore
		details = append(details, "File created and modified within 1 second (common in downloads)")
	}

	exifScore := m.tagScore(path)
	score += exifScore
	if exifScore > m.cfg.ExifMention {
		details = append(details, "EXIF anomalies detected")
	}

	codecScore := m.codecScore(ctx, path)
	score += codecScore
	if codecScore > m.cfg.CodecMention {
		details = append(details, "Codec patterns unusual")
	}

	if info.Size() < m.cfg.SmallFileBytes {
		score += m.cfg.SmallFileScore
		details = append(details, "Unusually small file size")
	}

	conf := frame.Clamp01(score)
	res := MetadataResult{
		Confidence: conf,
		HasAnomaly: conf > m.cfg.AnomalyAbove,
		Details:    "No significant metadata anomalies",
		FileSize:   info.Size(),
	}
	if len(details) > 0 {
		res.Details = strings.Join(details, " | ")
	}
	return res
}

// tagScore counts camera tags in the head of the file: none found is mildly
// suspicious, a partial set less so.
func (m *MetadataInspector) tagScore(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return m.cfg.TagReadError
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, m.cfg.ScanBytes))
	if err != nil {
		return m.cfg.TagReadError
	}

	found := 0
	for _, sigs := range cameraTags {
		for _, sig := range sigs {
			if bytes.Contains(head, sig) {
				found++
				break
			}
		}
	}
	switch {
	case found == 0:
		return m.cfg.NoCameraTags
	case found < len(cameraTags):
		return m.cfg.PartialTags
	default:
		return 0
	}
}

// codecScore flags encoder tags written by known generators.
func (m *MetadataInspector) codecScore(ctx context.Context, path string) float64 {
	if m.prober == nil {
		return 0
	}
	info, err := m.prober.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0
		}
		return m.cfg.ProbeErrorScore
	}
	enc := strings.ToLower(info.Encoder)
	for _, marker := range m.cfg.GeneratorMarkers {
		if strings.Contains(enc, marker) {
			return m.cfg.GeneratorScore
		}
	}
	return 0
}
