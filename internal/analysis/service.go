// Package analysis runs one uploaded video through every detection engine
// and turns the scores into a report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/verifai/internal/ai"
	"github.com/kdimtricp/verifai/internal/cache"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/forensic"
	"github.com/kdimtricp/verifai/internal/frame"
	"github.com/kdimtricp/verifai/internal/logging"
	"github.com/kdimtricp/verifai/internal/metrics"
	"github.com/kdimtricp/verifai/internal/models"
	"github.com/kdimtricp/verifai/internal/temporal"
)

// ErrNoFrames rejects a video from which not a single frame decoded.
var ErrNoFrames = errors.New("no frames could be decoded")

// ScoreCache remembers frame-derived engine scores by content hash.
type ScoreCache interface {
	Get(ctx context.Context, key string) (*cache.Entry, bool, error)
	Put(ctx context.Context, key string, e cache.Entry) error
	Delete(ctx context.Context, key string) error
}

// Store persists finished analyses.
type Store interface {
	Save(ctx context.Context, rec *models.AnalysisRecord) error
}

// Request names one file to analyze. An empty JobID gets a fresh one.
type Request struct {
	JobID    string
	Path     string
	Filename string
}

// Result carries the report together with every intermediate score.
type Result struct {
	Report    ensemble.EnsembleReport `json:"report"`
	Verdict   ensemble.Verdict        `json:"verdict"`
	Breakdown ensemble.Breakdown      `json:"breakdown"`
	Spatial   ai.SpatialScore         `json:"spatial"`
	Forensic  []forensic.Result       `json:"forensic"`
	Temporal  temporal.Result         `json:"temporal"`
	Metadata  ai.MetadataResult       `json:"metadata"`
	Detailed  ensemble.DetailedReport `json:"detailed"`
	Frames    int                     `json:"frames"`
	Cached    bool                    `json:"cached"`
}

type Config struct {
	Extract ai.ExtractOptions
}

type Service struct {
	frames     ai.FrameSource
	classifier ai.SpatialClassifier
	forensic   *forensic.Engine
	temporal   *temporal.Engine
	metadata   *ai.MetadataInspector
	aggregator *ensemble.Aggregator
	cache      ScoreCache
	store      Store
	extract    ai.ExtractOptions
	settings   string
}

func NewService(
	frames ai.FrameSource,
	classifier ai.SpatialClassifier,
	forensicEngine *forensic.Engine,
	temporalEngine *temporal.Engine,
	metadata *ai.MetadataInspector,
	aggregator *ensemble.Aggregator,
	config Config,
) *Service {
	if config.Extract.FPS == 0 {
		config.Extract = ai.DefaultExtractOptions()
	}
	if classifier == nil {
		classifier = ai.NeutralClassifier{}
	}
	if metadata == nil {
		metadata = ai.NewMetadataInspector(ai.DefaultMetadataConfig(), nil)
	}

	return &Service{
		frames:     frames,
		classifier: classifier,
		forensic:   forensicEngine,
		temporal:   temporalEngine,
		metadata:   metadata,
		aggregator: aggregator,
		extract:    config.Extract,
		settings:   scoreSettings(config.Extract, classifier),
	}
}

// scoreSettings names everything besides the file itself that the cached
// scores depend on.
func scoreSettings(opts ai.ExtractOptions, classifier ai.SpatialClassifier) string {
	return fmt.Sprintf("fps=%g max_frames=%d max_dimension=%d classifier=%s",
		opts.FPS, opts.MaxFrames, opts.MaxDimension, ai.ClassifierName(classifier))
}

// WithCache enables the score cache.
func (s *Service) WithCache(c ScoreCache) *Service {
	s.cache = c
	return s
}

// WithStore saves every finished analysis.
func (s *Service) WithStore(st Store) *Service {
	s.store = st
	return s
}

func (s *Service) Aggregator() *ensemble.Aggregator {
	return s.aggregator
}

func NewJobID() string {
	return uuid.New().String()
}

// Analyze scores the file at req.Path. It returns ErrNoFrames when the
// video yields no decodable frame.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.JobID == "" {
		req.JobID = NewJobID()
	}
	ctx = logging.WithJobID(ctx, req.JobID)
	log := logging.Ctx(ctx)

	key := s.cacheKey(ctx, req.Path)
	if key != "" {
		entry, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Msg("score cache lookup failed")
		} else if ok && entry.Settings != s.settings {
			log.Debug().Str("hash", key).Str("stored", entry.Settings).Msg("dropping score cache entry from other settings")
			if err := s.cache.Delete(ctx, key); err != nil {
				log.Warn().Err(err).Msg("score cache delete failed")
			}
		} else if ok {
			log.Debug().Str("hash", key).Msg("score cache hit")
			res := &Result{Breakdown: entry.Breakdown, Frames: entry.Frames, Cached: true}
			res.Metadata = s.inspect(ctx, req.Path)
			res.Breakdown.Metadata = res.Metadata.Confidence
			return s.finish(ctx, req, res, start), nil
		}
	}

	stage := time.Now()
	seq, err := s.frames.ExtractSequence(ctx, req.Path, s.extract)
	metrics.RecordStage("extract", time.Since(stage))
	if err != nil {
		if errors.Is(err, ai.ErrUnreadableVideo) {
			metrics.RecordRejection("unreadable")
			return nil, fmt.Errorf("%w: %w", ErrNoFrames, err)
		}
		return nil, fmt.Errorf("extract frames: %w", err)
	}
	defer seq.Release()

	if seq.Len() == 0 {
		metrics.RecordRejection("no_frames")
		return nil, ErrNoFrames
	}
	log.Debug().Int("frames", seq.Len()).Dur("took", time.Since(stage)).Msg("frames extracted")

	res, err := s.score(ctx, req.Path, seq)
	if err != nil {
		return nil, err
	}

	// Scores with failed spatial frames are never cached.
	if key != "" && res.Spatial.Failed == 0 {
		frameScores := res.Breakdown
		frameScores.Metadata = 0
		entry := cache.Entry{Breakdown: frameScores, Frames: res.Frames, Settings: s.settings}
		if err := s.cache.Put(ctx, key, entry); err != nil {
			log.Warn().Err(err).Msg("score cache store failed")
		}
	}

	return s.finish(ctx, req, res, start), nil
}

// score runs the four engines over an already decoded sequence. Only the
// spatial stage, which may call a remote model, observes cancellation; the
// local engines always run to completion.
func (s *Service) score(ctx context.Context, path string, seq *frame.Sequence) (*Result, error) {
	log := logging.Ctx(ctx)
	cfg := s.aggregator.Config()
	res := &Result{Frames: seq.Len()}

	stage := time.Now()
	res.Spatial = ai.ScoreFrames(ctx, s.classifier, seq.Head(cfg.SpatialFrames), cfg.SpatialFrames)
	metrics.RecordStage("spatial", time.Since(stage))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug().
		Float64("confidence", res.Spatial.Confidence).
		Int("scored", res.Spatial.Frames).
		Int("failed", res.Spatial.Failed).
		Msg("spatial stage done")

	stage = time.Now()
	res.Temporal = s.temporal.Analyze(seq)
	metrics.RecordStage("temporal", time.Since(stage))
	log.Debug().
		Float64("confidence", res.Temporal.Confidence).
		Str("status", string(res.Temporal.Status)).
		Msg("temporal stage done")

	stage = time.Now()
	var forensicScore float64
	res.Forensic, forensicScore = s.forensic.EvaluateFrames(seq.Head(cfg.ForensicFrames))
	metrics.RecordStage("forensic", time.Since(stage))
	log.Debug().Float64("confidence", forensicScore).Int("frames", len(res.Forensic)).Msg("forensic stage done")

	res.Metadata = s.inspect(ctx, path)

	res.Breakdown = ensemble.Breakdown{
		Spatial:  res.Spatial.Confidence,
		Temporal: res.Temporal.Confidence,
		Forensic: forensicScore,
		Metadata: res.Metadata.Confidence,
	}
	return res, nil
}

func (s *Service) inspect(ctx context.Context, path string) ai.MetadataResult {
	stage := time.Now()
	md := s.metadata.Inspect(ctx, path)
	metrics.RecordStage("metadata", time.Since(stage))
	logging.Ctx(ctx).Debug().Float64("confidence", md.Confidence).Str("details", md.Details).Msg("metadata stage done")
	return md
}

// finish aggregates, builds both reports and records the outcome.
func (s *Service) finish(ctx context.Context, req Request, res *Result, start time.Time) *Result {
	log := logging.Ctx(ctx)

	res.Verdict = s.aggregator.Aggregate(res.Breakdown)
	res.Breakdown = res.Verdict.Breakdown
	res.Detailed = s.aggregator.BuildDetailedReport(res.Verdict)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	res.Report = s.aggregator.Report(req.JobID, res.Verdict, elapsed)

	metrics.RecordAnalysis(string(res.Verdict.Classification), res.Frames, map[string]float64{
		"spatial":  res.Breakdown.Spatial,
		"temporal": res.Breakdown.Temporal,
		"forensic": res.Breakdown.Forensic,
		"metadata": res.Breakdown.Metadata,
	})

	if s.store != nil {
		rec := models.NewAnalysisRecord(req.Filename, res.Report, res.Breakdown)
		if err := s.store.Save(ctx, rec); err != nil {
			log.Error().Err(err).Msg("failed to save analysis result")
		}
	}

	log.Info().
		Str("filename", req.Filename).
		Str("classification", string(res.Verdict.Classification)).
		Float64("final", res.Report.FinalConfidence).
		Float64("boost", res.Verdict.Boost).
		Int("frames", res.Frames).
		Bool("cached", res.Cached).
		Float64("processing_time_ms", res.Report.ProcessingTimeMs).
		Msg("analysis complete")
	return res
}

func (s *Service) cacheKey(ctx context.Context, path string) string {
	if s.cache == nil {
		return ""
	}
	key, err := cache.HashFile(path)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("could not hash file for score cache")
		return ""
	}
	return key
}
