package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/kdimtricp/verifai/internal/ai"
	"github.com/kdimtricp/verifai/internal/analysis"
	"github.com/kdimtricp/verifai/internal/config"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/forensic"
	"github.com/kdimtricp/verifai/internal/logging"
	"github.com/kdimtricp/verifai/internal/temporal"
)

type output struct {
	Report   ensemble.EnsembleReport `json:"report"`
	Detailed ensemble.DetailedReport `json:"detailed"`
	Spatial  *ai.SpatialScore        `json:"spatial,omitempty"`
	Temporal *temporal.Result        `json:"temporal,omitempty"`
	Forensic []forensic.Result       `json:"forensic,omitempty"`
	Metadata *ai.MetadataResult      `json:"metadata,omitempty"`
	Frames   int                     `json:"frames,omitempty"`
}

func main() {
	var (
		videoPath = flag.String("file", "", "Path to the video to analyze")
		weightSet = flag.String("weights", "", "Weight set: temporal-first or spatial-first (default from config)")
		save      = flag.Bool("save", false, "Store the verdict in the configured database")
		full      = flag.Bool("full", false, "Print per-engine details, not just the reports")
	)
	flag.Parse()

	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze-video -file video.mp4 [-weights spatial-first] [-save] [-full]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logCfg := cfg.LogConfig()
	logCfg.Format = "console"
	logging.Init(logCfg)

	if *weightSet != "" {
		cfg.Ensemble.WeightSet = *weightSet
	}
	aggCfg, err := cfg.AggregatorConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid weight set")
	}

	extractor, err := ai.NewFrameExtractor()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize frame extractor")
	}

	aiConfig := cfg.AIConfig()
	service := analysis.NewService(
		extractor,
		ai.NewSpatialClassifier(aiConfig),
		forensic.NewEngine(forensic.DefaultConfig()),
		temporal.NewDefaultEngine(temporal.DefaultConfig()),
		ai.NewMetadataInspector(ai.DefaultMetadataConfig(), extractor),
		ensemble.NewAggregator(aggCfg),
		analysis.Config{Extract: aiConfig.Extract},
	)

	if *save {
		db, err := database.NewDB(cfg.Database)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		service.WithStore(database.NewAnalysisRepo(db))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := service.Analyze(ctx, analysis.Request{
		Path:     *videoPath,
		Filename: filepath.Base(*videoPath),
	})
	if err != nil {
		logging.Fatal().Err(err).Str("file", *videoPath).Msg("Analysis failed")
	}

	out := output{Report: res.Report, Detailed: res.Detailed}
	if *full {
		out.Spatial = &res.Spatial
		out.Temporal = &res.Temporal
		out.Forensic = res.Forensic
		out.Metadata = &res.Metadata
		out.Frames = res.Frames
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logging.Fatal().Err(err).Msg("Failed to write report")
	}
}
