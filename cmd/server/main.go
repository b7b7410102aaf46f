package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kdimtricp/verifai/internal/ai"
	"github.com/kdimtricp/verifai/internal/analysis"
	"github.com/kdimtricp/verifai/internal/api"
	"github.com/kdimtricp/verifai/internal/cache"
	"github.com/kdimtricp/verifai/internal/config"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/forensic"
	"github.com/kdimtricp/verifai/internal/logging"
	"github.com/kdimtricp/verifai/internal/storage"
	"github.com/kdimtricp/verifai/internal/supervisor"
	"github.com/kdimtricp/verifai/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LogConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	localStorage, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	logging.Info().Str("path", cfg.MigrationsPath).Msg("Running database migrations")
	if _, err := database.NewMigrator(db.Conn(), db.Type()).Run(ctx, cfg.MigrationsPath); err != nil {
		logging.Fatal().Err(err).Msg("Failed to run migrations")
	}
	results := database.NewAnalysisRepo(db)

	aggCfg, err := cfg.AggregatorConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid ensemble configuration")
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
	).WithStore(results)

	sup := supervisor.New("verifai", supervisor.Config{ShutdownTimeout: cfg.Server.ShutdownTimeout})

	if cfg.Cache.Enabled {
		scores, err := cache.Open(cfg.ScoreCacheConfig())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open score cache")
		}
		defer scores.Close()
		service.WithCache(scores)
		sup.Add(supervisor.NewGCService("score-cache-gc", scores, 10*time.Minute))
	}

	downloaderCfg := api.DefaultDownloaderConfig()
	downloaderCfg.Timeout = cfg.Server.DownloadTimeout
	downloaderCfg.MaxBytes = cfg.Server.MaxUploadSize

	app := &api.App{
		Storage:         localStorage,
		DB:              db,
		Results:         results,
		Service:         service,
		Downloader:      api.NewDownloader(localStorage, downloaderCfg),
		MaxUploadSize:   cfg.Server.MaxUploadSize,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	sup.Add(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logging.Info().
		Int("port", cfg.Server.Port).
		Str("upload_dir", cfg.Storage.UploadDir).
		Str("db_type", cfg.Database.Type).
		Str("weight_set", aggCfg.WeightSet).
		Bool("cache", cfg.Cache.Enabled).
		Int64("max_upload_size", cfg.Server.MaxUploadSize).
		Msg("Server starting")

	if err := supervisor.Serve(ctx, sup); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor stopped with error")
	}
	logging.Info().Msg("Server stopped")
}
