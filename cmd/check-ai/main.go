package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kdimtricp/verifai/internal/config"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/logging"
)

func main() {
	limit := flag.Int("n", 5, "Number of recent verdicts to show")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logCfg := cfg.LogConfig()
	logCfg.Format = "console"
	logging.Init(logCfg)

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Println("🔍 Checking AI Detection Results")
	fmt.Println("================================")

	if cfg.Classifier.URL == "" {
		fmt.Println("⚠️  WARNING: no spatial classifier configured (CLASSIFIER_URL).")
		fmt.Println("   Spatial scores are 0; verdicts rely on temporal, forensic and metadata engines.")
	} else {
		fmt.Printf("✅ Spatial classifier: %s\n", cfg.Classifier.URL)
	}
	fmt.Printf("⚖️  Weight set: %s, threshold %.2f\n\n", cfg.Ensemble.WeightSet, cfg.Ensemble.Threshold)

	repo := database.NewAnalysisRepo(db)
	counts, err := repo.CountByClassification(ctx)
	if err != nil {
		fmt.Println("❌ No analysis_results table found (nothing analyzed yet)")
		os.Exit(1)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("📹 Total analyses: %d\n", total)
	fmt.Printf("   🤖 %s: %d\n", ensemble.AIGenerated, counts[string(ensemble.AIGenerated)])
	fmt.Printf("   🎥 %s: %d\n\n", ensemble.Real, counts[string(ensemble.Real)])

	records, err := repo.ListRecent(ctx, *limit)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to query analyses")
	}

	fmt.Println("📊 Recent Verdicts:")
	fmt.Println("------------------")
	for _, rec := range records {
		fmt.Printf("\n🎬 %s (%s)\n", rec.Filename, rec.JobID)
		fmt.Printf("   Verdict: %s, confidence %.4f (%s)\n",
			rec.Classification, rec.Confidence, ensemble.ConfidenceLevel(rec.Confidence))
		fmt.Printf("   Scores: spatial %.3f, temporal %.3f, forensic %.3f, metadata %.3f\n",
			rec.SpatialScore, rec.TemporalScore, rec.ForensicScore, rec.MetadataScore)
		for _, ev := range rec.Evidence {
			fmt.Printf("   - [%s] %s\n", ev.Severity, ev.Explanation)
		}
		fmt.Printf("   Analyzed %s in %.0f ms\n", rec.Timestamp.Local().Format(time.RFC822), rec.ProcessingTimeMs)
	}

	if len(records) == 0 {
		fmt.Println("No analyses found yet. Upload a video to test!")
	} else {
		fmt.Printf("\n✅ Found %d recent analyses.\n", len(records))
	}
}
