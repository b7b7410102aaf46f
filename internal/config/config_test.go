package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/verifai/internal/ensemble"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	for key := range envMappings {
		name := strings.ToUpper(key)
		if _, ok := os.LookupEnv(name); ok {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(100<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "./verifai.db", cfg.Database.SQLitePath)
	assert.Equal(t, "./uploads", cfg.Storage.UploadDir)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, ensemble.TemporalFirst, cfg.Ensemble.WeightSet)
	assert.InDelta(t, 0.5, cfg.Ensemble.Threshold, 1e-9)
	assert.Equal(t, 150, cfg.Extract.MaxFrames)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("ENSEMBLE_WEIGHT_SET", "spatial-first")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("CLASSIFIER_URL", "http://model:9000/classify")
	t.Setenv("UNRELATED_SETTING", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, ensemble.SpatialFirst, cfg.Ensemble.WeightSet)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "http://model:9000/classify", cfg.Classifier.URL)
}

func TestLoadFileThenEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 7000
  rate_limit: 5
ensemble:
  weight_set: spatial-first
  threshold: 0.6
logging:
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv(PathEnvVar, path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, 5, cfg.Server.RateLimit)
	assert.Equal(t, ensemble.SpatialFirst, cfg.Ensemble.WeightSet)
	assert.InDelta(t, 0.6, cfg.Ensemble.Threshold, 1e-9)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "sqlite", cfg.Database.Type, "unset keys keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"weight set":  {"ENSEMBLE_WEIGHT_SET": "blended"},
		"db type":     {"DB_TYPE": "mysql"},
		"port":        {"PORT": "0"},
		"log level":   {"LOG_LEVEL": "loud"},
		"classifier":  {"CLASSIFIER_URL": "not a url"},
		"upload size": {"MAX_UPLOAD_SIZE": "-1"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			isolate(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAggregatorConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ensemble.WeightSet = ensemble.SpatialFirst
	cfg.Ensemble.Threshold = 0.55

	agg, err := cfg.AggregatorConfig()
	require.NoError(t, err)
	assert.Equal(t, ensemble.SpatialFirst, agg.WeightSet)
	assert.InDelta(t, 0.35, agg.Weights.Spatial, 1e-9)
	assert.InDelta(t, 0.30, agg.Weights.Temporal, 1e-9)
	assert.InDelta(t, 0.25, agg.Weights.Forensic, 1e-9)
	assert.InDelta(t, 0.10, agg.Weights.Metadata, 1e-9)
	assert.InDelta(t, 0.55, agg.Threshold, 1e-9)
	assert.InDelta(t, 0.2, agg.RedFlagBoost, 1e-9)
}

func TestAIConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Classifier.URL = "http://model/classify"
	cfg.Classifier.APIKey = "secret"
	cfg.Extract.MaxFrames = 60

	ai := cfg.AIConfig()
	assert.Equal(t, "http://model/classify", ai.ClassifierURL)
	assert.Equal(t, "secret", ai.ClassifierAPIKey)
	assert.Equal(t, 30*time.Second, ai.ClassifierTimeout)
	assert.Equal(t, 60, ai.Extract.MaxFrames)
	assert.InDelta(t, 5.0, ai.Extract.FPS, 1e-9)
	assert.Zero(t, ai.Extract.MaxDimension, "full resolution unless capped")
}
