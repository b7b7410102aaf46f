// Package config loads verifai settings in layers: built-in defaults, an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/kdimtricp/verifai/internal/ai"
	"github.com/kdimtricp/verifai/internal/cache"
	"github.com/kdimtricp/verifai/internal/database"
	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/logging"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// DefaultPaths are searched in order when PathEnvVar is unset.
var DefaultPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/verifai/config.yaml",
}

type Config struct {
	Server         ServerConfig     `koanf:"server"`
	Database       database.Config  `koanf:"database"`
	Storage        StorageConfig    `koanf:"storage"`
	Cache          CacheConfig      `koanf:"cache"`
	Classifier     ClassifierConfig `koanf:"classifier"`
	Extract        ExtractConfig    `koanf:"extract"`
	Ensemble       EnsembleConfig   `koanf:"ensemble"`
	Logging        LoggingConfig    `koanf:"logging"`
	MigrationsPath string           `koanf:"migrations_path"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"gt=0,lt=65536"`
	MaxUploadSize   int64         `koanf:"max_upload_size" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	DownloadTimeout time.Duration `koanf:"download_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	UploadDir string `koanf:"upload_dir" validate:"required"`
}

type CacheConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Dir      string        `koanf:"dir"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"`
}

type ClassifierConfig struct {
	URL               string        `koanf:"url" validate:"omitempty,url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"gte=0"`
	JPEGQuality       int           `koanf:"jpeg_quality" validate:"gte=0,lte=100"`
}

type ExtractConfig struct {
	FPS          float64 `koanf:"fps" validate:"gt=0"`
	MaxFrames    int     `koanf:"max_frames" validate:"gt=0"`
	MaxDimension int     `koanf:"max_dimension" validate:"gte=0"`
}

type EnsembleConfig struct {
	WeightSet string  `koanf:"weight_set" validate:"oneof=temporal-first spatial-first"`
	Threshold float64 `koanf:"threshold" validate:"gt=0,lt=1"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	extract := ai.DefaultExtractOptions()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			MaxUploadSize:   100 << 20,
			RateLimit:       30,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 15 * time.Second,
			DownloadTimeout: 2 * time.Minute,
		},
		Database: database.Config{
			Type:       "sqlite",
			Host:       "localhost",
			Port:       5432,
			User:       "verifai",
			Password:   "verifai_dev",
			Name:       "verifai",
			SQLitePath: "./verifai.db",
		},
		Storage: StorageConfig{UploadDir: "./uploads"},
		Cache: CacheConfig{
			Dir: "./data/cache",
			TTL: 7 * 24 * time.Hour,
		},
		Classifier: ClassifierConfig{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			JPEGQuality:       90,
		},
		Extract: ExtractConfig{
			FPS:          extract.FPS,
			MaxFrames:    extract.MaxFrames,
			MaxDimension: extract.MaxDimension,
		},
		Ensemble: EnsembleConfig{
			WeightSet: ensemble.TemporalFirst,
			Threshold: ensemble.DefaultConfig().Threshold,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		MigrationsPath: "./migrations",
	}
}

// Load reads defaults, then the config file if one exists, then the
// environment. Later layers win.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitCommaFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Database.Type == "sqlite" && c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required for sqlite")
	}
	if c.Cache.Enabled && !c.Cache.InMemory && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required when the cache is enabled")
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"port":                 "server.port",
	"max_upload_size":      "server.max_upload_size",
	"cors_origins":         "server.cors_origins",
	"rate_limit":           "server.rate_limit",
	"rate_limit_window":    "server.rate_limit_window",
	"shutdown_timeout":     "server.shutdown_timeout",
	"download_timeout":     "server.download_timeout",
	"db_type":              "database.type",
	"db_host":              "database.host",
	"db_port":              "database.port",
	"db_user":              "database.user",
	"db_password":          "database.password",
	"db_name":              "database.name",
	"db_path":              "database.sqlite_path",
	"upload_dir":           "storage.upload_dir",
	"cache_enabled":        "cache.enabled",
	"cache_dir":            "cache.dir",
	"cache_in_memory":      "cache.in_memory",
	"cache_ttl":            "cache.ttl",
	"classifier_url":       "classifier.url",
	"classifier_api_key":   "classifier.api_key",
	"classifier_timeout":   "classifier.timeout",
	"classifier_rps":       "classifier.requests_per_second",
	"classifier_burst":     "classifier.burst",
	"extract_fps":          "extract.fps",
	"max_frames_per_video": "extract.max_frames",
	"frame_size":           "extract.max_dimension",
	"ensemble_weight_set":  "ensemble.weight_set",
	"ensemble_threshold":   "ensemble.threshold",
	"log_level":            "logging.level",
	"log_format":           "logging.format",
	"log_caller":           "logging.caller",
	"migrations_path":      "migrations_path",
}

// envTransform maps known variables to config paths and drops the rest.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}

var commaFields = []string{"server.cors_origins"}

func splitCommaFields(k *koanf.Koanf) error {
	for _, path := range commaFields {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// AIConfig converts the classifier and extraction sections.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig()
	cfg.ClassifierURL = c.Classifier.URL
	cfg.ClassifierAPIKey = c.Classifier.APIKey
	if c.Classifier.Timeout > 0 {
		cfg.ClassifierTimeout = c.Classifier.Timeout
	}
	cfg.RequestsPerSecond = c.Classifier.RequestsPerSecond
	cfg.Burst = c.Classifier.Burst
	if c.Classifier.JPEGQuality > 0 {
		cfg.JPEGQuality = c.Classifier.JPEGQuality
	}
	cfg.Extract = ai.ExtractOptions{
		FPS:          c.Extract.FPS,
		MaxFrames:    c.Extract.MaxFrames,
		MaxDimension: c.Extract.MaxDimension,
	}
	return cfg
}

// AggregatorConfig applies the configured weight set and threshold to the
// default calibration.
func (c *Config) AggregatorConfig() (ensemble.Config, error) {
	cfg, err := ensemble.DefaultConfig().WithWeightSet(c.Ensemble.WeightSet)
	if err != nil {
		return cfg, err
	}
	if c.Ensemble.Threshold > 0 {
		cfg.Threshold = c.Ensemble.Threshold
	}
	return cfg, nil
}

func (c *Config) ScoreCacheConfig() cache.Config {
	return cache.Config{Dir: c.Cache.Dir, InMemory: c.Cache.InMemory, TTL: c.Cache.TTL}
}

func (c *Config) LogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}
