// Package config loads the YAML configuration shared by the heartrisk
// commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Training  TrainingConfig  `yaml:"training"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

type DatasetConfig struct {
	Path      string `yaml:"path"`
	Encoding  string `yaml:"encoding"`
	Delimiter string `yaml:"delimiter"`
}

// Comma returns the field delimiter rune, zero for the default.
func (d DatasetConfig) Comma() rune {
	for _, r := range d.Delimiter {
		return r
	}
	return 0
}

type ArtifactsConfig struct {
	Dir            string        `yaml:"dir"`
	Watch          bool          `yaml:"watch"`
	ReloadDebounce time.Duration `yaml:"reload_debounce"`
}

type TrainingConfig struct {
	TestFraction    float64 `yaml:"test_fraction"`
	Seed            int64   `yaml:"seed"`
	NEstimators     int     `yaml:"n_estimators"`
	MaxDepth        int     `yaml:"max_depth"`
	MaxFeatures     int     `yaml:"max_features"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf"`
	Workers         int     `yaml:"workers"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CacheSize      int           `yaml:"cache_size"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Path:     "data/heart.csv",
			Encoding: "utf-8",
		},
		Artifacts: ArtifactsConfig{
			Dir:            "models",
			Watch:          true,
			ReloadDebounce: 500 * time.Millisecond,
		},
		Training: TrainingConfig{
			TestFraction:    0.2,
			Seed:            42,
			NEstimators:     100,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
		},
		Database: DatabaseConfig{
			Path: "data/heartrisk.db",
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			RequestTimeout: 10 * time.Second,
			CacheSize:      1024,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	t := c.Training
	switch {
	case t.TestFraction <= 0 || t.TestFraction >= 1:
		return fmt.Errorf("training.test_fraction must be in (0, 1), got %v", t.TestFraction)
	case t.NEstimators <= 0:
		return fmt.Errorf("training.n_estimators must be positive, got %d", t.NEstimators)
	case t.MaxDepth < 0 || t.MaxFeatures < 0 || t.Workers < 0:
		return errors.New("training.max_depth, max_features and workers must not be negative")
	case t.MinSamplesSplit < 2:
		return fmt.Errorf("training.min_samples_split must be at least 2, got %d", t.MinSamplesSplit)
	case t.MinSamplesLeaf < 1:
		return fmt.Errorf("training.min_samples_leaf must be at least 1, got %d", t.MinSamplesLeaf)
	case c.Artifacts.Dir == "":
		return errors.New("artifacts.dir is required")
	case c.HTTP.CacheSize < 0:
		return fmt.Errorf("http.cache_size must not be negative, got %d", c.HTTP.CacheSize)
	case len([]rune(c.Dataset.Delimiter)) > 1:
		return fmt.Errorf("dataset.delimiter must be a single character, got %q", c.Dataset.Delimiter)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}
