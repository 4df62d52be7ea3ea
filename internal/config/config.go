// Package config loads titleparser's runtime configuration from a YAML
// file and applies environment variable overrides, the same two-step
// shape the teacher's configuration loader uses, generalized away from
// ampy-config since nothing here needs schema-registry validation.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration (spec §6.4).
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Batch         BatchConfig         `yaml:"batch"`
	Retry         RetryConfig         `yaml:"retry"`
	Timeout       TimeoutConfig       `yaml:"timeout"`
	DateWindow    DateWindowConfig    `yaml:"date_window"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StoreConfig configures the pattern store connection. NLPEnabled and
// NLPEndpoint are kept for interface parity with §6.4 but never
// consulted by any stage — every stage is pattern-driven only.
type StoreConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	NLPEnabled  bool   `yaml:"nlp_enabled"`
	NLPEndpoint string `yaml:"nlp_endpoint"`
}

// BatchConfig configures batch sizing.
type BatchConfig struct {
	Size int `yaml:"size"`
}

// RetryConfig configures the stage retry policy.
type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	BaseMs   int `yaml:"base_ms"`
}

// TimeoutConfig configures the per-title processing timeout.
type TimeoutConfig struct {
	Seconds int `yaml:"seconds"`
}

// DateWindowConfig bounds which years stage 2 accepts as plausible.
type DateWindowConfig struct {
	MinYear int `yaml:"min_year"`
	MaxYear int `yaml:"max_year"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

// Default returns the spec's documented defaults: batch size 100, 3
// retries with a 1s base delay, 30s per-title timeout, year window
// 2020-2040.
func Default() Config {
	return Config{
		Store: StoreConfig{
			URI:      "mongodb://localhost:27017",
			Database: "titleparser",
		},
		Batch:      BatchConfig{Size: 100},
		Retry:      RetryConfig{Attempts: 3, BaseMs: 1000},
		Timeout:    TimeoutConfig{Seconds: 30},
		DateWindow: DateWindowConfig{MinYear: 2020, MaxYear: 2040},
		Observability: ObservabilityConfig{
			Environment: "dev",
			LogLevel:    "info",
			MetricsAddr: ":9090",
		},
	}
}

// Loader reads a YAML file into a Config, then applies
// TITLEPARSER_*-prefixed environment variable overrides.
type Loader struct {
	path string
}

// NewLoader returns a Loader that will read path on Load.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the YAML file at the loader's path on top of Default(),
// applies environment overrides, validates the result, and returns it.
// A missing file is an error — callers that want to run from pure
// defaults should use Default() directly.
func (l *Loader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", l.path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", l.path, err)
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides reads the environment variables named in spec §6.4
// over whatever the YAML file (or defaults) set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TITLEPARSER_STORE_URI"); v != "" {
		cfg.Store.URI = v
	}
	if v, ok := os.LookupEnv("TITLEPARSER_NLP_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Store.NLPEnabled = b
		}
	}
	if v := os.Getenv("TITLEPARSER_NLP_ENDPOINT"); v != "" {
		cfg.Store.NLPEndpoint = v
	}
	if v := os.Getenv("TITLEPARSER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Size = n
		}
	}
	if v := os.Getenv("TITLEPARSER_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.Attempts = n
		}
	}
	if v := os.Getenv("TITLEPARSER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timeout.Seconds = n
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be > 0, got %d", cfg.Batch.Size)
	}
	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be >= 1, got %d", cfg.Retry.Attempts)
	}
	if cfg.Timeout.Seconds <= 0 {
		return fmt.Errorf("timeout.seconds must be > 0, got %d", cfg.Timeout.Seconds)
	}
	if cfg.DateWindow.MinYear >= cfg.DateWindow.MaxYear {
		return fmt.Errorf("date_window.min_year (%d) must be < max_year (%d)", cfg.DateWindow.MinYear, cfg.DateWindow.MaxYear)
	}
	return nil
}

// WriteDefault writes Default() to path as YAML, for bootstrapping a
// local config file.
func WriteDefault(path string) error {
	cfg := Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
