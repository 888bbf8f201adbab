// Package config provides unified configuration loading for the AgriMind engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine and its front ends.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Dataset       DatasetConfig       `yaml:"dataset"`
	Matching      MatchingConfig      `yaml:"matching"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Hybrid        HybridConfig        `yaml:"hybrid"`
	Rules         RulesConfig         `yaml:"rules"`
	Cache         CacheConfig         `yaml:"cache"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	// AdminAPIKey guards the reload endpoint; empty leaves it open.
	AdminAPIKey    string   `yaml:"admin_api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatasetConfig selects the KB source.
type DatasetConfig struct {
	// Source is a JSON file path, "sqlite:<path>" or a postgres:// DSN.
	Source   string        `yaml:"source"`
	Table    string        `yaml:"table"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// MatchingConfig holds matcher settings.
type MatchingConfig struct {
	MaxCandidates int `yaml:"max_candidates"`
}

// ExtractionConfig holds entity extractor settings.
type ExtractionConfig struct {
	FuzzyThreshold  float64 `yaml:"fuzzy_threshold"`
	MinSymptomRunes int     `yaml:"min_symptom_runes"`
}

// HybridConfig holds the rule/classifier reconciliation thresholds.
type HybridConfig struct {
	MinExternalProbability float64       `yaml:"min_external_probability"`
	MaxRuleConfidence      float64       `yaml:"max_rule_confidence"`
	PredictTimeout         time.Duration `yaml:"predict_timeout"`
}

// RulesConfig holds rule engine thresholds.
type RulesConfig struct {
	ClarifyBelow  float64 `yaml:"clarify_below"`
	FollowUpBelow float64 `yaml:"follow_up_below"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// ClassifierConfig configures the external entry classifier.
type ClassifierConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// EventsConfig selects where pipeline events are emitted.
type EventsConfig struct {
	Driver  string      `yaml:"driver"` // none, jsonl or redis
	Path    string      `yaml:"path"`
	Channel string      `yaml:"channel"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Dataset.Source != "" && !isURI(cfg.Dataset.Source) {
			cfg.Dataset.Source = ResolveRelativePath(path, cfg.Dataset.Source)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			RequestTimeout:   30 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Dataset: DatasetConfig{
			Source:   "data/agrimind_dataset.json",
			Table:    "kb_entries",
			Watch:    false,
			Debounce: 500 * time.Millisecond,
		},
		Matching: MatchingConfig{
			MaxCandidates: 800,
		},
		Extraction: ExtractionConfig{
			FuzzyThreshold:  0.88,
			MinSymptomRunes: 3,
		},
		Hybrid: HybridConfig{
			MinExternalProbability: 0.45,
			MaxRuleConfidence:      0.45,
			PredictTimeout:         2 * time.Second,
		},
		Rules: RulesConfig{
			ClarifyBelow:  0.35,
			FollowUpBelow: 0.65,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 2048,
		},
		Classifier: ClassifierConfig{
			Enabled:  false,
			Endpoint: "http://localhost:8500",
			Timeout:  2 * time.Second,
		},
		Events: EventsConfig{
			Driver:  "none",
			Path:    "logs/agrimind_events.jsonl",
			Channel: "pipeline.events",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "agrimind:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "agrimind",
			MetricsEnabled: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Dataset.Source) == "" {
		return fmt.Errorf("dataset source is required")
	}

	if c.Matching.MaxCandidates < 1 {
		return fmt.Errorf("max_candidates must be positive")
	}

	if err := checkUnit("extraction.fuzzy_threshold", c.Extraction.FuzzyThreshold); err != nil {
		return err
	}
	if c.Extraction.MinSymptomRunes < 1 {
		return fmt.Errorf("min_symptom_runes must be positive")
	}

	for name, v := range map[string]float64{
		"hybrid.min_external_probability": c.Hybrid.MinExternalProbability,
		"hybrid.max_rule_confidence":      c.Hybrid.MaxRuleConfidence,
		"rules.clarify_below":             c.Rules.ClarifyBelow,
		"rules.follow_up_below":           c.Rules.FollowUpBelow,
	} {
		if err := checkUnit(name, v); err != nil {
			return err
		}
	}

	if c.Cache.Enabled && c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max_entries must be positive when cache is enabled")
	}

	if c.Classifier.Enabled && c.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier endpoint is required when classifier is enabled")
	}

	switch c.Events.Driver {
	case "none", "":
	case "jsonl":
		if c.Events.Path == "" {
			return fmt.Errorf("events path is required for jsonl driver")
		}
	case "redis":
		if c.Events.Redis.Addr == "" {
			return fmt.Errorf("events redis addr is required for redis driver")
		}
	default:
		return fmt.Errorf("invalid events driver: %s", c.Events.Driver)
	}

	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}

	return nil
}

// IsFileDataset reports whether the dataset is a plain JSON file.
func (c *Config) IsFileDataset() bool {
	return !isURI(c.Dataset.Source)
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, v)
	}
	return nil
}

func isURI(s string) bool {
	return strings.HasPrefix(s, "sqlite:") ||
		strings.HasPrefix(s, "postgres://") ||
		strings.HasPrefix(s, "postgresql://")
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("AGRIMIND_DATASET"); v != "" {
		cfg.Dataset.Source = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" && isURI(v) {
		cfg.Dataset.Source = v
	}

	if v := os.Getenv("AGRIMIND_WATCH"); v != "" {
		cfg.Dataset.Watch = v == "true" || v == "1"
	}

	if v := os.Getenv("AGRIMIND_CLASSIFIER_URL"); v != "" {
		cfg.Classifier.Endpoint = v
		cfg.Classifier.Enabled = true
	}

	if v := os.Getenv("AGRIMIND_ADMIN_API_KEY"); v != "" {
		cfg.Server.AdminAPIKey = v
	}
	if v := os.Getenv("AGRIMIND_CLASSIFIER_API_KEY"); v != "" {
		cfg.Classifier.APIKey = v
	}

	if v := os.Getenv("AGRIMIND_LOG_PATH"); v != "" {
		cfg.Events.Driver = "jsonl"
		cfg.Events.Path = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Events.Driver = "redis"
		cfg.Events.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("AGRIMIND_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxEntries = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
