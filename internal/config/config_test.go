package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 800, cfg.Matching.MaxCandidates)
	assert.Equal(t, 0.88, cfg.Extraction.FuzzyThreshold)
	assert.Equal(t, 0.45, cfg.Hybrid.MinExternalProbability)
	assert.Equal(t, 0.45, cfg.Hybrid.MaxRuleConfidence)
	assert.Equal(t, 0.35, cfg.Rules.ClarifyBelow)
}

func TestLoad_YAMLAndRelativeDataset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agrimind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
dataset:
  source: kb.json
  watch: true
hybrid:
  predict_timeout: 750ms
cache:
  max_entries: 64
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "kb.json"), cfg.Dataset.Source)
	assert.True(t, cfg.Dataset.Watch)
	assert.Equal(t, 750*time.Millisecond, cfg.Hybrid.PredictTimeout)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.True(t, cfg.IsFileDataset())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGRIMIND_DATASET", "sqlite:/tmp/kb.db")
	t.Setenv("AGRIMIND_CLASSIFIER_URL", "http://classifier:8500")
	t.Setenv("AGRIMIND_LOG_PATH", "/tmp/events.jsonl")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "7000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite:/tmp/kb.db", cfg.Dataset.Source)
	assert.False(t, cfg.IsFileDataset())
	assert.True(t, cfg.Classifier.Enabled)
	assert.Equal(t, "http://classifier:8500", cfg.Classifier.Endpoint)
	assert.Equal(t, "jsonl", cfg.Events.Driver)
	assert.Equal(t, "/tmp/events.jsonl", cfg.Events.Path)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"empty dataset", func(c *Config) { c.Dataset.Source = " " }, "dataset source is required"},
		{"zero candidates", func(c *Config) { c.Matching.MaxCandidates = 0 }, "max_candidates"},
		{"threshold above one", func(c *Config) { c.Hybrid.MaxRuleConfidence = 1.5 }, "hybrid.max_rule_confidence"},
		{"fuzzy below zero", func(c *Config) { c.Extraction.FuzzyThreshold = -0.1 }, "fuzzy_threshold"},
		{"cache without size", func(c *Config) { c.Cache.MaxEntries = 0 }, "max_entries"},
		{"classifier without endpoint", func(c *Config) {
			c.Classifier.Enabled = true
			c.Classifier.Endpoint = ""
		}, "classifier endpoint"},
		{"unknown events driver", func(c *Config) { c.Events.Driver = "kafka" }, "invalid events driver"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	assert.Equal(t, "/etc/agrimind/kb.json", ResolveRelativePath("/etc/agrimind/config.yaml", "kb.json"))
	assert.Equal(t, "/data/kb.json", ResolveRelativePath("/etc/agrimind/config.yaml", "/data/kb.json"))
}
