package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/config"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
)

const buildDataset = `[
  {"id": "t1", "domain": "livestock", "specie": "heo", "season": "bat_ky", "disease": "tiêu chảy",
   "symptoms": ["tiêu chảy", "bỏ ăn"], "examples": ["Heo bị tiêu chảy"]}
]`

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	dataset := filepath.Join(dir, "kb.json")
	require.NoError(t, os.WriteFile(dataset, []byte(buildDataset), 0o644))

	cfg := config.DefaultConfig()
	cfg.Dataset.Source = dataset
	cfg.Events.Driver = "jsonl"
	cfg.Events.Path = filepath.Join(dir, "events", "ev.jsonl")

	svc, err := Build(context.Background(), cfg, nil, observability.NopLogger())
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.Run(context.Background(), "Heo bị tiêu chảy")
	require.NoError(t, err)
	assert.Equal(t, "t1", res.MatchedID())

	_, ok := svc.CacheStats()
	assert.True(t, ok)

	data, err := os.ReadFile(cfg.Events.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"matched_id":"t1"`)
}

func TestBuild_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing dataset", func(c *config.Config) { c.Dataset.Source = filepath.Join(t.TempDir(), "nope.json") }},
		{"bad events driver", func(c *config.Config) { c.Events.Driver = "kafka" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataset := filepath.Join(t.TempDir(), "kb.json")
			require.NoError(t, os.WriteFile(dataset, []byte(buildDataset), 0o644))

			cfg := config.DefaultConfig()
			cfg.Dataset.Source = dataset
			tt.mutate(cfg)

			_, err := Build(context.Background(), cfg, nil, observability.NopLogger())
			assert.Error(t, err)
		})
	}
}
