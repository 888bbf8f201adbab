package events

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/hybrid"
)

func sampleEvent(q string) Event {
	return Event{
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Question:    q,
		Extracted:   extract.Fields{Question: q, Specie: "heo", Symptoms: []string{"tiêu chảy"}},
		MatchedID:   "t1",
		Confidence:  0.9,
		Prediction:  &hybrid.Prediction{EntryID: "t1", Probability: 0.7},
		Branch:      hybrid.BranchStrongRule.String(),
		AllowAnswer: true,
		SnapshotID:  "snap",
	}
}

func TestNew(t *testing.T) {
	sink, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)

	sink, err = New(Config{Driver: "JSONL", Path: filepath.Join(t.TempDir(), "ev.jsonl")})
	require.NoError(t, err)
	assert.IsType(t, &JSONLSink{}, sink)
	require.NoError(t, sink.Close())

	_, err = New(Config{Driver: "kafka"})
	assert.ErrorContains(t, err, "unknown events driver")

	_, err = New(Config{Driver: DriverJSONL})
	assert.Error(t, err, "jsonl needs a path")
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Emit(context.Background(), sampleEvent("Heo bị tiêu chảy")))
		}()
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		assert.Equal(t, "t1", ev["matched_id"])
		assert.Equal(t, "strong_rule", ev["branch"])
		assert.Contains(t, ev, "ts")
		lines++
	}
	assert.Equal(t, 20, lines)
}

func TestJSONLSink_EmitAfterClose(t *testing.T) {
	sink, err := NewJSONLSink(filepath.Join(t.TempDir(), "ev.jsonl"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.ErrorIs(t, sink.Emit(context.Background(), sampleEvent("q")), os.ErrClosed)
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Emit(context.Background(), sampleEvent("q")))
	assert.NoError(t, s.Close())
}
