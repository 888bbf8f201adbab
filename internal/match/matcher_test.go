package match

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
)

func scenarioSnapshot() *kb.Snapshot {
	return kb.NewSnapshot([]kb.Entry{
		{ID: "t1", Domain: "livestock", Specie: "heo", Season: "bat_ky", Disease: "tiêu chảy",
			Symptoms: []string{"tiêu chảy", "bỏ ăn"}},
		{ID: "t2", Domain: "crop", Specie: "lúa", Season: "mua", Disease: "đạo ôn",
			Symptoms: []string{"đốm lá"}},
	}, "test")
}

func largeSnapshot() *kb.Snapshot {
	species := []string{"heo", "gà", "bò", "tôm", "lúa", "xoài"}
	seasons := []string{"mua", "nang", "bat_ky"}
	diseases := []string{"tiêu chảy", "cúm", "ký sinh trùng", "thối rễ", "đốm lá", "sốt"}
	symptoms := []string{"bỏ ăn", "sốt", "ho", "khó thở", "vàng lá", "tiêu chảy"}

	var entries []kb.Entry
	for i, sp := range species {
		for j, d := range diseases {
			entries = append(entries, kb.Entry{
				ID:       fmt.Sprintf("e%d-%d", i, j),
				Domain:   []string{"livestock", "aquaculture", "crop"}[(i+j)%3],
				Specie:   sp,
				Season:   seasons[(i+j)%len(seasons)],
				Disease:  d,
				Symptoms: []string{symptoms[j], symptoms[(i+j+1)%len(symptoms)]},
				Safety:   kb.Safety{Urgent: (i*j)%4 == 1},
			})
		}
	}
	entries = append(entries, kb.Entry{ID: "blank", Domain: "x", Specie: "y", Season: "z", Disease: "!"})
	return kb.NewSnapshot(entries, "large")
}

func TestScore_Weights(t *testing.T) {
	e := &kb.Entry{
		Domain: "livestock", Specie: "Heo", Season: "mua", Disease: "Tiêu chảy",
		Symptoms: []string{"bỏ ăn", "sốt", "ho", "khó thở"},
		Safety:   kb.Safety{Urgent: true},
	}

	tests := []struct {
		name   string
		fields extract.Fields
		want   float64
	}{
		{"nothing", extract.Fields{}, 0},
		{"domain", extract.Fields{DomainHint: "livestock"}, 1},
		{"specie normalized", extract.Fields{Specie: "heo"}, 3},
		{"season", extract.Fields{Season: "mùa"}, 2},
		{"disease", extract.Fields{Disease: "tieu chay"}, 4},
		{"one symptom", extract.Fields{Symptoms: []string{"sốt"}}, 1},
		{"symptoms capped", extract.Fields{Symptoms: []string{"bỏ ăn", "sốt", "ho", "khó thở"}}, 3},
		{"alarm on urgent", extract.Fields{Question: "heo chết nhiều"}, 0.5},
		{"all", extract.Fields{
			Question: "heo khó thở", DomainHint: "livestock", Specie: "heo", Season: "mua",
			Disease: "tiêu chảy", Symptoms: []string{"khó thở"},
		}, 11.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.fields, e), 1e-9)
		})
	}
}

func TestScore_AlarmIgnoredForCalmEntry(t *testing.T) {
	e := &kb.Entry{Specie: "heo"}
	assert.Equal(t, 0.0, Score(extract.Fields{Question: "heo chết"}, e))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(-1))
	assert.Equal(t, 0.0, Confidence(0))
	assert.InDelta(t, 0.45, Confidence(4.5), 1e-9)
	assert.Equal(t, 1.0, Confidence(11.5))
}

func TestIndexed_PigDiarrhoeaScenario(t *testing.T) {
	snap := scenarioSnapshot()
	f := extract.New(extract.Options{}).Extract("Heo bị tiêu chảy bỏ ăn", snap.Lexicon)

	res := New(0).Indexed(f, snap)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "t1", res.EntryID())
	assert.GreaterOrEqual(t, res.Score, 9.0)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.False(t, res.FullScan)
}

func TestIndexed_GreetingFallsBackToFullScan(t *testing.T) {
	snap := scenarioSnapshot()
	f := extract.New(extract.Options{}).Extract("xin chào", snap.Lexicon)

	res := New(0).Indexed(f, snap)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "t1", res.EntryID())
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.FullScan)
}

func TestFull_EmptySnapshot(t *testing.T) {
	m := New(0)
	res := m.Full(extract.Fields{Question: "heo"}, kb.NewSnapshot(nil, "empty"))
	assert.Nil(t, res.Entry)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, -1, res.Position)

	res = m.Indexed(extract.Fields{Question: "heo"}, nil)
	assert.Nil(t, res.Entry)
}

func TestFull_TiesKeepFirstEntry(t *testing.T) {
	snap := kb.NewSnapshot([]kb.Entry{
		{ID: "a", Specie: "gà", Season: "mua", Disease: "cúm"},
		{ID: "b", Specie: "gà", Season: "nang", Disease: "cúm"},
		{ID: "c", Specie: "gà", Season: "mua", Disease: "cúm"},
	}, "ties")
	f := extract.Fields{Question: "gà bị cúm", Specie: "gà", Disease: "cúm"}

	m := New(0)
	assert.Equal(t, "a", m.Full(f, snap).EntryID())
	assert.Equal(t, "a", m.Indexed(f, snap).EntryID())
}

func TestIndexed_MatchesFullScan(t *testing.T) {
	snap := largeSnapshot()
	x := extract.New(extract.Options{})
	m := New(0)

	questions := []string{
		"Heo bị tiêu chảy bỏ ăn",
		"gà bị cúm và sốt",
		"tôm chết nhiều, khó thở",
		"lúa bị vàng lá mùa mưa",
		"bò bị ho",
		"xoài thối rễ",
		"con vật bỏ ăn",
		"trời nắng cây vàng lá",
		"xin chào",
		"",
		"heo khó thở chết",
		"ký sinh trùng ở gà ta",
	}

	for _, q := range questions {
		t.Run(q, func(t *testing.T) {
			f := x.Extract(q, snap.Lexicon)
			full := m.Full(f, snap)
			indexed := m.Indexed(f, snap)
			assert.Equal(t, full.EntryID(), indexed.EntryID())
			assert.InDelta(t, full.Confidence, indexed.Confidence, 1e-12)
		})
	}
}

func TestIndexed_CapsCandidates(t *testing.T) {
	snap := largeSnapshot()
	f := extract.Fields{Question: "heo", Specie: "heo"}

	res := New(2).Indexed(f, snap)
	assert.Equal(t, 2, res.Scored)
	assert.Equal(t, "e0-0", res.EntryID())
}

func TestIndexed_AlarmAddsUrgentCandidates(t *testing.T) {
	snap := kb.NewSnapshot([]kb.Entry{
		{ID: "calm", Specie: "gà", Season: "mua", Disease: "cúm"},
		{ID: "urgent", Specie: "vịt", Season: "nang", Disease: "dịch tả", Safety: kb.Safety{Urgent: true}},
	}, "alarm")

	f := extract.Fields{Question: "gà chết", Specie: "gà"}
	res := New(1).Indexed(f, snap)
	assert.Equal(t, "calm", res.EntryID())
	assert.Equal(t, 2, res.Scored)
}
