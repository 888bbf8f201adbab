package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/cache"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/pipeline"
)

type staticSource struct {
	entries []kb.Entry
	err     error
}

func (s *staticSource) Name() string { return "static" }
func (s *staticSource) Load(context.Context) ([]kb.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]kb.Entry, len(s.entries))
	for i := range s.entries {
		out[i] = *s.entries[i].Clone()
	}
	return out, nil
}
func (s *staticSource) Close() error { return nil }

func newHandler(t *testing.T, loaded bool) (*QAHandler, *staticSource) {
	t.Helper()
	logger := observability.NopLogger()
	src := &staticSource{entries: []kb.Entry{
		{ID: "t1", Domain: "livestock", Specie: "heo", Season: "bat_ky", Disease: "tiêu chảy",
			Symptoms: []string{"tiêu chảy", "bỏ ăn"}},
		{ID: "t2", Domain: "crop", Specie: "lúa", Season: "mua", Disease: "đạo ôn",
			Symptoms: []string{"đốm lá"}},
	}}
	store := kb.NewStore(src, logger)
	if loaded {
		_, err := store.Reload(context.Background())
		require.NoError(t, err)
	}
	results, err := cache.New(8, (*pipeline.Result).Clone)
	require.NoError(t, err)

	svc := pipeline.New(store, pipeline.Options{Cache: results, Logger: logger})
	return NewQAHandler(logger, svc), src
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAsk(t *testing.T) {
	h, _ := newHandler(t, true)

	rec := post(h.Ask, `{"text":"Heo bị tiêu chảy bỏ ăn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "t1", result["matched"].(map[string]any)["id"])
	assert.Equal(t, "strong_rule", result["branch"])
	assert.Equal(t, true, result["rules"].(map[string]any)["allow_answer"])
}

func TestAsk_QuestionAlias(t *testing.T) {
	h, _ := newHandler(t, true)

	rec := post(h.Ask, `{"question":"xin chào"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, false, result["rules"].(map[string]any)["allow_answer"])
}

func TestQuestionValidation(t *testing.T) {
	h, _ := newHandler(t, true)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty body", ``, "text is required"},
		{"blank text", `{"text":"   "}`, "text is required"},
		{"bad json", `{"text":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, fn := range []http.HandlerFunc{h.Ask, h.Extract, h.Match} {
				rec := post(fn, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, tt.wantErr, decode(t, rec)["error"])
			}
		})
	}
}

func TestExtractAndMatch(t *testing.T) {
	h, _ := newHandler(t, true)

	rec := post(h.Extract, `{"text":"Lúa bị đạo ôn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, "lúa", fields["specie"])
	assert.Equal(t, "đạo ôn", fields["disease"])

	rec = post(h.Match, `{"text":"Lúa bị đạo ôn"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, "t2", view["matched"].(map[string]any)["id"])
}

func TestNotLoaded(t *testing.T) {
	h, _ := newHandler(t, false)

	rec := post(h.Ask, `{"text":"heo"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "loading", decode(t, rec)["status"])
}

func TestReadyAndHealth(t *testing.T) {
	h, _ := newHandler(t, true)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, 2.0, body["snapshot"].(map[string]any)["entries"])
	assert.Contains(t, body, "cache")

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
}

func TestReload(t *testing.T) {
	h, src := newHandler(t, true)

	rec := post(h.Reload, ``)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["result"].(map[string]any)["entries"])

	src.entries = append(src.entries, kb.Entry{ID: "t1", Specie: "gà", Season: "mua", Disease: "cúm"})
	rec = post(h.Reload, ``)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "t1")
}
