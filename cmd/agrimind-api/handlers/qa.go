// Package handlers provides HTTP handlers for the AgriMind API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/cache"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/pipeline"
)

// maxBodyBytes bounds request bodies; questions are short.
const maxBodyBytes = 64 << 10

// Service is the pipeline surface the handlers need.
type Service interface {
	Run(ctx context.Context, question string) (*pipeline.Result, error)
	ExtractOnly(question string) (extract.Fields, error)
	MatchOnly(question string) (*pipeline.MatchView, error)
	Reload(ctx context.Context) (*kb.Snapshot, error)
	Snapshot() *kb.Snapshot
	CacheStats() (cache.Stats, bool)
}

// QAHandler serves the question answering endpoints.
type QAHandler struct {
	logger  *observability.Logger
	service Service
}

// NewQAHandler creates a new QA handler.
func NewQAHandler(logger *observability.Logger, service Service) *QAHandler {
	return &QAHandler{
		logger:  logger.WithOperation("http"),
		service: service,
	}
}

// QuestionRequestDTO is the body of every question endpoint. "question" is
// accepted as an alias of "text".
type QuestionRequestDTO struct {
	Text     string `json:"text"`
	Question string `json:"question,omitempty"`
}

// ResponseDTO is the common response envelope.
type ResponseDTO struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SnapshotDTO describes the active KB snapshot.
type SnapshotDTO struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"`
	Entries  int       `json:"entries"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ReadyDTO is returned by GET /ready.
type ReadyDTO struct {
	Status   string       `json:"status"`
	Snapshot *SnapshotDTO `json:"snapshot,omitempty"`
	Cache    *cache.Stats `json:"cache,omitempty"`
}

// Health handles GET /health.
func (h *QAHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "agrimind",
		"ts":      time.Now().UTC(),
	})
}

// Ready handles GET /ready: 503 until a dataset is loaded.
func (h *QAHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	snap := h.service.Snapshot()
	if snap == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyDTO{Status: "loading"})
		return
	}
	resp := ReadyDTO{Status: "ready", Snapshot: snapshotDTO(snap)}
	if stats, ok := h.service.CacheStats(); ok {
		resp.Cache = &stats
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Extract handles POST /v1/extract.
func (h *QAHandler) Extract(w http.ResponseWriter, r *http.Request) {
	question, ok := h.readQuestion(w, r)
	if !ok {
		return
	}
	fields, err := h.service.ExtractOnly(question)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResponseDTO{Success: true, Result: fields})
}

// Match handles POST /v1/match.
func (h *QAHandler) Match(w http.ResponseWriter, r *http.Request) {
	question, ok := h.readQuestion(w, r)
	if !ok {
		return
	}
	view, err := h.service.MatchOnly(question)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResponseDTO{Success: true, Result: view})
}

// Ask handles POST /v1/ask.
func (h *QAHandler) Ask(w http.ResponseWriter, r *http.Request) {
	question, ok := h.readQuestion(w, r)
	if !ok {
		return
	}
	res, err := h.service.Run(r.Context(), question)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResponseDTO{Success: true, Result: res})
}

// Reload handles POST /v1/reload.
func (h *QAHandler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Reload(r.Context())
	if err != nil {
		var dsErr *kb.DatasetError
		if errors.As(err, &dsErr) {
			h.writeJSON(w, http.StatusUnprocessableEntity, ResponseDTO{Error: err.Error()})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResponseDTO{Success: true, Result: snapshotDTO(snap)})
}

func (h *QAHandler) readQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req QuestionRequestDTO
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeJSON(w, http.StatusBadRequest, ResponseDTO{Error: "invalid request body"})
		return "", false
	}

	question := strings.TrimSpace(req.Text)
	if question == "" {
		question = strings.TrimSpace(req.Question)
	}
	if question == "" {
		h.writeJSON(w, http.StatusBadRequest, ResponseDTO{Error: "text is required"})
		return "", false
	}
	return question, true
}

func (h *QAHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pipeline.ErrNoSnapshot) {
		h.writeJSON(w, http.StatusServiceUnavailable, ResponseDTO{Error: err.Error()})
		return
	}
	h.logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	h.writeJSON(w, http.StatusInternalServerError, ResponseDTO{Error: "internal error"})
}

func (h *QAHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func snapshotDTO(snap *kb.Snapshot) *SnapshotDTO {
	return &SnapshotDTO{
		ID:       snap.ID,
		Source:   snap.Source,
		Entries:  snap.Len(),
		LoadedAt: snap.LoadedAt,
	}
}
