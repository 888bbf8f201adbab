package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "  "})
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Heo bị tiêu chảy", req.Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":" t1 ","prob":0.82,"model":"phobert-v2"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)

	pred, err := c.Predict(context.Background(), "Heo bị tiêu chảy")
	require.NoError(t, err)
	assert.Equal(t, "t1", pred.EntryID)
	assert.InDelta(t, 0.82, pred.Probability, 1e-9)
	assert.Equal(t, "phobert-v2", pred.Model)
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"structured error", http.StatusBadRequest, `{"error":{"message":"empty text","type":"invalid_request"}}`, 400, "empty text"},
		{"plain error", http.StatusServiceUnavailable, "model loading", 503, "model loading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{Endpoint: srv.URL})
			require.NoError(t, err)

			_, err = c.Predict(context.Background(), "q")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Contains(t, apiErr.Message, tt.wantMsg)
		})
	}
}

func TestPredict_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), "q")
	assert.ErrorContains(t, err, "unmarshal response")
}

func TestPredict_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Predict(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
