// Package classifier is an HTTP client for an external model that predicts a
// KB entry id from the raw question.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/hybrid"
)

// DefaultTimeout bounds a single HTTP round trip. The chooser applies its own,
// usually shorter, deadline on top.
const DefaultTimeout = 5 * time.Second

// maxErrorBody caps how much of an error response ends up in an error message.
const maxErrorBody = 512

// Config holds classifier client configuration.
type Config struct {
	Endpoint string // e.g. http://localhost:8500
	APIKey   string // optional bearer token
	Timeout  time.Duration
}

// Client calls POST <endpoint>/predict.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

var _ hybrid.Predictor = (*Client)(nil)

// NewClient creates a new classifier client.
func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
	}, nil
}

// PredictRequest is the request body.
type PredictRequest struct {
	Text string `json:"text"`
}

// PredictResponse is the response body.
type PredictResponse struct {
	ID    string    `json:"id"`
	Prob  float64   `json:"prob"`
	Model string    `json:"model"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is an error reported by the classifier service.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("classifier error %d: %s (type: %s)", e.Status, e.Message, e.Type)
	}
	return fmt.Sprintf("classifier error %d: %s", e.Status, e.Message)
}

// Predict returns the model's best entry for question. Validation of the
// returned id and probability is left to the chooser.
func (c *Client) Predict(ctx context.Context, question string) (*hybrid.Prediction, error) {
	jsonBody, err := json.Marshal(PredictRequest{Text: question})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp PredictResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			errResp.Error.Status = resp.StatusCode
			return nil, errResp.Error
		}
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out PredictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &hybrid.Prediction{
		EntryID:     strings.TrimSpace(out.ID),
		Probability: out.Prob,
		Model:       out.Model,
	}, nil
}
