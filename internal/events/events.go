// Package events records one event per computed pipeline answer, for offline
// evaluation and classifier training.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/hybrid"
)

// Drivers.
const (
	DriverNone  = "none"
	DriverJSONL = "jsonl"
	DriverRedis = "redis"
)

// Event describes one answered question.
type Event struct {
	Timestamp   time.Time          `json:"ts"`
	Question    string             `json:"question"`
	Extracted   extract.Fields     `json:"extracted"`
	MatchedID   string             `json:"matched_id,omitempty"`
	Confidence  float64            `json:"confidence"`
	Prediction  *hybrid.Prediction `json:"prediction,omitempty"`
	Branch      string             `json:"branch"`
	AllowAnswer bool               `json:"allow_answer"`
	SnapshotID  string             `json:"snapshot_id"`
	RequestID   string             `json:"request_id,omitempty"`
}

// Sink receives events. Emit must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
	Close() error
}

// NopSink drops every event.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(context.Context, Event) error { return nil }

// Close does nothing.
func (NopSink) Close() error { return nil }

// Config selects and configures a sink.
type Config struct {
	Driver  string
	Path    string
	Channel string
	Redis   RedisConfig
}

// New builds the sink named by cfg.Driver.
func New(cfg Config) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return NopSink{}, nil
	case DriverJSONL:
		return NewJSONLSink(cfg.Path)
	case DriverRedis:
		return NewRedisSink(cfg.Redis, cfg.Channel)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
