package kb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Source produces raw, unvalidated entries. Load validates what it returns.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Entry, error)
	Close() error
}

// JSONFileSource reads a JSON array of entries from a file.
type JSONFileSource struct {
	Path string
}

// NewJSONFileSource creates a file-backed source.
func NewJSONFileSource(path string) *JSONFileSource {
	return &JSONFileSource{Path: path}
}

// Name returns the file path.
func (s *JSONFileSource) Name() string { return s.Path }

// Load reads and decodes the file.
func (s *JSONFileSource) Load(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	return DecodeJSON(data)
}

// Close is a no-op for files.
func (s *JSONFileSource) Close() error { return nil }

// DecodeJSON parses a JSON array of entries. A null safety block or missing
// lists decode to their zero values.
func DecodeJSON(data []byte) ([]Entry, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse dataset json: %w", err)
	}
	return entries, nil
}

// OpenSource picks a source from a URI: "sqlite:<path>" and "postgres://..."
// open a SQL source, anything else is treated as a JSON file path.
// Drivers must be registered by the caller's binary.
func OpenSource(uri, table string) (Source, error) {
	switch {
	case strings.HasPrefix(uri, "sqlite:"):
		db, err := sql.Open("sqlite3", strings.TrimPrefix(uri, "sqlite:"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite dataset: %w", err)
		}
		return NewSQLSource(db, uri, table)
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		db, err := sql.Open("postgres", uri)
		if err != nil {
			return nil, fmt.Errorf("open postgres dataset: %w", err)
		}
		return NewSQLSource(db, redactDSN(uri), table)
	case uri == "":
		return nil, fmt.Errorf("dataset source is empty")
	default:
		return NewJSONFileSource(uri), nil
	}
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
