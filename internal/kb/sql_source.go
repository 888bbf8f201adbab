package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
)

// DefaultTable is the table read by SQLSource when none is configured.
const DefaultTable = "kb_entries"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// SQLSource reads entries from a relational table. List columns hold JSON
// arrays encoded as text.
type SQLSource struct {
	db    *sql.DB
	name  string
	query string
}

// NewSQLSource wraps an open database handle.
func NewSQLSource(db *sql.DB, name, table string) (*SQLSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid dataset table name: %q", table)
	}
	return &SQLSource{
		db:   db,
		name: name,
		query: "SELECT id, domain, specie, season, disease, symptoms, causes, advice, examples, safety_urgent, safety_notes FROM " +
			table + " ORDER BY id",
	}, nil
}

// Name identifies the source in errors and logs.
func (s *SQLSource) Name() string { return s.name }

// Load queries every row of the table.
func (s *SQLSource) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                  Entry
			domain, notes                      sql.NullString
			symptoms, causes, advice, examples sql.NullString
			urgent                             sql.NullBool
		)
		if err := rows.Scan(&e.ID, &domain, &e.Specie, &e.Season, &e.Disease,
			&symptoms, &causes, &advice, &examples, &urgent, &notes); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		e.Domain = domain.String
		e.Safety.Urgent = urgent.Bool

		for _, col := range []struct {
			name string
			src  sql.NullString
			dst  *[]string
		}{
			{"symptoms", symptoms, &e.Symptoms},
			{"causes", causes, &e.Causes},
			{"advice", advice, &e.Advice},
			{"examples", examples, &e.Examples},
			{"safety_notes", notes, &e.Safety.Notes},
		} {
			if err := decodeList(col.src, col.dst); err != nil {
				return nil, fmt.Errorf("decode %s for entry %q: %w", col.name, e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset rows: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database handle.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

func decodeList(v sql.NullString, dst *[]string) error {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(v.String), dst)
}
