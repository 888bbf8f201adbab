// Package kb holds the agriculture knowledge base: validated entries, the
// lexicon and inverted index derived from them, and the store that swaps
// immutable snapshots on reload.
package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultDomain is used when an entry carries no domain tag.
const DefaultDomain = "unknown"

var (
	// ErrUnreadable indicates the dataset source could not be read or parsed.
	ErrUnreadable = errors.New("dataset unreadable")
	// ErrMissingField indicates entries lacking id, specie, season or disease.
	ErrMissingField = errors.New("entry missing required field")
	// ErrDuplicateID indicates two or more entries share an id.
	ErrDuplicateID = errors.New("duplicate entry id")
)

// Safety holds the safety flags of an entry.
type Safety struct {
	Urgent bool     `json:"urgent"`
	Notes  []string `json:"notes"`
}

// Entry is one expert-authored KB record. Entries are never mutated after load.
type Entry struct {
	ID       string   `json:"id"`
	Domain   string   `json:"domain"`
	Specie   string   `json:"specie"`
	Season   string   `json:"season"`
	Disease  string   `json:"disease"`
	Symptoms []string `json:"symptoms"`
	Causes   []string `json:"causes"`
	Advice   []string `json:"advice"`
	Examples []string `json:"examples"`
	Safety   Safety   `json:"safety"`
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Symptoms = cloneStrings(e.Symptoms)
	c.Causes = cloneStrings(e.Causes)
	c.Advice = cloneStrings(e.Advice)
	c.Examples = cloneStrings(e.Examples)
	c.Safety.Notes = cloneStrings(e.Safety.Notes)
	return &c
}

// DatasetError reports a KB that cannot be loaded. It is fatal: no partial KB
// is ever built from a failing source.
type DatasetError struct {
	Source string
	Kind   error
	IDs    []string
	Count  int
	Err    error
}

func (e *DatasetError) Error() string {
	var b strings.Builder
	b.WriteString("dataset ")
	b.WriteString(e.Source)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Count > 0 {
		fmt.Fprintf(&b, " (%d)", e.Count)
	}
	if len(e.IDs) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.IDs, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *DatasetError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// maxReportedIDs caps the id preview in duplicate errors.
const maxReportedIDs = 20

// Load reads entries from src and validates them. Any missing required field
// or duplicated id fails the whole load with a *DatasetError.
func Load(ctx context.Context, src Source) ([]Entry, error) {
	raw, err := src.Load(ctx)
	if err != nil {
		var dsErr *DatasetError
		if errors.As(err, &dsErr) {
			return nil, err
		}
		return nil, &DatasetError{Source: src.Name(), Kind: ErrUnreadable, Err: err}
	}
	entries := make([]Entry, len(raw))
	invalid := 0
	for i := range raw {
		entries[i] = sanitize(raw[i])
		e := &entries[i]
		if e.ID == "" || e.Specie == "" || e.Season == "" || e.Disease == "" {
			invalid++
		}
	}
	if invalid > 0 {
		return nil, &DatasetError{Source: src.Name(), Kind: ErrMissingField, Count: invalid}
	}

	seen := make(map[string]struct{}, len(entries))
	dupSet := make(map[string]struct{})
	for i := range entries {
		id := entries[i].ID
		if _, ok := seen[id]; ok {
			dupSet[id] = struct{}{}
		}
		seen[id] = struct{}{}
	}
	if len(dupSet) > 0 {
		dups := make([]string, 0, len(dupSet))
		for id := range dupSet {
			dups = append(dups, id)
		}
		sort.Strings(dups)
		count := len(dups)
		if len(dups) > maxReportedIDs {
			dups = dups[:maxReportedIDs]
		}
		return nil, &DatasetError{Source: src.Name(), Kind: ErrDuplicateID, IDs: dups, Count: count}
	}

	return entries, nil
}

func sanitize(e Entry) Entry {
	e.ID = strings.TrimSpace(e.ID)
	e.Domain = strings.TrimSpace(e.Domain)
	if e.Domain == "" {
		e.Domain = DefaultDomain
	}
	e.Specie = strings.TrimSpace(e.Specie)
	e.Season = strings.TrimSpace(e.Season)
	e.Disease = strings.TrimSpace(e.Disease)
	return e
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
