package kb

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is one fully built, immutable KB: entries plus their lexicon and
// index. Requests capture a snapshot once and never observe a reload midway.
type Snapshot struct {
	ID       string
	Source   string
	LoadedAt time.Time
	Entries  []Entry
	Lexicon  *Lexicon
	Index    *Index

	byID map[string]int
}

// NewSnapshot builds the lexicon and index for entries. The snapshot takes
// ownership of the slice.
func NewSnapshot(entries []Entry, source string) *Snapshot {
	byID := make(map[string]int, len(entries))
	for pos := range entries {
		if _, ok := byID[entries[pos].ID]; !ok {
			byID[entries[pos].ID] = pos
		}
	}
	return &Snapshot{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Entries:  entries,
		Lexicon:  BuildLexicon(entries),
		Index:    BuildIndex(entries),
		byID:     byID,
	}
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.Entries)
}

// At returns the entry at a position.
func (s *Snapshot) At(pos int) *Entry {
	return &s.Entries[pos]
}

// ByID looks up an entry and its position.
func (s *Snapshot) ByID(id string) (*Entry, int, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return nil, -1, false
	}
	return &s.Entries[pos], pos, true
}
