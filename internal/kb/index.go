package kb

import (
	"sort"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/textnorm"
)

// Index is the inverted token index of one snapshot. Positions refer to the
// snapshot's entry slice and are ascending within each posting list.
type Index struct {
	Postings    map[string][]int
	EntryTokens [][]string
	Urgent      []int
	Normalized  []NormalizedEntry
}

// NormalizedEntry caches the normalized comparison keys of an entry.
type NormalizedEntry struct {
	Domain   string
	Specie   string
	Season   string
	Disease  string
	Symptoms map[string]struct{}
}

// Normalize computes the comparison keys of e.
func Normalize(e *Entry) NormalizedEntry {
	n := NormalizedEntry{
		Domain:   textnorm.Normalize(e.Domain),
		Specie:   textnorm.Normalize(e.Specie),
		Season:   textnorm.Normalize(e.Season),
		Disease:  textnorm.Normalize(e.Disease),
		Symptoms: make(map[string]struct{}, len(e.Symptoms)),
	}
	for _, s := range e.Symptoms {
		if k := textnorm.Normalize(s); k != "" {
			n.Symptoms[k] = struct{}{}
		}
	}
	return n
}

// BuildIndex tokenizes the normalized domain, specie, season, disease and
// symptoms of each entry and inverts them. An entry without tokens keeps an
// empty slot and is only reachable by a full scan.
func BuildIndex(entries []Entry) *Index {
	idx := &Index{
		Postings:    make(map[string][]int),
		EntryTokens: make([][]string, len(entries)),
		Normalized:  make([]NormalizedEntry, len(entries)),
	}

	for pos := range entries {
		e := &entries[pos]
		idx.Normalized[pos] = Normalize(e)
		set := make(map[string]struct{})
		for _, field := range []string{e.Domain, e.Specie, e.Season, e.Disease} {
			addTokens(set, field)
		}
		for _, s := range e.Symptoms {
			addTokens(set, s)
		}

		tokens := make([]string, 0, len(set))
		for t := range set {
			tokens = append(tokens, t)
		}
		sort.Strings(tokens)
		idx.EntryTokens[pos] = tokens

		for _, t := range tokens {
			idx.Postings[t] = append(idx.Postings[t], pos)
		}
		if e.Safety.Urgent {
			idx.Urgent = append(idx.Urgent, pos)
		}
	}
	return idx
}

// Lookup returns the posting list of a normalized token.
func (x *Index) Lookup(token string) []int {
	return x.Postings[token]
}

func addTokens(set map[string]struct{}, field string) {
	for _, t := range textnorm.Tokenize(textnorm.Normalize(field)) {
		set[t] = struct{}{}
	}
}
