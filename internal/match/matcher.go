// Package match ranks KB entries against extracted question fields, either by
// a full scan or by pruning candidates through the inverted index.
package match

import (
	"math"
	"sort"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/textnorm"
)

// Scoring weights. These are calibrated heuristics; changing them shifts every
// confidence threshold downstream.
const (
	WeightDomain     = 1.0
	WeightSpecie     = 3.0
	WeightSeason     = 2.0
	WeightDisease    = 4.0
	WeightSymptom    = 1.0
	MaxSymptomScore  = 3.0
	UrgentAlarmBonus = 0.5
	ConfidenceScale  = 10.0
)

// DefaultMaxCandidates bounds how many indexed candidates are scored.
const DefaultMaxCandidates = 800

// AlarmWords raise urgent entries slightly when the question sounds severe.
var AlarmWords = []string{"chet", "kho tho", "ra mau", "soc", "ngat"}

// Result is the outcome of one match.
type Result struct {
	Entry      *kb.Entry `json:"-"`
	Position   int       `json:"position"`
	Score      float64   `json:"score"`
	Confidence float64   `json:"confidence"`
	Scored     int       `json:"scored"`
	FullScan   bool      `json:"full_scan"`
}

// EntryID returns the matched id or "".
func (r Result) EntryID() string {
	if r.Entry == nil {
		return ""
	}
	return r.Entry.ID
}

// query holds the normalized view of extracted fields.
type query struct {
	domain   string
	specie   string
	season   string
	disease  string
	symptoms []string
	alarm    bool
}

func newQuery(f extract.Fields) query {
	q := query{
		domain:   textnorm.Normalize(f.DomainHint),
		specie:   textnorm.Normalize(f.Specie),
		season:   textnorm.Normalize(f.Season),
		disease:  textnorm.Normalize(f.Disease),
		symptoms: make([]string, 0, len(f.Symptoms)),
		alarm:    HasAlarm(textnorm.Normalize(f.Question)),
	}
	for _, s := range f.Symptoms {
		q.symptoms = append(q.symptoms, textnorm.Normalize(s))
	}
	return q
}

// HasAlarm reports whether normalized text contains an alarm word.
func HasAlarm(normalized string) bool {
	for _, w := range AlarmWords {
		if textnorm.HasTerm(normalized, w) {
			return true
		}
	}
	return false
}

// Score computes the weighted match score of one entry.
func Score(f extract.Fields, e *kb.Entry) float64 {
	n := kb.Normalize(e)
	return score(newQuery(f), &n, e.Safety.Urgent)
}

func score(q query, n *kb.NormalizedEntry, urgent bool) float64 {
	var s float64
	if q.domain != "" && q.domain == n.Domain {
		s += WeightDomain
	}
	if q.specie != "" && q.specie == n.Specie {
		s += WeightSpecie
	}
	if q.season != "" && q.season == n.Season {
		s += WeightSeason
	}
	if q.disease != "" && q.disease == n.Disease {
		s += WeightDisease
	}
	if len(q.symptoms) > 0 {
		overlap := 0
		for _, sym := range q.symptoms {
			if _, ok := n.Symptoms[sym]; ok {
				overlap++
			}
		}
		s += math.Min(MaxSymptomScore, float64(overlap)*WeightSymptom)
	}
	if urgent && q.alarm {
		s += UrgentAlarmBonus
	}
	return s
}

// Confidence maps a raw score onto [0, 1].
func Confidence(score float64) float64 {
	return math.Max(0, math.Min(1, score/ConfidenceScale))
}

// Matcher ranks entries of a snapshot. Safe for concurrent use.
type Matcher struct {
	maxCandidates int
}

// New creates a matcher scoring at most maxCandidates indexed candidates.
func New(maxCandidates int) *Matcher {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Matcher{maxCandidates: maxCandidates}
}

// Full scans every entry and keeps the first one with the highest score.
// A non-empty KB always yields an entry, however low its score.
func (m *Matcher) Full(f extract.Fields, snap *kb.Snapshot) Result {
	return m.full(newQuery(f), snap)
}

func (m *Matcher) full(q query, snap *kb.Snapshot) Result {
	res := Result{Position: -1, FullScan: true}
	if snap == nil || snap.Len() == 0 {
		return res
	}

	best := -1.0
	for pos := range snap.Entries {
		s := score(q, &snap.Index.Normalized[pos], snap.Entries[pos].Safety.Urgent)
		if s > best {
			best = s
			res.Position = pos
		}
	}
	res.Entry = snap.At(res.Position)
	res.Score = best
	res.Confidence = Confidence(best)
	res.Scored = snap.Len()
	return res
}

type candidate struct {
	pos  int
	hits int
}

// Indexed scores only entries sharing tokens with the question and its
// extracted fields. With no index hit, or when no candidate scores above
// zero, it degrades to Full so both paths agree on the winner.
func (m *Matcher) Indexed(f extract.Fields, snap *kb.Snapshot) Result {
	q := newQuery(f)
	if snap == nil || snap.Len() == 0 {
		return m.full(q, snap)
	}

	hits := make(map[int]int)
	for t := range queryTokens(f) {
		for _, pos := range snap.Index.Lookup(t) {
			hits[pos]++
		}
	}
	if len(hits) == 0 {
		return m.full(q, snap)
	}

	cands := make([]candidate, 0, len(hits))
	for pos, n := range hits {
		cands = append(cands, candidate{pos: pos, hits: n})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].hits != cands[j].hits {
			return cands[i].hits > cands[j].hits
		}
		return cands[i].pos < cands[j].pos
	})
	if len(cands) > m.maxCandidates {
		cands = cands[:m.maxCandidates]
	}
	if q.alarm {
		cands = appendUrgent(cands, snap.Index.Urgent)
	}

	res := Result{Position: -1, Score: -1}
	for _, c := range cands {
		s := score(q, &snap.Index.Normalized[c.pos], snap.Entries[c.pos].Safety.Urgent)
		if s > res.Score || (s == res.Score && c.pos < res.Position) {
			res.Score = s
			res.Position = c.pos
		}
	}
	if res.Score <= 0 {
		return m.full(q, snap)
	}

	res.Entry = snap.At(res.Position)
	res.Confidence = Confidence(res.Score)
	res.Scored = len(cands)
	return res
}

func appendUrgent(cands []candidate, urgent []int) []candidate {
	if len(urgent) == 0 {
		return cands
	}
	seen := make(map[int]struct{}, len(cands))
	for _, c := range cands {
		seen[c.pos] = struct{}{}
	}
	for _, pos := range urgent {
		if _, ok := seen[pos]; !ok {
			cands = append(cands, candidate{pos: pos})
		}
	}
	return cands
}

func queryTokens(f extract.Fields) map[string]struct{} {
	set := make(map[string]struct{})
	add := func(s string) {
		for _, t := range textnorm.Tokenize(textnorm.Normalize(s)) {
			set[t] = struct{}{}
		}
	}
	add(f.Question)
	add(f.DomainHint)
	add(f.Specie)
	add(f.Season)
	add(f.Disease)
	for _, s := range f.Symptoms {
		add(s)
	}
	return set
}
