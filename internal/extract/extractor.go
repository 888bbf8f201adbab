package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/textnorm"
)

// Defaults for Options.
const (
	DefaultFuzzyThreshold  = 0.88
	DefaultMinSymptomRunes = 3
)

// pigContext accepts "lon" as pig (lợn) only right after a herding word.
// Accent stripping folds "lớn" (big) onto the same token, as in "mua lon".
var pigContext = regexp.MustCompile(`(?:^|[^\p{L}\p{M}\p{N}_])(?:con|dan|nuoi|chuong)\s+lon(?:[^\p{L}\p{M}\p{N}_]|$)`)

// vomitContext accepts a bare "oi" as vomiting (ói) only after a verb or
// adverb. Accent stripping folds the vocative "ơi" onto the same token, as in
// "anh oi".
var vomitContext = regexp.MustCompile(`(?:^|[^\p{L}\p{M}\p{N}_])(?:bi|hay|de|dang|đang|van|da|đa|lai|cu|muon)\s+oi(?:[^\p{L}\p{M}\p{N}_]|$)`)

type domainCues struct {
	domain string
	cues   []string
}

// A tie between buckets yields no hint, so bucket order never decides.
var domainBuckets = []domainCues{
	{DomainAquaculture, []string{"ao", "nuoi ca", "ca", "tom", "nuoi tom", "phan trang"}},
	{DomainLivestock, []string{"con vat", "vat nuoi", "gia suc", "gia cam", "chuong", "thuc an", "tieu chay", "sot"}},
	{DomainCrop, []string{"cay", "la", "than", "re", "ruong", "vun", "trai", "qua"}},
}

type symptomPattern struct {
	canonical string
	variants  []string
}

// symptomPatterns map common phrasings onto one canonical symptom. The
// canonical form is emitted only when the dataset knows it.
var symptomPatterns = []symptomPattern{
	{"nôn ói", []string{"non oi", "oi mua"}},
	{"đau bụng", []string{"dau bung", "đau bung", "dau quan", "đau quan", "quan quai"}},
	{"kén ăn", []string{"ken an"}},
	{"bỏ ăn", []string{"bo an", "chan an", "khong an", "giam an"}},
	{"chướng bụng", []string{"chuong bung", "bung chuong", "day hoi", "đay hoi"}},
	{"phân sâu trong nõn", []string{"phan sau trong non", "trong non co phan sau", "phan sau o non"}},
	{"nõn bị rách", []string{"non bi rach", "rach non", "an non", "sau an non"}},
}

// symptomContexts holds extra matchers for canonicals whose short variant is
// too ambiguous to match on its own.
var symptomContexts = map[string]*regexp.Regexp{
	"nôn ói": vomitContext,
}

// Options tunes the extractor.
type Options struct {
	FuzzyThreshold  float64
	MinSymptomRunes int
}

// Extractor is stateless and safe for concurrent use.
type Extractor struct {
	opts Options
}

// New creates an extractor, filling zero options with defaults.
func New(opts Options) *Extractor {
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if opts.MinSymptomRunes <= 0 {
		opts.MinSymptomRunes = DefaultMinSymptomRunes
	}
	return &Extractor{opts: opts}
}

// Extract never fails; fields it cannot find stay empty.
func (x *Extractor) Extract(question string, lex *kb.Lexicon) Fields {
	q := textnorm.Normalize(question)
	f := Fields{
		Question:   question,
		DomainHint: DomainHint(q),
		Symptoms:   []string{},
	}
	if q == "" || lex == nil {
		return f
	}

	f.Specie = x.specie(q, lex)
	f.Season = x.season(q, lex)
	f.Disease = x.disease(q, lex)
	f.Symptoms = x.symptoms(q, lex)
	return f
}

// DomainHint counts boundary-safe cue hits per bucket over normalized text.
// The bucket with the most hits wins; ties and zero hits yield "".
func DomainHint(q string) string {
	if q == "" {
		return ""
	}
	best, bestHits, tied := "", 0, false
	for _, b := range domainBuckets {
		hits := 0
		for _, cue := range b.cues {
			if textnorm.HasTerm(q, cue) {
				hits++
			}
		}
		switch {
		case hits > bestHits:
			best, bestHits, tied = b.domain, hits, false
		case hits == bestHits && hits > 0:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}

func (x *Extractor) specie(q string, lex *kb.Lexicon) string {
	for _, g := range lex.SpecieAliases {
		for _, v := range g.Variants {
			var hit bool
			if g.Canonical == "heo" && v == "lon" {
				hit = pigContext.MatchString(q)
			} else {
				hit = textnorm.HasTerm(q, v)
			}
			if hit {
				return lex.ResolveSpecie(g.Canonical)
			}
		}
	}
	s, _ := textnorm.FirstMatch(q, lex.Species)
	return s
}

func (x *Extractor) season(q string, lex *kb.Lexicon) string {
	for _, g := range lex.SeasonAliases {
		for _, v := range g.Variants {
			if textnorm.HasTerm(q, v) {
				return lex.ResolveSeason(g.Canonical)
			}
		}
	}

	anySeason := textnorm.Normalize(kb.AnySeason)
	for _, s := range lex.Seasons {
		if textnorm.Normalize(s) == anySeason {
			continue
		}
		if textnorm.HasTerm(q, s) {
			return s
		}
	}
	return ""
}

func (x *Extractor) disease(q string, lex *kb.Lexicon) string {
	if d, ok := textnorm.FirstMatch(q, lex.Diseases); ok {
		return d
	}

	best, bestRatio := "", 0.0
	for _, d := range lex.Diseases {
		dn := textnorm.Normalize(d)
		if dn == "" {
			continue
		}
		if strings.Contains(q, dn) {
			return d
		}
		if r := textnorm.Ratio(q, dn); r > bestRatio {
			best, bestRatio = d, r
		}
	}
	if best != "" && bestRatio >= x.opts.FuzzyThreshold {
		return best
	}
	return ""
}

type symptomHit struct {
	label  string
	offset int
	order  int
}

// symptoms returns hits ordered by where they first appear in the question;
// vocabulary order breaks ties.
func (x *Extractor) symptoms(q string, lex *kb.Lexicon) []string {
	var hits []symptomHit

	for i, s := range lex.Symptoms {
		sn := textnorm.Normalize(s)
		if utf8.RuneCountInString(sn) < x.opts.MinSymptomRunes {
			continue
		}
		var at int
		if strings.Contains(sn, " ") {
			at = strings.Index(q, sn)
		} else {
			at = textnorm.TermIndex(q, sn)
		}
		if at >= 0 {
			hits = append(hits, symptomHit{label: s, offset: at, order: i})
		}
	}

	base := len(lex.Symptoms)
	for i, p := range symptomPatterns {
		if !lex.HasSymptom(p.canonical) {
			continue
		}
		at := -1
		for _, v := range p.variants {
			if j := textnorm.TermIndex(q, v); j >= 0 && (at < 0 || j < at) {
				at = j
			}
		}
		if re, ok := symptomContexts[p.canonical]; ok {
			if loc := re.FindStringIndex(q); loc != nil && (at < 0 || loc[0] < at) {
				at = loc[0]
			}
		}
		if at >= 0 {
			hits = append(hits, symptomHit{label: lex.ResolveSymptom(p.canonical), offset: at, order: base + i})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].offset != hits[b].offset {
			return hits[a].offset < hits[b].offset
		}
		return hits[a].order < hits[b].order
	})

	out := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		key := textnorm.Normalize(h.label)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h.label)
	}
	return out
}
