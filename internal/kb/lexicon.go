package kb

import (
	"sort"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/textnorm"
)

// AnySeason is the placeholder season of entries valid all year.
const AnySeason = "bat_ky"

// AliasGroup maps a canonical label to its surface variants. Variants are
// already normalized and tried in order.
type AliasGroup struct {
	Canonical string
	Variants  []string
}

// SpecieAliases is tried in order; the first hit wins, so "bap cai" must be
// checked before the bare "bap" of corn.
var SpecieAliases = []AliasGroup{
	{"heo", []string{"heo", "lon"}},
	{"ga", []string{"ga", "ga ta", "ga cong nghiep"}},
	{"bo", []string{"bo", "bo sua", "bo thit"}},
	{"tom", []string{"tom", "tom the", "tom su"}},
	{"lua", []string{"lua", "ruong lua"}},
	{"tằm", []string{"tam", "tam to", "tam tua"}},
	{"bắp cải", []string{"bap cai", "cai bap"}},
	{"ngô", []string{"ngo", "bap ngo", "bap my", "corn", "maize", "bap"}},
	{"ca chua", []string{"ca chua", "tomato"}},
	{"ot", []string{"ot", "ot hiem"}},
	{"xoai", []string{"xoai", "mango"}},
	{"cam", []string{"cam", "quyt", "citrus"}},
}

// SeasonAliases is tried in order like SpecieAliases.
var SeasonAliases = []AliasGroup{
	{"mua", []string{"mua", "mua mua", "troi mua", "mua lon", "am uot"}},
	{"nang", []string{"nang", "troi nang", "kho", "kho han"}},
	{AnySeason, []string{"bat ky", "quanh nam", "luc nao"}},
}

// Lexicon is the vocabulary derived from one KB snapshot. Read-only.
type Lexicon struct {
	Species       []string
	Seasons       []string
	Diseases      []string
	Symptoms      []string
	SpecieAliases []AliasGroup
	SeasonAliases []AliasGroup

	symptomKeys map[string]struct{}
}

// BuildLexicon collects the sorted unique labels of entries in one pass.
func BuildLexicon(entries []Entry) *Lexicon {
	species := make(map[string]struct{})
	seasons := make(map[string]struct{})
	diseases := make(map[string]struct{})
	symptoms := make(map[string]struct{})

	for i := range entries {
		e := &entries[i]
		addLabel(species, e.Specie)
		addLabel(seasons, e.Season)
		addLabel(diseases, e.Disease)
		for _, s := range e.Symptoms {
			addLabel(symptoms, s)
		}
	}

	lex := &Lexicon{
		Species:       sortedKeys(species),
		Seasons:       sortedKeys(seasons),
		Diseases:      sortedKeys(diseases),
		Symptoms:      sortedKeys(symptoms),
		SpecieAliases: SpecieAliases,
		SeasonAliases: SeasonAliases,
		symptomKeys:   make(map[string]struct{}, len(symptoms)),
	}
	for _, s := range lex.Symptoms {
		if k := textnorm.Normalize(s); k != "" {
			lex.symptomKeys[k] = struct{}{}
		}
	}
	return lex
}

// ResolveSpecie maps a canonical alias key back to the dataset label that
// normalizes to it, or returns the key itself.
func (l *Lexicon) ResolveSpecie(canonical string) string {
	return resolve(l.Species, canonical)
}

// ResolveSeason is ResolveSpecie for seasons.
func (l *Lexicon) ResolveSeason(canonical string) string {
	return resolve(l.Seasons, canonical)
}

// ResolveSymptom maps a symptom phrase to the dataset label with the same
// normalized form, or returns it unchanged.
func (l *Lexicon) ResolveSymptom(symptom string) string {
	return resolve(l.Symptoms, symptom)
}

// HasSymptom reports whether a symptom with the same normalized form exists.
func (l *Lexicon) HasSymptom(symptom string) bool {
	_, ok := l.symptomKeys[textnorm.Normalize(symptom)]
	return ok
}

func resolve(labels []string, canonical string) string {
	key := textnorm.Normalize(canonical)
	for _, label := range labels {
		if textnorm.Normalize(label) == key {
			return label
		}
	}
	return canonical
}

func addLabel(set map[string]struct{}, s string) {
	if s != "" {
		set[s] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
