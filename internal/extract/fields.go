// Package extract pulls structured facts (species, season, disease, symptoms)
// out of a free-text question using the KB lexicon.
package extract

// Domain hints.
const (
	DomainAquaculture = "aquaculture"
	DomainLivestock   = "livestock"
	DomainCrop        = "crop"
)

// Fields is what the extractor found in one question. Empty strings mean
// "not found".
type Fields struct {
	Question   string   `json:"question"`
	DomainHint string   `json:"domain_hint,omitempty"`
	Specie     string   `json:"specie,omitempty"`
	Season     string   `json:"season,omitempty"`
	Disease    string   `json:"disease,omitempty"`
	Symptoms   []string `json:"symptoms"`
}

// HasStrongSignal reports whether a disease or any symptom was extracted.
func (f Fields) HasStrongSignal() bool {
	return f.Disease != "" || len(f.Symptoms) > 0
}

// Clone returns a deep copy.
func (f Fields) Clone() Fields {
	if f.Symptoms != nil {
		s := make([]string, len(f.Symptoms))
		copy(s, f.Symptoms)
		f.Symptoms = s
	}
	return f
}
