package pipeline

import (
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/hybrid"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/rules"
)

// Result is the full answer for one question. Entry is a copy of KB data, so
// a Result can be cached and handed out without exposing the snapshot.
type Result struct {
	Question     string             `json:"question"`
	Extracted    extract.Fields     `json:"extracted"`
	Entry        *kb.Entry          `json:"matched"`
	Confidence   float64            `json:"confidence"`
	Prediction   *hybrid.Prediction `json:"prediction"`
	Branch       hybrid.Branch      `json:"branch"`
	Decision     rules.Decision     `json:"rules"`
	NextQuestion string             `json:"next_question"`
	SnapshotID   string             `json:"snapshot_id"`
}

// MatchedID returns the matched entry id or "".
func (r *Result) MatchedID() string {
	if r == nil || r.Entry == nil {
		return ""
	}
	return r.Entry.ID
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Extracted = r.Extracted.Clone()
	c.Entry = r.Entry.Clone()
	if r.Prediction != nil {
		p := *r.Prediction
		c.Prediction = &p
	}
	c.Decision = r.Decision.Clone()
	return &c
}

// MatchView is the introspection output of MatchOnly.
type MatchView struct {
	Extracted  extract.Fields `json:"extracted"`
	Entry      *kb.Entry      `json:"matched"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	Scored     int            `json:"scored"`
	FullScan   bool           `json:"full_scan"`
	SnapshotID string         `json:"snapshot_id"`
}
