// Package rules decides whether an answer may be given for a match and which
// safety warnings and follow-up question go with it. All text is either a
// fixed template or copied from the matched KB entry.
package rules

import (
	"strings"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
)

// Actions.
const (
	ActionAskClarify        = "ask_clarify"
	ActionContactSpecialist = "contact_specialist"
)

// Warning and question templates.
const (
	WarningClarify = "Chưa đủ thông tin để kết luận. Cần hỏi thêm loài/mùa/triệu chứng cụ thể."
	WarningUrgent  = "Dấu hiệu có thể nghiêm trọng. Nên theo dõi sát và liên hệ chuyên gia/thú y/kỹ thuật địa phương nếu nặng."

	QuestionSeverity   = "Bạn cho mình biết tình trạng kéo dài bao lâu và mức độ nặng/nhẹ (có sốt, bỏ ăn, chết rải rác không)?"
	QuestionPrevention = "Bạn muốn mình hướng dẫn phòng ngừa tái phát và cách theo dõi tiếp theo không?"

	missingSpecie   = "loài/cây nuôi–trồng"
	missingSeason   = "mùa/thời tiết gần đây"
	missingSymptoms = "triệu chứng cụ thể"
)

// Defaults for Thresholds.
const (
	DefaultClarifyBelow  = 0.35
	DefaultFollowUpBelow = 0.65
)

// Decision is the rule engine's verdict.
type Decision struct {
	AllowAnswer bool     `json:"allow_answer"`
	Warnings    []string `json:"warnings"`
	Actions     []string `json:"actions"`
}

// Clone returns a deep copy.
func (d Decision) Clone() Decision {
	d.Warnings = cloneStrings(d.Warnings)
	d.Actions = cloneStrings(d.Actions)
	return d
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Thresholds tune the engine.
type Thresholds struct {
	ClarifyBelow  float64
	FollowUpBelow float64
}

// Engine is stateless.
type Engine struct {
	th Thresholds
}

// New creates an engine; zero thresholds take the defaults.
func New(th Thresholds) *Engine {
	if th.ClarifyBelow <= 0 {
		th.ClarifyBelow = DefaultClarifyBelow
	}
	if th.FollowUpBelow <= 0 {
		th.FollowUpBelow = DefaultFollowUpBelow
	}
	return &Engine{th: th}
}

// Decide is a flat decision: clarification and urgency are evaluated
// independently.
func (e *Engine) Decide(_ extract.Fields, entry *kb.Entry, confidence float64) Decision {
	d := Decision{AllowAnswer: true, Warnings: []string{}, Actions: []string{}}

	if entry == nil || confidence < e.th.ClarifyBelow {
		d.AllowAnswer = false
		d.Actions = append(d.Actions, ActionAskClarify)
		d.Warnings = append(d.Warnings, WarningClarify)
	}

	if entry != nil && entry.Safety.Urgent {
		d.Warnings = append(d.Warnings, WarningUrgent)
		for _, note := range entry.Safety.Notes {
			if strings.TrimSpace(note) != "" {
				d.Warnings = append(d.Warnings, note)
			}
		}
		d.Actions = append(d.Actions, ActionContactSpecialist)
	}

	return d
}

// SuggestNextQuestion asks for whatever the question lacked, then for
// severity when the match is uncertain, else offers prevention guidance.
func (e *Engine) SuggestNextQuestion(f extract.Fields, entry *kb.Entry, confidence float64) string {
	var missing []string
	if f.Specie == "" {
		missing = append(missing, missingSpecie)
	}
	if f.Season == "" {
		missing = append(missing, missingSeason)
	}
	if len(f.Symptoms) == 0 {
		missing = append(missing, missingSymptoms)
	}
	if len(missing) > 0 {
		return "Bạn cho mình xin thêm " + strings.Join(missing, ", ") + " nhé?"
	}

	if entry != nil && confidence < e.th.FollowUpBelow {
		return QuestionSeverity
	}
	return QuestionPrevention
}
