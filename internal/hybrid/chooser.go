// Package hybrid reconciles the rule-based KB match with an optional external
// classifier that predicts an entry id straight from the question text.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/match"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
)

// ErrMalformedPrediction marks a prediction without id or with a probability
// outside [0, 1].
var ErrMalformedPrediction = errors.New("malformed prediction")

// Defaults for Thresholds and the predictor deadline.
const (
	DefaultMinExternalProbability = 0.45
	DefaultMaxRuleConfidence      = 0.45
	DefaultPredictTimeout         = 2 * time.Second
)

// Prediction is the classifier's best guess for a question.
type Prediction struct {
	EntryID     string  `json:"id"`
	Probability float64 `json:"prob"`
	Model       string  `json:"model,omitempty"`
}

// Predictor is the external classifier port. Implementations should honour
// ctx cancellation.
type Predictor interface {
	Predict(ctx context.Context, question string) (*Prediction, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, question string) (*Prediction, error)

// Predict calls f.
func (f PredictorFunc) Predict(ctx context.Context, question string) (*Prediction, error) {
	return f(ctx, question)
}

// Branch tags which signal decided the final entry.
type Branch int

const (
	// BranchRule keeps the rule match because nothing better was offered.
	BranchRule Branch = iota
	// BranchStrongRule keeps the rule match because a disease or symptom was extracted.
	BranchStrongRule
	// BranchExternal takes the classifier's entry over a weak rule match.
	BranchExternal
)

func (b Branch) String() string {
	switch b {
	case BranchStrongRule:
		return "strong_rule"
	case BranchExternal:
		return "external"
	default:
		return "rule"
	}
}

// MarshalText encodes the branch by name.
func (b Branch) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Thresholds gate the external branch.
type Thresholds struct {
	MinExternalProbability float64
	MaxRuleConfidence      float64
}

// DefaultThresholds returns the calibrated thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinExternalProbability: DefaultMinExternalProbability,
		MaxRuleConfidence:      DefaultMaxRuleConfidence,
	}
}

// Signals are the inputs of the decision table.
type Signals struct {
	StrongRule     bool
	RuleConfidence float64
	Prediction     *Prediction
	KnownEntry     bool
}

// Decide applies the priority chain: a strong rule signal always wins, then a
// confident prediction of a known entry beats a weak rule match, otherwise
// the rule match stands.
func Decide(s Signals, th Thresholds) Branch {
	switch {
	case s.StrongRule:
		return BranchStrongRule
	case s.Prediction != nil && s.KnownEntry &&
		s.Prediction.Probability >= th.MinExternalProbability &&
		s.RuleConfidence < th.MaxRuleConfidence:
		return BranchExternal
	default:
		return BranchRule
	}
}

// Choice is the chooser's output.
type Choice struct {
	Branch     Branch
	Entry      *kb.Entry
	Confidence float64
	Rule       match.Result
	Prediction *Prediction
	// PredictErr records why no prediction was available; it is never fatal.
	PredictErr error
}

// Config holds chooser settings.
type Config struct {
	Thresholds     Thresholds
	PredictTimeout time.Duration
}

// Chooser runs the indexed matcher and the predictor, then applies Decide.
type Chooser struct {
	matcher   *match.Matcher
	predictor Predictor
	cfg       Config
	logger    *observability.Logger
}

// NewChooser creates a chooser. predictor may be nil.
func NewChooser(matcher *match.Matcher, predictor Predictor, cfg Config, logger *observability.Logger) *Chooser {
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = DefaultPredictTimeout
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Chooser{
		matcher:   matcher,
		predictor: predictor,
		cfg:       cfg,
		logger:    logger.WithOperation("hybrid_choose"),
	}
}

// Choose picks the final entry and confidence for a question.
func (c *Chooser) Choose(ctx context.Context, f extract.Fields, snap *kb.Snapshot) Choice {
	rule := c.matcher.Indexed(f, snap)
	pred, err := c.predict(ctx, f.Question)
	if err != nil {
		c.logger.WithContext(ctx).Warn().Err(err).Msg("External prediction unavailable, using rule match")
	}

	var predicted *kb.Entry
	if pred != nil && snap != nil {
		predicted, _, _ = snap.ByID(pred.EntryID)
	}

	branch := Decide(Signals{
		StrongRule:     f.HasStrongSignal(),
		RuleConfidence: rule.Confidence,
		Prediction:     pred,
		KnownEntry:     predicted != nil,
	}, c.cfg.Thresholds)

	choice := Choice{
		Branch:     branch,
		Entry:      rule.Entry,
		Confidence: rule.Confidence,
		Rule:       rule,
		Prediction: pred,
		PredictErr: err,
	}
	if branch == BranchExternal {
		choice.Entry = predicted
		choice.Confidence = math.Max(rule.Confidence, pred.Probability)
	}

	c.logger.WithContext(ctx).Debug().
		Str("branch", branch.String()).
		Str("rule_entry", rule.EntryID()).
		Float64("rule_confidence", rule.Confidence).
		Float64("confidence", choice.Confidence).
		Msg("Hybrid choice")
	return choice
}

// predict calls the predictor under its deadline. Any failure, including a
// timeout, means "no prediction".
func (c *Chooser) predict(ctx context.Context, question string) (*Prediction, error) {
	if c.predictor == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PredictTimeout)
	defer cancel()

	pred, err := c.predictor.Predict(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if pred == nil {
		return nil, nil
	}
	if pred.EntryID == "" || math.IsNaN(pred.Probability) || pred.Probability < 0 || pred.Probability > 1 {
		return nil, fmt.Errorf("%w: id=%q prob=%v", ErrMalformedPrediction, pred.EntryID, pred.Probability)
	}
	return pred, nil
}
