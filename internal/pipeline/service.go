// Package pipeline runs question → extract → match → hybrid choice → rules,
// memoized per KB snapshot.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/cache"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/events"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/hybrid"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/match"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/metrics"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/rules"
)

// ErrNoSnapshot is returned before the first successful dataset load.
var ErrNoSnapshot = errors.New("no knowledge base loaded")

// Options wires the service collaborators. Nil fields take defaults; a nil
// Cache disables memoization and a nil Sink drops events.
type Options struct {
	Extractor *extract.Extractor
	Matcher   *match.Matcher
	Chooser   *hybrid.Chooser
	Rules     *rules.Engine
	Cache     *cache.ResultCache[*Result]
	Sink      events.Sink
	Metrics   *metrics.Metrics
	Logger    *observability.Logger
}

// Service answers questions against the store's active snapshot.
type Service struct {
	store     *kb.Store
	extractor *extract.Extractor
	matcher   *match.Matcher
	chooser   *hybrid.Chooser
	rules     *rules.Engine
	cache     *cache.ResultCache[*Result]
	sink      events.Sink
	metrics   *metrics.Metrics
	logger    *observability.Logger
	now       func() time.Time
}

// New creates a service over store. Every snapshot swap purges the cache.
func New(store *kb.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = observability.DefaultLogger()
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New(extract.Options{})
	}
	if opts.Matcher == nil {
		opts.Matcher = match.New(match.DefaultMaxCandidates)
	}
	if opts.Chooser == nil {
		opts.Chooser = hybrid.NewChooser(opts.Matcher, nil, hybrid.Config{}, opts.Logger)
	}
	if opts.Rules == nil {
		opts.Rules = rules.New(rules.Thresholds{})
	}
	if opts.Sink == nil {
		opts.Sink = events.NopSink{}
	}

	s := &Service{
		store:     store,
		extractor: opts.Extractor,
		matcher:   opts.Matcher,
		chooser:   opts.Chooser,
		rules:     opts.Rules,
		cache:     opts.Cache,
		sink:      opts.Sink,
		metrics:   opts.Metrics,
		logger:    opts.Logger.WithOperation("pipeline"),
		now:       time.Now,
	}
	if s.cache != nil {
		store.OnSwap(func(_, _ *kb.Snapshot) { s.cache.Purge() })
	}
	if snap := store.Current(); snap != nil {
		s.metrics.SetSnapshotEntries(snap.Len())
	}
	return s
}

// Snapshot returns the active snapshot, or nil before the first load.
func (s *Service) Snapshot() *kb.Snapshot {
	return s.store.Current()
}

// CacheStats reports result cache usage; ok is false when caching is off.
func (s *Service) CacheStats() (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(), true
}

// Run answers question. The returned Result belongs to the caller.
func (s *Service) Run(ctx context.Context, question string) (*Result, error) {
	snap := s.store.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	key := cache.Key{SnapshotID: snap.ID, Question: question}
	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			s.metrics.ObserveRequest(true)
			return res, nil
		}
	}
	s.metrics.ObserveRequest(false)

	start := s.now()
	res, choice := s.compute(ctx, question, snap)
	took := s.now().Sub(start)

	// A degraded answer is not cached so the next call retries the predictor.
	if s.cache != nil && choice.PredictErr == nil && ctx.Err() == nil {
		s.cache.Add(key, res)
	}
	s.metrics.ObserveResult(res.Branch.String(), res.Confidence, choice.PredictErr != nil, took)
	s.emit(ctx, res)

	s.logger.WithContext(ctx).Debug().
		Str("snapshot_id", snap.ID).
		Str("matched_id", res.MatchedID()).
		Str("branch", res.Branch.String()).
		Float64("confidence", res.Confidence).
		Bool("allow_answer", res.Decision.AllowAnswer).
		Dur("duration", took).
		Msg("Question answered")
	return res, nil
}

func (s *Service) compute(ctx context.Context, question string, snap *kb.Snapshot) (*Result, hybrid.Choice) {
	f := s.extractor.Extract(question, snap.Lexicon)
	choice := s.chooser.Choose(ctx, f, snap)

	decision := s.rules.Decide(f, choice.Entry, choice.Confidence)
	next := s.rules.SuggestNextQuestion(f, choice.Entry, choice.Confidence)

	if f.Disease == "" && choice.Entry != nil && decision.AllowAnswer {
		f.Disease = choice.Entry.Disease
	}

	return &Result{
		Question:     question,
		Extracted:    f,
		Entry:        choice.Entry.Clone(),
		Confidence:   choice.Confidence,
		Prediction:   choice.Prediction,
		Branch:       choice.Branch,
		Decision:     decision,
		NextQuestion: next,
		SnapshotID:   snap.ID,
	}, choice
}

// emit records res on the event sink. Sink failures never reach the caller.
func (s *Service) emit(ctx context.Context, res *Result) {
	ev := events.Event{
		Timestamp:   s.now().UTC(),
		Question:    res.Question,
		Extracted:   res.Extracted.Clone(),
		MatchedID:   res.MatchedID(),
		Confidence:  res.Confidence,
		Prediction:  res.Prediction,
		Branch:      res.Branch.String(),
		AllowAnswer: res.Decision.AllowAnswer,
		SnapshotID:  res.SnapshotID,
		RequestID:   observability.RequestIDFromContext(ctx),
	}
	if err := s.sink.Emit(ctx, ev); err != nil {
		s.logger.WithContext(ctx).Warn().Err(err).Msg("Failed to emit pipeline event")
	}
}

// ExtractOnly runs the extractor alone.
func (s *Service) ExtractOnly(question string) (extract.Fields, error) {
	snap := s.store.Current()
	if snap == nil {
		return extract.Fields{}, ErrNoSnapshot
	}
	return s.extractor.Extract(question, snap.Lexicon), nil
}

// MatchOnly runs extraction and the indexed matcher, without the predictor,
// rules or cache.
func (s *Service) MatchOnly(question string) (*MatchView, error) {
	snap := s.store.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	f := s.extractor.Extract(question, snap.Lexicon)
	m := s.matcher.Indexed(f, snap)
	return &MatchView{
		Extracted:  f,
		Entry:      m.Entry.Clone(),
		Score:      m.Score,
		Confidence: m.Confidence,
		Scored:     m.Scored,
		FullScan:   m.FullScan,
		SnapshotID: snap.ID,
	}, nil
}

// Reload reloads the dataset. On failure the active snapshot and cache stay.
func (s *Service) Reload(ctx context.Context) (*kb.Snapshot, error) {
	snap, err := s.store.Reload(ctx)
	if err != nil {
		s.metrics.ObserveReload(0, err)
		return nil, err
	}
	s.metrics.ObserveReload(snap.Len(), nil)
	return snap, nil
}

// Close closes the event sink and the dataset source.
func (s *Service) Close() error {
	return errors.Join(s.sink.Close(), s.store.Close())
}
