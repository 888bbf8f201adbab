package pipeline

import (
	"context"
	"fmt"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/cache"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/classifier"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/config"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/events"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/extract"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/hybrid"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/match"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/metrics"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/rules"
)

// Build opens the dataset and assembles a service from cfg. m may be nil.
// SQL drivers must be registered by the calling binary.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *observability.Logger) (*Service, error) {
	if logger == nil {
		logger = observability.DefaultLogger()
	}

	src, err := kb.OpenSource(cfg.Dataset.Source, cfg.Dataset.Table)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	store, err := kb.Open(ctx, src, logger)
	if err != nil {
		_ = src.Close()
		if m != nil {
			m.ObserveReload(0, err)
		}
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	var predictor hybrid.Predictor
	if cfg.Classifier.Enabled {
		client, err := classifier.NewClient(classifier.Config{
			Endpoint: cfg.Classifier.Endpoint,
			APIKey:   cfg.Classifier.APIKey,
			Timeout:  cfg.Classifier.Timeout,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("create classifier client: %w", err)
		}
		predictor = client
		logger.Info().Str("endpoint", cfg.Classifier.Endpoint).Msg("External classifier enabled")
	}

	sink, err := events.New(events.Config{
		Driver:  cfg.Events.Driver,
		Path:    cfg.Events.Path,
		Channel: cfg.Events.Channel,
		Redis: events.RedisConfig{
			Addr:     cfg.Events.Redis.Addr,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			PoolSize: cfg.Events.Redis.PoolSize,
			Prefix:   cfg.Events.Redis.Prefix,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create event sink: %w", err)
	}

	var results *cache.ResultCache[*Result]
	if cfg.Cache.Enabled {
		results, err = cache.New(cfg.Cache.MaxEntries, (*Result).Clone)
		if err != nil {
			_ = sink.Close()
			_ = store.Close()
			return nil, fmt.Errorf("create result cache: %w", err)
		}
	}

	matcher := match.New(cfg.Matching.MaxCandidates)
	return New(store, Options{
		Extractor: extract.New(extract.Options{
			FuzzyThreshold:  cfg.Extraction.FuzzyThreshold,
			MinSymptomRunes: cfg.Extraction.MinSymptomRunes,
		}),
		Matcher: matcher,
		Chooser: hybrid.NewChooser(matcher, predictor, hybrid.Config{
			Thresholds: hybrid.Thresholds{
				MinExternalProbability: cfg.Hybrid.MinExternalProbability,
				MaxRuleConfidence:      cfg.Hybrid.MaxRuleConfidence,
			},
			PredictTimeout: cfg.Hybrid.PredictTimeout,
		}, logger),
		Rules: rules.New(rules.Thresholds{
			ClarifyBelow:  cfg.Rules.ClarifyBelow,
			FollowUpBelow: cfg.Rules.FollowUpBelow,
		}),
		Cache:   results,
		Sink:    sink,
		Metrics: m,
		Logger:  logger,
	}), nil
}
