package pipeline

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/kb"
)

// maxReportedMisses caps EvalReport.Misses.
const maxReportedMisses = 50

// EvalOptions tunes Evaluate.
type EvalOptions struct {
	Workers int // defaults to GOMAXPROCS
	Limit   int // max samples, 0 means all

	// Progress, when set, is called once per finished sample. Calls are
	// serialized and done increases by one each time.
	Progress func(done, total int)
}

// EvalMiss is one example question that resolved to the wrong entry.
type EvalMiss struct {
	Question string  `json:"question"`
	Expected string  `json:"expected"`
	Got      string  `json:"got"`
	Branch   string  `json:"branch"`
	Conf     float64 `json:"confidence"`
}

// EvalReport summarizes an evaluation run.
type EvalReport struct {
	SnapshotID string         `json:"snapshot_id"`
	Samples    int            `json:"samples"`
	Correct    int            `json:"correct"`
	Accuracy   float64        `json:"accuracy"`
	Branches   map[string]int `json:"branches"`
	Misses     []EvalMiss     `json:"misses"`
}

type sample struct {
	question string
	expected string
}

// Evaluate runs every example question of the active snapshot through
// extraction and the hybrid chooser and reports top-1 accuracy against the
// entry the example belongs to. It bypasses the cache and the event sink.
func (s *Service) Evaluate(ctx context.Context, opts EvalOptions) (*EvalReport, error) {
	snap := s.store.Current()
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	samples := collectSamples(snap, opts.Limit)
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	report := &EvalReport{
		SnapshotID: snap.ID,
		Samples:    len(samples),
		Branches:   map[string]int{},
		Misses:     []EvalMiss{},
	}
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, smp := range samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := s.extractor.Extract(smp.question, snap.Lexicon)
			choice := s.chooser.Choose(gctx, f, snap)

			got := ""
			if choice.Entry != nil {
				got = choice.Entry.ID
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(samples))
			}
			report.Branches[choice.Branch.String()]++
			if got == smp.expected {
				report.Correct++
				return nil
			}
			report.Misses = append(report.Misses, EvalMiss{
				Question: smp.question,
				Expected: smp.expected,
				Got:      got,
				Branch:   choice.Branch.String(),
				Conf:     choice.Confidence,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if report.Samples > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.Samples)
	}
	sort.Slice(report.Misses, func(i, j int) bool {
		if report.Misses[i].Expected != report.Misses[j].Expected {
			return report.Misses[i].Expected < report.Misses[j].Expected
		}
		return report.Misses[i].Question < report.Misses[j].Question
	})
	if len(report.Misses) > maxReportedMisses {
		report.Misses = report.Misses[:maxReportedMisses]
	}

	s.logger.WithContext(ctx).Info().
		Str("snapshot_id", snap.ID).
		Int("samples", report.Samples).
		Int("correct", report.Correct).
		Float64("accuracy", report.Accuracy).
		Msg("Evaluation finished")
	return report, nil
}

func collectSamples(snap *kb.Snapshot, limit int) []sample {
	var out []sample
	for _, e := range snap.Entries {
		for _, q := range e.Examples {
			if q == "" {
				continue
			}
			out = append(out, sample{question: q, expected: e.ID})
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}
