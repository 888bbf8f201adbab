package kb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
)

// Store owns the active snapshot. Readers never lock; a reload builds a new
// snapshot and swaps the pointer.
type Store struct {
	src    Source
	logger *observability.Logger

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []func(prev, next *Snapshot)
}

// NewStore creates an empty store reading from src.
func NewStore(src Source, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Store{
		src:    src,
		logger: logger.WithOperation("kb_store"),
	}
}

// Open creates a store and performs the initial load.
func Open(ctx context.Context, src Source, logger *observability.Logger) (*Store, error) {
	s := NewStore(src, logger)
	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active snapshot, or nil before the first load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// OnSwap registers fn to run after every swap.
func (s *Store) OnSwap(fn func(prev, next *Snapshot)) {
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

// Reload loads the source and swaps in a fresh snapshot. On failure the
// active snapshot is left untouched.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	entries, err := Load(ctx, s.src)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("source", s.src.Name()).
			Msg("Dataset reload failed, keeping active snapshot")
		return nil, err
	}

	snap := NewSnapshot(entries, s.src.Name())
	s.Swap(snap)

	s.logger.Info().
		Str("snapshot_id", snap.ID).
		Str("source", snap.Source).
		Int("entries", snap.Len()).
		Int("tokens", len(snap.Index.Postings)).
		Dur("duration", time.Since(start)).
		Msg("Dataset loaded")
	return snap, nil
}

// Swap installs snap directly and returns the previous snapshot.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	prev := s.current.Swap(snap)

	s.hooksMu.RLock()
	hooks := s.hooks
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(prev, snap)
	}
	return prev
}

// Close releases the source.
func (s *Store) Close() error {
	return s.src.Close()
}
