package kb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
)

// DefaultDebounce coalesces the burst of events editors emit on save.
const DefaultDebounce = 500 * time.Millisecond

// Reloader rebuilds the active snapshot.
type Reloader interface {
	Reload(ctx context.Context) (*Snapshot, error)
}

// Watcher reloads a file-backed dataset whenever the file changes.
type Watcher struct {
	path     string
	debounce time.Duration
	reloader Reloader
	logger   *observability.Logger
	watcher  *fsnotify.Watcher

	// OnReload, when set, observes every reload attempt.
	OnReload func(*Snapshot, error)
}

// NewWatcher watches the directory holding path so atomic renames by editors
// and deploy tools are seen as well as in-place writes.
func NewWatcher(path string, debounce time.Duration, reloader Reloader, logger *observability.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch dataset directory: %w", err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		reloader: reloader,
		logger:   logger.WithOperation("kb_watcher"),
		watcher:  fw,
	}, nil
}

// Run blocks until ctx is done, reloading after each debounced change.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	w.logger.Info().Str("path", w.path).Msg("Watching dataset for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Dataset change detected")
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")

		case <-timer.C:
			snap, err := w.reloader.Reload(ctx)
			if w.OnReload != nil {
				w.OnReload(snap, err)
			}
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
