package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the bundle whenever its files change on disk. A reload
// that fails is logged and the previous bundle stays in use.
type Watcher struct {
	store    *Store
	onReload func(*Bundle)
	onError  func(error)
	debounce time.Duration
	logger   *zap.Logger
	lastRun  string
}

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithErrorHandler is called with every failed reload.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithCurrentRun sets the run id already being served, so an identical
// bundle is not handed over again.
func WithCurrentRun(runID string) WatcherOption {
	return func(w *Watcher) { w.lastRun = runID }
}

func NewWatcher(store *Store, onReload func(*Bundle), logger *zap.Logger, opts ...WatcherOption) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		store:    store,
		onReload: onReload,
		debounce: 500 * time.Millisecond,
		logger:   logger,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.store.Dir(), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.store.Dir(), err)
	}
	w.logger.Info("watching model artifacts", zap.String("dir", w.store.Dir()))

	watched := make(map[string]struct{}, 4)
	for _, name := range Files() {
		watched[name] = struct{}{}
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if _, ok := watched[filepath.Base(event.Name)]; !ok {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("artifact watcher error", zap.Error(err))
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	bundle, err := w.store.Load()
	if err != nil {
		w.logger.Warn("model bundle reload failed, keeping current bundle", zap.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	if bundle.RunID == w.lastRun {
		return
	}
	w.lastRun = bundle.RunID
	w.logger.Info("model bundle reloaded", zap.String("run_id", bundle.RunID))
	w.onReload(bundle)
}
