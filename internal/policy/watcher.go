package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/sweep/internal/logger"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the policy file when it changes on disk.
type Watcher struct {
	reloader *Reloader
	logger   logger.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the reloader's file.
func NewWatcher(reloader *Reloader, log logger.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		reloader: reloader,
		logger:   log,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than the
// file so that atomic rename-on-save (and ConfigMap symlink swaps) are seen.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(w.reloader.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watcher = fw

	w.logger.Info("policy file watcher started",
		logger.String("file", w.reloader.Path()),
		logger.Duration("debounce", w.debounce))

	go w.loop(ctx)
	return nil
}

// Stop ends the watch loop and releases the watcher.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
		return
	default:
		close(w.stopCh)
	}

	if w.watcher == nil {
		return
	}
	<-w.doneCh

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("failed to close policy watcher", logger.Error(err))
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	base := filepath.Base(w.reloader.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Kubernetes ConfigMaps swap a ..data symlink instead of the file.
			if name := filepath.Base(event.Name); name != base && name != "..data" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("policy file event",
				logger.String("path", event.Name),
				logger.String("op", event.Op.String()))
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("policy watcher error", logger.Error(err))
		}
	}
}

// schedule (re)arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reloader.Reload(); err != nil {
			w.logger.Error("policy reload failed, keeping previous policy",
				logger.String("file", w.reloader.Path()),
				logger.Error(err))
		}
	})
}
