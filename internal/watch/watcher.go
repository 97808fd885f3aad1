// Package watch follows a status file written by reporter.FileSink and
// hands every new snapshot to a callback.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	serrors "git.home.luguber.info/inful/syncd/internal/errors"
	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

const defaultDebounce = 50 * time.Millisecond

// StatusWatcher monitors a status file and reports each change.
type StatusWatcher struct {
	path     string
	handler  func(reporter.Snapshot)
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// Option customizes a StatusWatcher.
type Option func(*StatusWatcher)

// WithDebounce coalesces changes arriving within d into one read.
func WithDebounce(d time.Duration) Option {
	return func(w *StatusWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewStatusWatcher creates a watcher for the status file at path.
func NewStatusWatcher(path string, handler func(reporter.Snapshot), opts ...Option) (*StatusWatcher, error) {
	if handler == nil {
		return nil, serrors.InternalError("watch handler is required", nil)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve status path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &StatusWatcher{
		path:     absPath,
		handler:  handler,
		watcher:  watcher,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run reports the current snapshot, if any, and then every change until
// ctx is cancelled. The handler runs on the caller's goroutine. Run may be
// called once.
func (w *StatusWatcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	// The directory survives the sink's rename-into-place; the file inode does not.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return serrors.IOError("watch", dir, err)
	}
	slog.Info("Watching status file", logfields.Path(w.path))

	w.emit()

	statusFile := filepath.Base(w.path)
	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != statusFile {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				slog.Warn("Status file removed", logfields.Path(event.Name))
			}
		case <-fire:
			w.emit()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Status watcher error", logfields.Error(err))
		}
	}
}

func (w *StatusWatcher) emit() {
	snap, err := reporter.ReadSnapshotFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Status file not present yet", logfields.Path(w.path))
			return
		}
		slog.Warn("Failed to read status file", logfields.Path(w.path), logfields.Error(err))
		return
	}
	w.handler(snap)
}
