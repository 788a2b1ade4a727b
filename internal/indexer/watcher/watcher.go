// Package watcher reloads the index when a new snapshot manifest appears on
// disk. Snapshot writers rename the manifest into place last, so a manifest
// event means every artifact it names is already written.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc is called once per burst of manifest events.
type ReloadFunc func(ctx context.Context) error

// ManifestWatcher watches the directory holding a snapshot manifest.
type ManifestWatcher struct {
	watcher  *fsnotify.Watcher
	manifest string
	debounce time.Duration
	reload   ReloadFunc
	logger   *slog.Logger
}

// New watches manifestPath's directory. debounce <= 0 selects
// DefaultDebounce.
func New(manifestPath string, debounce time.Duration, reload ReloadFunc) (*ManifestWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(manifestPath)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &ManifestWatcher{
		watcher:  w,
		manifest: filepath.Clean(manifestPath),
		debounce: debounce,
		reload:   reload,
		logger:   slog.Default().With("component", "snapshot-watcher", "manifest", manifestPath),
	}, nil
}

// Run dispatches reloads until ctx is cancelled, then closes the watcher.
// Reload errors are logged; the previous index stays installed.
func (mw *ManifestWatcher) Run(ctx context.Context) error {
	defer mw.watcher.Close()
	mw.logger.Info("snapshot watcher started")

	timer := time.NewTimer(mw.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			mw.logger.Info("snapshot watcher stopping", "reason", ctx.Err())
			return nil
		case ev, ok := <-mw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != mw.manifest {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			mw.logger.Debug("manifest event", "op", ev.Op.String())
			timer.Reset(mw.debounce)
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return nil
			}
			mw.logger.Error("watch error", "error", err)
		case <-timer.C:
			if err := mw.reload(ctx); err != nil {
				mw.logger.Error("snapshot reload failed", "error", err)
				continue
			}
			mw.logger.Info("snapshot reloaded")
		}
	}
}
