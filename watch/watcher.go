// Package watch re-runs generation whenever lexicon source files change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/logger"
)

// RegenerateFunc is called after a debounced batch of file changes.
type RegenerateFunc func(ctx context.Context) error

// Watcher watches a lexicon directory tree and triggers regeneration on
// changes to .json files. Rapid change bursts collapse into one run.
type Watcher struct {
	rootDir        string
	watcher        *fsnotify.Watcher
	regenerate     RegenerateFunc
	mu             sync.Mutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
}

// New creates a watcher over rootDir and every subdirectory beneath it.
func New(rootDir string, regenerate RegenerateFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	// fsnotify does not recurse, so every directory is added explicitly.
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watching directory tree %s", rootDir)
	}

	return &Watcher{
		rootDir:        rootDir,
		watcher:        fsw,
		regenerate:     regenerate,
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// Run processes events until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	logger.Infow("watching for lexicon changes",
		logger.FieldDir, w.rootDir,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("watcher error",
				logger.FieldError, err,
			)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories need watches of their own.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				logger.Warnw("failed to watch new directory",
					logger.FieldDir, event.Name,
					logger.FieldError, err,
				)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".json") {
		return
	}

	logger.Debugw("lexicon change detected",
		logger.FieldFile, event.Name,
		"op", event.Op.String(),
	)
	w.scheduleRegenerate(ctx)
}

// scheduleRegenerate debounces rapid file changes into a single run.
func (w *Watcher) scheduleRegenerate(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := w.regenerate(ctx); err != nil {
			// Keep watching: a transient parse error while the user is
			// mid-edit resolves on the next save.
			logger.Errorw("regeneration failed",
				logger.FieldError, err,
			)
			return
		}
		logger.Infow("regenerated",
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	})
}
