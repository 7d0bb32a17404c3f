// Package watch re-runs the validation engine when the content tree changes.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quire/internal/engine"
	"github.com/starford/quire/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// DefaultDebounce is the quiet period before a re-run.
const DefaultDebounce = 200 * time.Millisecond

// EventCallback is called for every content file change.
// kind is one of "created", "updated", "deleted"; path is root-relative.
type EventCallback func(kind string, path string)

// RunCallback receives every fresh engine result.
type RunCallback func(res *engine.Result)

// Options configure Watch.
type Options struct {
	Debounce time.Duration
	OnEvent  EventCallback
	OnRun    RunCallback
}

// Watch runs eng once, then starts an fsnotify watcher on root and re-runs
// eng after each burst of content changes until ctx is cancelled.
//
// New directories created at runtime are added to the watch list unless the
// scan filter skips them. Failed runs are logged and watching continues.
func Watch(ctx context.Context, eng *engine.Engine, root string, logger *slog.Logger, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	filter := eng.Scanner().Filter()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root, root, filter); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	run := func() {
		res, err := eng.Run(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("watcher: run failed", slog.String("error", err.Error()))
			}
			return
		}
		if opts.OnRun != nil {
			opts.OnRun(res)
		}
	}
	run()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			run()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if filter.SkipDir(rel) {
						continue
					}
					if addErr := addDirsRecursive(w, root, ev.Name, filter); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", rel),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", rel))
					}
					schedule()
					continue
				}
			}

			if !filter.Include(rel) {
				continue
			}

			var kind string
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = KindCreated
			case ev.Op&fsnotify.Write != 0:
				kind = KindUpdated
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a separate Create.
				kind = KindDeleted
			default:
				continue
			}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			if opts.OnEvent != nil {
				opts.OnEvent(kind, rel)
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds dir and its subdirectories to the watcher, skipping
// the directories the filter rejects. Filter paths are relative to root.
func addDirsRecursive(w *fsnotify.Watcher, root, dir string, flt storage.Filter) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel != "." && flt.SkipDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
