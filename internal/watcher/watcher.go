// Package watcher re-runs an action whenever a watched source file changes.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Watch is given a non-positive debounce.
const DefaultDebounce = 300 * time.Millisecond

// Action is run after a burst of changes has settled. Errors are logged and
// do not stop the watcher.
type Action func(ctx context.Context) error

// Watch watches the directory containing file and calls fn once per burst of
// writes, creates or renames that touch file. Watching the directory rather
// than the file keeps working when editors replace the file by rename.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, file string, debounce time.Duration, logger *slog.Logger, fn Action) error {
	if file == "" {
		return errors.New("watcher: no file to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("file", abs))

	// timer debounces bursts of events into one run.
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				logger.Warn("watcher: action failed", slog.String("file", abs), slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: change", slog.String("file", abs), slog.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
