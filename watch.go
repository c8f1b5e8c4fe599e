package dtsynth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchFunc receives the outcome of every synthesis Watch performs.
type WatchFunc func(res *Result, err error)

// Watch synthesizes the trace at path, then re-synthesizes whenever the file
// is written or recreated, calling fn each time. Bursts of writes within the
// debounce window produce a single synthesis. Watch blocks until ctx is done
// and then returns nil.
func (e *Engine) Watch(ctx context.Context, path string, fn WatchFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("dtsynth: watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dtsynth: watch: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: tracers and editors often replace the file.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("dtsynth: watch %s: %w", filepath.Dir(abs), err)
	}
	log := e.log.WithField("file", abs)
	log.Info("watching trace")

	if _, err := os.Stat(abs); err == nil {
		e.watchOnce(ctx, abs, fn)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("dtsynth: watch: %w", err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending = time.After(e.debounce)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(werr).Warn("watch error")
		case <-pending:
			pending = nil
			e.watchOnce(ctx, abs, fn)
		}
	}
}

func (e *Engine) watchOnce(ctx context.Context, path string, fn WatchFunc) {
	res, err := e.SynthesizeFile(ctx, path)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		e.log.WithError(err).Warn("synthesis failed")
	}
	fn(res, err)
}
