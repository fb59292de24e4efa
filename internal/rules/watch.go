package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors emit on save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the rules file whenever it changes until ctx is done. A file
// that fails to parse leaves the current table in place. The parent
// directory is watched so rename-on-save editors keep working.
func (r *Responder) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve rules path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			r.reload(abs)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("rules watcher error", "error", err)
		}
	}
}

func (r *Responder) reload(path string) {
	t, err := LoadFile(path)
	if err != nil {
		logger.Warn("rules reload failed, keeping previous table", "path", path, "error", err)
		return
	}
	r.SetTable(t)
	logger.Info("rules reloaded", "path", path, "rules", len(t.Rules))
}
