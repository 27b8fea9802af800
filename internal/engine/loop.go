package engine

// loop.go - Cooperative polling loop around Run

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/faults"
)

// Poll runs complete cycles separated by the configured interval until
// ctx is cancelled. A new file landing in the inbox wakes the loop
// early. When once is true a single cycle runs and Poll returns its
// report. Cycles never overlap; a cycle that cannot take the lock is
// logged and retried at the next wakeup, except a stale lock, which
// needs an operator and stops the loop.
func (e *Engine) Poll(ctx context.Context, once bool) (*RunReport, error) {
	if once {
		return e.Run(ctx)
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if werr := watcher.Add(e.store.Path(drive.FolderInbox)); werr != nil {
			e.logger.Warn("inbox watch unavailable, relying on interval only", "error", werr)
		}
		defer watcher.Close()
	} else {
		e.logger.Warn("filesystem watcher unavailable, relying on interval only", "error", err)
		watcher = nil
	}

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()

	var last *RunReport
	for {
		report, err := e.Run(ctx)
		switch {
		case err == nil:
			last = report
		case faults.ClassOf(err) == faults.ClassLockStale:
			return last, err
		case faults.ClassOf(err) == faults.ClassLockHeld:
			e.logger.Warn("run lock held elsewhere, will retry", "error", err)
		default:
			e.logger.Error("cycle failed", "error", err)
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-ticker.C:
				break wait
			case ev, ok := <-events(watcher):
				if !ok {
					watcher = nil
					continue
				}
				if wakesLoop(ev) {
					e.logger.Debug("inbox changed, waking early", "file", ev.Name)
					break wait
				}
			}
		}
	}
}

// events tolerates a nil watcher so the select above stays simple.
func events(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

// wakesLoop reports whether an inbox event should trigger a cycle.
// Only new or rewritten files matter, and editor temp files are noise.
func wakesLoop(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return !strings.HasSuffix(ev.Name, "~") && !strings.HasSuffix(ev.Name, ".tmp")
}
