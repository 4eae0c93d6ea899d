package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors a manifest file and invokes onChange with each successfully
// re-parsed manifest. Write bursts from editors are debounced; a manifest
// that fails to parse is logged and skipped, keeping the last good topology
// in effect. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Manifest)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	logger.Info("Watching manifest", "path", path)

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	reload := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Manifest read failed, keeping previous topology", "path", path, "error", err)
			return
		}
		m, err := ParseManifest(data)
		if err != nil {
			logger.Warn("Manifest parse failed, keeping previous topology", "path", path, "error", err)
			return
		}
		logger.Info("Manifest reloaded", "path", path, "components", len(m.Components))
		onChange(m)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Manifest watcher error", "error", err)

		case <-timerC:
			reload()
		}
	}
}
