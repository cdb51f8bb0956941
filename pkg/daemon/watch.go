package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay lets a burst of writes settle before reloading.
const debounceDelay = 250 * time.Millisecond

// WatchFiles submits ReloadConfigAndCss whenever one of files changes. The
// parent directories are watched, so editors that replace files by rename
// are noticed too. Watching stops when ctx is done.
func WatchFiles(ctx context.Context, queue *Queue, logger *slog.Logger, files ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	watched := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch %q: %w", dir, err)
		}
	}

	go func() {
		defer w.Close()

		var debounceTimer *time.Timer
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if _, ok := watched[filepath.Clean(ev.Name)]; !ok {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Debug("config file changed", "path", ev.Name, "op", ev.Op.String())

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, func() {
					reloadFromWatcher(queue, logger)
				})

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("config watcher failed", "error", err)

			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			}
		}
	}()
	return nil
}

func reloadFromWatcher(queue *Queue, logger *slog.Logger) {
	reply, replies := NewReply()
	if !queue.Submit(ReloadConfigAndCss{Reply: reply}) {
		return
	}
	go func() {
		select {
		case resp := <-replies:
			if resp.OK {
				logger.Info("configuration reloaded")
			} else {
				logger.Warn("configuration reload failed", "error", resp.Text)
			}
		case <-time.After(DefaultReplyTimeout):
		}
	}()
}
