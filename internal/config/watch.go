package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// settle coalesces the burst of events editors produce on save.
const settle = 100 * time.Millisecond

// Watch calls onChange after path is written or replaced, until ctx is
// done. The parent directory is watched so that atomic saves are seen.
func Watch(ctx context.Context, path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	log.Debug("fsnotify watching dir", "dir", dir)

	go func() {
		defer w.Close() //nolint:errcheck

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				pending = time.After(settle)
			case <-pending:
				pending = nil
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Debug("fsnotify error", "dir", dir, "error", err)
			}
		}
	}()
	return nil
}
