package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the store when the settings file is edited outside the
// application and calls onChange with the fresh settings. It returns a stop
// function. The parent directory is watched rather than the file itself, so
// editors that replace the file atomically are still observed.
func (st *Store) Watch(onChange func(Settings)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create settings watcher: %w", err)
	}

	// On a first run the settings file has never been saved and the
	// parent directory may not exist yet.
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(st.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				st.mu.Lock()
				prev := st.s
				err := st.loadLocked()
				s := st.s
				st.mu.Unlock()

				if err != nil {
					st.logger.Warn("Failed to reload settings after external edit",
						zap.Error(err))
					continue
				}
				// The store's own saves write the in-memory state back
				// out, so a reload that changes nothing is not an
				// external edit.
				if s == prev {
					continue
				}
				if onChange != nil {
					onChange(s)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				st.logger.Warn("Settings watcher error", zap.Error(err))
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}
