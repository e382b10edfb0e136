package platform

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports writes to the registry documents in the storage
// directory as registry update events.
//
// The platform replaces its storage files by writing a temporary file and
// renaming it into place, so the directory is watched rather than the
// files themselves.
type Watcher struct {
	dir    string
	files  map[string]struct{}
	logger Logger
}

// NewWatcher creates a watcher for the storage documents in dir.
func NewWatcher(dir string, logger Logger) *Watcher {
	if logger == nil {
		logger = noopLogger{}
	}
	files := make(map[string]struct{}, len(StorageFiles))
	for _, f := range StorageFiles {
		files[f] = struct{}{}
	}
	return &Watcher{dir: dir, files: files, logger: logger}
}

// Run watches until ctx is cancelled, calling emit for each relevant write.
// Bursts are not coalesced here; the trigger debounces them.
//
// Returns nil on cancellation, or an error if watching cannot start.
func (w *Watcher) Run(ctx context.Context, emit func(RegistryEvent)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching platform storage", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev, relevant := w.translate(event); relevant {
				w.logger.Debug("storage document changed", "file", filepath.Base(event.Name), "op", event.Op.String())
				emit(ev)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("storage watcher error", "error", err)
		}
	}
}

// translate maps a filesystem event to a registry event.
func (w *Watcher) translate(event fsnotify.Event) (RegistryEvent, bool) {
	if _, ok := w.files[filepath.Base(event.Name)]; !ok {
		return RegistryEvent{}, false
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return RegistryEvent{}, false
	}
	return RegistryEvent{Action: ActionUpdate, Source: SourceStorage}, true
}
