// Package watcher turns filesystem notifications under the gallery's
// directories into debounced batches of added and removed media paths.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/camden-git/mediacatalog/logger"
	"github.com/camden-git/mediacatalog/media"
)

const DefaultDebounce = 2 * time.Second

// Batch lists media paths that appeared or disappeared during one debounce
// window. Both lists are sorted and free of duplicates.
type Batch struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

func (b Batch) Empty() bool {
	return len(b.Added) == 0 && len(b.Removed) == 0
}

// Handler receives non-empty batches on the watcher's goroutine.
type Handler func(Batch)

// Watcher watches a set of directory trees. It can be restarted with a new
// set of paths; Stop is safe at any time, including before Start.
type Watcher struct {
	debounce time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	paths   []string
	stop    chan struct{}
	done    chan struct{}
	lastErr error
}

func New(debounce time.Duration, log *logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Watcher{debounce: debounce, log: log}
}

// Start replaces any running watch with one over paths. Paths that are not
// existing directories are skipped. An empty list just stops watching.
func (w *Watcher) Start(paths []string, handler Handler) error {
	if err := w.Stop(); err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	watched := make([]string, 0, len(paths))
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := addTree(fsw, root); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		watched = append(watched, root)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.paths = watched
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.lastErr = nil
	stop, done := w.stop, w.done
	w.mu.Unlock()

	go w.loop(fsw, handler, stop, done)
	w.log.Info(w.log.WithField(context.Background(), "directories", len(watched)), "file watcher started")
	return nil
}

// Stop ends the current watch and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fsw, stop, done := w.fsw, w.stop, w.done
	w.fsw, w.stop, w.done, w.paths = nil, nil, nil, nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	close(stop)
	<-done
	if err := fsw.Close(); err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	w.log.Info(context.Background(), "file watcher stopped")
	return nil
}

// WatchedPaths returns the roots currently being watched.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.paths)
}

// Running reports whether a watch is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsw != nil
}

// Err returns the error that ended the last watch, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, handler Handler, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.collect(fsw, event, pending)
			timer.Reset(w.debounce)

		case <-timer.C:
			batch := classify(pending)
			clear(pending)
			if !batch.Empty() && handler != nil {
				handler(batch)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.fail(fsw, err)
			return
		}
	}
}

// fail records a watch error and detaches the watcher. The caller's
// goroutine exits right after, so Stop only has to close it.
func (w *Watcher) fail(fsw *fsnotify.Watcher, err error) {
	w.log.Warn(w.log.WithField(context.Background(), "error", err.Error()), "file watcher failed, stopping")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastErr = err
	if w.fsw == fsw {
		w.fsw, w.stop, w.done, w.paths = nil, nil, nil, nil
		go fsw.Close()
	}
}

func (w *Watcher) collect(fsw *fsnotify.Watcher, event fsnotify.Event, pending map[string]struct{}) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files can land in a new directory before it is watched.
			if err := addTree(fsw, event.Name); err != nil {
				w.log.Warn(w.log.WithField(context.Background(), "path", event.Name), "failed to watch new directory")
			}
			_ = filepath.WalkDir(event.Name, func(path string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && media.IsSupported(path) {
					pending[path] = struct{}{}
				}
				return nil
			})
			return
		}
	}
	if media.IsSupported(event.Name) {
		pending[event.Name] = struct{}{}
	}
}

// classify splits pending paths by whether they exist now.
func classify(pending map[string]struct{}) Batch {
	batch := Batch{Added: []string{}, Removed: []string{}}
	for path := range pending {
		if _, err := os.Stat(path); err == nil {
			batch.Added = append(batch.Added, path)
		} else if errors.Is(err, fs.ErrNotExist) {
			batch.Removed = append(batch.Removed, path)
		}
	}
	slices.Sort(batch.Added)
	slices.Sort(batch.Removed)
	return batch
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}
