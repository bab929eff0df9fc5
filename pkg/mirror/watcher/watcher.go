// Package watcher wakes the sync loop early when the source tree changes.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/mirror/pkg/mirror/filter"
	"github.com/jamesainslie/mirror/pkg/mirror/logging"
)

// Watcher watches a source tree recursively and signals on its trigger
// channel after filesystem events. Signals coalesce: the channel holds at
// most one pending signal.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	filter  *filter.Matcher
	logger  *logging.Logger
	trigger chan struct{}

	paths  map[string]bool
	mu     sync.RWMutex
	closed bool
}

// New creates a Watcher. Entries matched by m are ignored. m may be nil.
func New(logger *logging.Logger, m *filter.Matcher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Watcher{
		watcher: fsw,
		filter:  m,
		logger:  logger.Component("watcher"),
		trigger: make(chan struct{}, 1),
		paths:   make(map[string]bool),
	}, nil
}

// Trigger returns the channel that receives a signal after changes.
func (w *Watcher) Trigger() <-chan struct{} {
	return w.trigger
}

// Watch starts watching root and every folder beneath it.
// Symlinks are not followed to avoid loops.
func (w *Watcher) Watch(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Lstat(absRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	w.mu.Lock()
	w.root = absRoot
	w.mu.Unlock()

	return w.addTree(absRoot)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		if path != dir && w.excluded(path) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

// addWatch adds a single folder to the watch list.
func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("failed to add watch", "path", path, "error", err)
		return err
	}

	w.paths[path] = true
	return nil
}

// Watching reports the number of folders being watched.
func (w *Watcher) Watching() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.paths)
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.excluded(event.Name) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handleRemove(event.Name)
	case event.Op == fsnotify.Chmod:
		return
	}

	w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
	w.notify()
}

// handleCreate watches newly created folders and anything created inside
// them before the watch was in place.
func (w *Watcher) handleCreate(path string) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&fs.ModeSymlink != 0 || !info.IsDir() {
		return
	}
	_ = w.addTree(path)
}

func (w *Watcher) handleRemove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.watcher.Remove(p)
			delete(w.paths, p)
		}
	}
}

// notify performs a non-blocking send so bursts of events collapse into one
// pending signal.
func (w *Watcher) notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) excluded(path string) bool {
	if w.filter == nil {
		return false
	}
	w.mu.RLock()
	root := w.root
	w.mu.RUnlock()

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return w.filter.Excluded(rel)
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	w.paths = make(map[string]bool)
	return w.watcher.Close()
}

// isSubPath checks if path is under parent directory.
func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
