// Package watcher reports content changes of a fixed set of scripts.
package watcher

import (
	"devcrawl/internal/shared/observability"
	"devcrawl/internal/shared/util"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

// Watcher follows individual script files. Their directories are watched
// non-recursively, so atomic saves (write to temp, rename over) are seen.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeFiles *util.PathMatcher
	onChange     func([]string)
	callbackMu   sync.Mutex

	tracked  map[string]bool
	hashes   map[string]uint64
	hashesMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
}

// NewWatcher builds a watcher that calls onChange with the paths whose
// content changed during one debounce window. excludeFiles are globs
// matched against the full path or the base name.
func NewWatcher(debounce time.Duration, excludeFiles []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledFiles, err := util.CompilePathPatterns(excludeFiles, '/')
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		excludeFiles: compiledFiles,
		onChange:     onChange,
		tracked:      make(map[string]bool),
		hashes:       make(map[string]uint64),
		pending:      make(map[string]time.Time),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch starts following files. Their current content is the baseline, so
// only later edits are reported.
func (w *Watcher) Watch(files []string) error {
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		if w.shouldExcludeFile(abs) {
			continue
		}
		w.tracked[abs] = true
		if sum, ok := hashFile(abs); ok {
			w.hashes[abs] = sum
		}
		dirs[filepath.Dir(abs)] = true
	}

	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

// Tracked returns the followed files in sorted order.
func (w *Watcher) Tracked() []string {
	out := make([]string, 0, len(w.tracked))
	for path := range w.tracked {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			path := filepath.Clean(event.Name)
			if !w.tracked[path] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(path)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	candidates := make([]string, 0, len(w.pending))
	for path := range w.pending {
		candidates = append(candidates, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	sort.Strings(candidates)
	paths := candidates[:0]
	for _, path := range candidates {
		if w.contentChanged(path) {
			paths = append(paths, path)
		}
	}

	if len(paths) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(paths)
	}
}

// contentChanged updates the stored hash of path. A file that disappeared
// counts as changed once.
func (w *Watcher) contentChanged(path string) bool {
	w.hashesMu.Lock()
	defer w.hashesMu.Unlock()

	prev, known := w.hashes[path]
	sum, ok := hashFile(path)
	if !ok {
		delete(w.hashes, path)
		return known
	}
	w.hashes[path] = sum
	return !known || prev != sum
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	return w.excludeFiles.Match(path)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func hashFile(path string) (uint64, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return xxhash.Sum64(content), true
}
