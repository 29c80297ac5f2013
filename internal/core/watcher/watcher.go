// Package watcher reports package result directories whose manifest appears or changes
// under a result root.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"yarasynth/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	manifestName string
	excludeDirs  []glob.Glob
	onChange     func([]string)
	callbackMu   sync.Mutex

	root      string
	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
}

// NewWatcher returns a watcher calling onChange with the package directories whose manifest
// was created or rewritten, at most once per debounce window.
func NewWatcher(debounce time.Duration, manifestName string, excludeDirs []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || manifestName == "" {
		return nil, os.ErrInvalid
	}

	compiledDirs := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		manifestName: manifestName,
		excludeDirs:  compiledDirs,
		onChange:     onChange,
		pending:      make(map[string]time.Time),
	}, nil
}

// Watch watches root and every package directory directly below it.
func (w *Watcher) Watch(root string) error {
	w.root = filepath.Clean(root)
	if err := w.fsWatcher.Add(w.root); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(w.root, e.Name())
		if w.shouldExcludeDir(dir) {
			continue
		}
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	parent := filepath.Dir(event.Name)

	if parent == w.root && event.Op&fsnotify.Create == fsnotify.Create {
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() || w.shouldExcludeDir(event.Name) {
			return
		}
		if err := w.fsWatcher.Add(event.Name); err != nil {
			slog.Warn("failed to watch new package directory", "dir", event.Name, "error", err)
			return
		}
		// The manifest may have been written before the watch was registered.
		if w.hasManifest(event.Name) {
			w.scheduleChange(event.Name)
		}
		return
	}

	if filepath.Dir(parent) != w.root || filepath.Base(event.Name) != w.manifestName {
		return
	}
	if event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Create == fsnotify.Create {
		w.scheduleChange(parent)
	}
}

func (w *Watcher) hasManifest(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, w.manifestName))
	return err == nil && info.Mode().IsRegular()
}

func (w *Watcher) scheduleChange(dir string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[dir] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	dirs := make([]string, 0, len(w.pending))
	for dir := range w.pending {
		dirs = append(dirs, dir)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(dirs) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(dirs)
	}
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
