package build

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/rls-core/internal/rlslog"
)

// Watcher recursively watches a crate root and calls OnManifestChange
// when Cargo.toml, or any file under the build directory, is created,
// written or removed. Grounded on the original FileWatcher
// (internal/indexing/watcher.go): an fsnotify.Watcher recursively added to
// every directory, filtered by doublestar glob exclusions, feeding a
// single debounced callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	exclude  []string
	debounce time.Duration

	mu      sync.Mutex
	pending bool
	timer   *time.Timer

	OnManifestChange func()
}

// NewWatcher creates a Watcher with the given crate_blacklist-style
// doublestar exclude patterns (matched against paths relative to root) and
// debounce window.
func NewWatcher(exclude []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{watcher: fsw, exclude: exclude, debounce: debounce}, nil
}

// Start adds recursive watches under root and begins processing events
// until ctx is canceled.
func (w *Watcher) Start(ctx context.Context, root string) error {
	if err := w.addWatches(root, root); err != nil {
		return err
	}
	go w.run(ctx, root)
	return nil
}

func (w *Watcher) addWatches(root, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if w.shouldIgnore(root, path) {
			continue
		}
		if err := w.addWatches(root, path); err != nil {
			rlslog.Build("watch: skipping %s: %v", path, err)
		}
	}
	return nil
}

func (w *Watcher) shouldIgnore(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, pattern := range w.exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) run(ctx context.Context, root string) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(root, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			rlslog.Build("watch error: %v", err)
		}
	}
}

func (w *Watcher) handle(root string, ev fsnotify.Event) {
	if w.shouldIgnore(root, ev.Name) {
		return
	}
	if filepath.Base(ev.Name) != "Cargo.toml" && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	w.scheduleNotify()
}

// scheduleNotify debounces bursts of events (e.g. an editor's save-as
// temp-file-then-rename) into a single OnManifestChange call.
func (w *Watcher) scheduleNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if w.OnManifestChange != nil {
			w.OnManifestChange()
		}
	})
}
