// Package watcher reports settled batches of filesystem changes under a
// directory tree, so a list can be verified again whenever the files it
// describes change.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/verifier/pkg/verifier/logging"
	"github.com/jamesainslie/verifier/pkg/verifier/manifest"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the tree must stay quiet before a batch is delivered.
	Debounce time.Duration

	// Filter selects the paths that matter. Nil accepts every path.
	Filter func(path string) bool

	// Logger receives watch errors. Nil uses logging.Get("watcher").
	Logger *logging.Logger
}

// Watcher watches directories recursively. Symlinks are not followed.
type Watcher struct {
	fsw    *fsnotify.Watcher
	opts   Options
	log    *logging.Logger
	mu     sync.Mutex
	paths  map[string]bool
	closed bool
}

// New creates a Watcher.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = logging.Get("watcher")
	}
	return &Watcher{fsw: fsw, opts: opts, log: log, paths: make(map[string]bool)}, nil
}

// Watch adds root and every directory below it.
func (w *Watcher) Watch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.add(filepath.Dir(abs))
	}
	return w.addTree(abs)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable directories are skipped
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.IsDir() {
			return nil
		}
		return w.add(path)
	})
}

func (w *Watcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		w.log.Warn("failed to add watch", "path", path, "error", err)
		return err
	}
	w.paths[path] = true
	return nil
}

// Watched returns the watched directories, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Run delivers changed paths to onBatch once no event has arrived for the
// debounce period. Paths in a batch are unique and sorted. Run blocks until
// ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onBatch func(paths []string)) {
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.handle(ev) {
				pending[ev.Name] = struct{}{}
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			slices.Sort(batch)
			onBatch(batch)
		}
	}
}

// handle keeps the watch set in step with the tree and reports whether the
// event belongs in the next batch.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() && info.Mode()&fs.ModeSymlink == 0 {
			_ = w.addTree(ev.Name)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
	case ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write):
		return false
	}
	return w.opts.Filter == nil || w.opts.Filter(ev.Name)
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.paths {
		if p == path || isSubPath(p, path) {
			_ = w.fsw.Remove(p)
			delete(w.paths, p)
		}
	}
}

// Close stops watching and ends Run.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	clear(w.paths)
	return w.fsw.Close()
}

// ManifestFilter accepts the list file itself and every file it lists,
// resolved against base.
func ManifestFilter(m *manifest.Manifest, base string) func(string) bool {
	wanted := make(map[string]struct{}, len(m.Entries)+1)
	if m.SourcePath != "" {
		if abs, err := filepath.Abs(m.SourcePath); err == nil {
			wanted[abs] = struct{}{}
		}
	}
	for _, e := range m.Entries {
		name := filepath.FromSlash(strings.ReplaceAll(e.Name, `\`, "/"))
		if !filepath.IsAbs(name) {
			name = filepath.Join(base, name)
		}
		wanted[filepath.Clean(name)] = struct{}{}
	}
	return func(path string) bool {
		_, ok := wanted[filepath.Clean(path)]
		return ok
	}
}

func isSubPath(path, parent string) bool {
	return len(path) > len(parent) && path[:len(parent)+1] == parent+string(filepath.Separator)
}
