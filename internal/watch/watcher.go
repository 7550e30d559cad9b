// Package watch monitors a project tree and re-runs the index build
// after bursts of file changes settle. The mtime fingerprints make the
// cache self-invalidating, so the watcher only has to trigger
// EnsureReady; deciding what actually changed is the coordinator's job.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gmtooling/gmscope/internal/build"
	"github.com/gmtooling/gmscope/internal/cache"
	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/internal/scan"
)

// DefaultDebounce is the settle time between a file event burst and the
// rebuild it triggers.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a project watcher.
type Options struct {
	// Debounce is the quiet period required before a rebuild fires.
	// Zero or negative selects DefaultDebounce.
	Debounce time.Duration

	// Exclude holds doublestar patterns, relative to the watched root,
	// whose matches never trigger rebuilds and whose directories are
	// not watched.
	Exclude []string

	// OnResult, when set, receives the outcome of every triggered
	// rebuild. Without it failures are only logged.
	OnResult func(*build.Result, error)
}

// Watcher owns an fsnotify watcher over a single project root and a
// debounced rebuild loop driving a build.Coordinator.
type Watcher struct {
	coordinator *build.Coordinator
	root        string
	debounce    time.Duration
	exclude     []string
	onResult    func(*build.Result, error)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	rebuilds atomic.Int64
}

// New creates a watcher for root. Start must be called before any
// events are observed.
func New(coordinator *build.Coordinator, root string, opts Options) (*Watcher, error) {
	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		coordinator: coordinator,
		root:        resolved,
		debounce:    debounce,
		exclude:     opts.Exclude,
		onResult:    opts.OnResult,
		fsw:         fsw,
		pending:     make(map[string]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start adds watches for every directory under the root and begins
// processing events.
func (w *Watcher) Start() error {
	debug.LogWatch("watching %s (debounce %s)\n", w.root, w.debounce)

	if err := w.addWatches(w.root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop cancels the event loop, closes the underlying watcher and waits
// for the loop to exit. Events pending at shutdown are dropped; the
// next explicit build picks the changes up through the fingerprints.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// Flush triggers the rebuild for any pending events immediately
// instead of waiting out the debounce period.
func (w *Watcher) Flush() {
	w.rebuild()
}

// Pending returns the number of changed paths awaiting a rebuild.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Rebuilds returns how many rebuilds the watcher has triggered.
func (w *Watcher) Rebuilds() int64 {
	return w.rebuilds.Load()
}

// addWatches recursively watches every directory under root, skipping
// ignored ones. Symlink cycles are broken by tracking resolved paths.
func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if path != root && w.shouldIgnoreDir(path) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			debug.LogWatch("cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

// run owns the debounce timer. Everything that mutates watches or
// triggers rebuilds happens on this goroutine, so Stop only has to
// wait for it.
func (w *Watcher) run() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.handleEvent(event) {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatch("watcher error: %v\n", err)

		case <-timer.C:
			w.rebuild()
		}
	}
}

// handleEvent records a single file system event. It reports whether
// the debounce timer should be reset.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	path := event.Name

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create == 0 || w.shouldIgnoreDir(path) {
			return false
		}
		// A directory dropped into the tree may already contain files
		// whose create events we never saw. Watch it and rebuild.
		if err := w.addWatches(path); err != nil {
			debug.LogWatch("cannot watch new directory %s: %v\n", path, err)
		}
		return w.mark(path)
	}

	// Removed or renamed entries cannot be stat'd; classify them by
	// the recorded path alone.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if !w.relevant(path) {
		return false
	}
	return w.mark(path)
}

func (w *Watcher) mark(path string) bool {
	w.mu.Lock()
	w.pending[path] = struct{}{}
	count := len(w.pending)
	w.mu.Unlock()

	debug.LogWatch("change %s (pending %d)\n", path, count)
	return true
}

// rebuild drains the pending set and runs one build through the
// coordinator. Safe to call from any goroutine.
func (w *Watcher) rebuild() {
	w.mu.Lock()
	changed := len(w.pending)
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if changed == 0 || w.ctx.Err() != nil {
		return
	}

	debug.LogWatch("rebuilding %s after %d changed paths\n", w.root, changed)
	result, err := w.coordinator.EnsureReady(w.ctx, w.root)
	w.rebuilds.Add(1)

	if w.onResult != nil {
		w.onResult(result, err)
		return
	}
	if err != nil {
		debug.LogWatch("rebuild of %s failed: %v\n", w.root, err)
	}
}

// relevant reports whether a file path can affect the index.
func (w *Watcher) relevant(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case scan.ExtProjectManifest, scan.ExtResourceManifest, scan.ExtSource:
	default:
		return false
	}
	return !w.excludedPath(path)
}

func (w *Watcher) shouldIgnoreDir(path string) bool {
	switch filepath.Base(path) {
	case ".git", cache.DefaultDirName:
		return true
	}

	rel, ok := w.relPath(path)
	if !ok {
		return false
	}
	for _, pattern := range w.exclude {
		// Patterns like "autogen/**" should also match the directory
		// itself, not just its contents.
		if matched, err := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) excludedPath(path string) bool {
	rel, ok := w.relPath(path)
	if !ok {
		return false
	}
	for _, pattern := range w.exclude {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) relPath(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
