// Package builtins maintains the set of identifier names that belong to the
// GameMaker runtime rather than the project. Occurrences of these names are
// recorded on ignored lists and excluded from every identifier collection.
package builtins

import (
	_ "embed"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/debug"
)

//go:embed data/gml-builtins.txt
var embeddedList string

// emptySet is returned on load failure so callers never see nil.
var emptySet = map[string]struct{}{}

// Registry loads the built-in name list on demand and memoizes it against
// the list file's mtime: unchanged mtime returns the cached set, a changed
// mtime triggers a reload. With no file configured the embedded default
// list is used.
type Registry struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	names   map[string]struct{}
	modTime time.Time
	loaded  bool
}

// NewRegistry creates a registry backed by path, or by the embedded default
// list when path is empty.
func NewRegistry(fs afero.Fs, path string) *Registry {
	return &Registry{fs: fs, path: path}
}

// Load returns the current built-in name set. Any stat, read or parse
// failure degrades to an empty set rather than propagating; a transient
// failure does not clobber a previously cached set. The returned map is
// shared and must not be mutated.
func (r *Registry) Load() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		if !r.loaded {
			r.names = parseList(embeddedList)
			r.loaded = true
			debug.LogIndex("builtins: loaded %d names from embedded list\n", len(r.names))
		}
		return r.names
	}

	info, err := r.fs.Stat(r.path)
	if err != nil {
		debug.LogIndex("builtins: stat %s failed: %v\n", r.path, err)
		return emptySet
	}

	if r.loaded && info.ModTime().Equal(r.modTime) {
		return r.names
	}

	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		debug.LogIndex("builtins: read %s failed: %v\n", r.path, err)
		return emptySet
	}

	r.names = parseList(string(data))
	r.modTime = info.ModTime()
	r.loaded = true
	debug.LogIndex("builtins: loaded %d names from %s\n", len(r.names), r.path)
	return r.names
}

// parseList extracts names from the fnames-style list format: one name per
// line, optional "(...)" signature, optional trailing marker characters
// (# * @ & $), blank lines and // comments skipped.
func parseList(content string) map[string]struct{} {
	names := make(map[string]struct{}, 2048)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		// Keep only the leading token: names never contain spaces, and a
		// signature starts at the first parenthesis.
		if i := strings.IndexAny(line, "( \t"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimRight(line, "#*@&$")
		if line == "" {
			continue
		}
		names[line] = struct{}{}
	}
	return names
}
