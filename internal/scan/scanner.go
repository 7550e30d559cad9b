// Package scan discovers the manifest and source files of a project root.
// The walk is iterative with an explicit worklist so pathological directory
// depth cannot overflow the stack, and results come back in a deterministic
// lexicographic order.
package scan

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/pkg/pathutil"
)

// File extensions recognized by the scanner.
const (
	ExtProjectManifest  = ".yyp"
	ExtResourceManifest = ".yy"
	ExtSource           = ".gml"
)

// FileEntry is one discovered file, carried in both absolute and canonical
// relative form so later stages never re-derive either.
type FileEntry struct {
	AbsPath string
	RelPath string
}

// Result partitions the discovered files. Both slices are sorted by RelPath.
type Result struct {
	Manifests []FileEntry
	Sources   []FileEntry
}

// Scanner walks a project tree and classifies files by extension.
type Scanner struct {
	fs      afero.Fs
	exclude []string
}

// NewScanner creates a scanner. Exclude patterns are doublestar globs
// matched against canonical relative paths.
func NewScanner(fsys afero.Fs, exclude []string) *Scanner {
	return &Scanner{fs: fsys, exclude: exclude}
}

// Scan walks root and returns the manifest/source partition. A root that
// does not exist yields an empty result; any other I/O error propagates.
func (s *Scanner) Scan(root string) (*Result, error) {
	result := &Result{
		Manifests: []FileEntry{},
		Sources:   []FileEntry{},
	}

	dirs := []string{root}
	for len(dirs) > 0 {
		dir := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// The root may simply not exist yet, and a subdirectory can
				// legitimately disappear between listing its parent and
				// visiting it.
				continue
			}
			return nil, err
		}

		for _, entry := range entries {
			abs := filepath.Join(dir, entry.Name())
			rel := pathutil.Key(abs, root)

			if entry.IsDir() {
				// Hidden directories (.git, .gmscope-cache) never hold
				// project resources. Excluded directories prune their
				// whole subtree; files are tested individually below.
				if strings.HasPrefix(entry.Name(), ".") || s.excluded(rel) {
					continue
				}
				dirs = append(dirs, abs)
				continue
			}

			if s.excluded(rel) {
				continue
			}

			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ExtProjectManifest, ExtResourceManifest:
				result.Manifests = append(result.Manifests, FileEntry{AbsPath: abs, RelPath: rel})
			case ExtSource:
				result.Sources = append(result.Sources, FileEntry{AbsPath: abs, RelPath: rel})
			}
		}
	}

	sort.Slice(result.Manifests, func(i, j int) bool {
		return result.Manifests[i].RelPath < result.Manifests[j].RelPath
	})
	sort.Slice(result.Sources, func(i, j int) bool {
		return result.Sources[i].RelPath < result.Sources[j].RelPath
	})

	debug.LogScan("scanned %s: %d manifests, %d sources\n", root, len(result.Manifests), len(result.Sources))
	return result, nil
}

// excluded checks rel against every exclusion pattern. Bad patterns are
// skipped rather than breaking the scan.
func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.exclude {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
