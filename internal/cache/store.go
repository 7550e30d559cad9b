// Package cache persists built project indexes between invocations. The
// on-disk artifact is a single JSON envelope keyed by schema version, tool
// versions, and per-file modification-time fingerprints; any mismatch
// invalidates the whole file. Writes go through a temp file and rename so a
// reader never observes a half-written cache.
package cache

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/internal/errors"
	"github.com/gmtooling/gmscope/internal/metrics"
	"github.com/gmtooling/gmscope/internal/types"
)

const (
	// SchemaVersion is bumped whenever the payload layout changes; older
	// files then read as misses, never as corrupt data.
	SchemaVersion = 1

	DefaultDirName  = ".gmscope-cache"
	DefaultFileName = "project-index-cache.json"

	// DefaultMaxBytes caps the serialized payload. Oversized indexes are
	// skipped rather than written so a pathological project cannot fill
	// the disk with cache files.
	DefaultMaxBytes = 64 << 20
)

// DefaultPath returns the conventional cache file location for a project.
func DefaultPath(projectRoot string) string {
	return filepath.Join(projectRoot, DefaultDirName, DefaultFileName)
}

// Payload is the on-disk envelope. Field names are part of the cache format
// and shared with the editor-plugin side, so they stay camelCase.
type Payload struct {
	SchemaVersion    int                 `json:"schemaVersion"`
	ProjectRoot      string              `json:"projectRoot"`
	FormatterVersion string              `json:"formatterVersion"`
	PluginVersion    string              `json:"pluginVersion"`
	ManifestMtimes   map[string]float64  `json:"manifestMtimes"`
	SourceMtimes     map[string]float64  `json:"sourceMtimes"`
	MetricsSummary   *metrics.Summary    `json:"metricsSummary"`
	ProjectIndex     *types.ProjectIndex `json:"projectIndex"`
}

// Descriptor carries everything a load or save needs to address and
// validate the cache for one project.
type Descriptor struct {
	ProjectRoot string

	// Path overrides the cache file location when non-empty.
	Path string

	FormatterVersion string
	PluginVersion    string

	// Fingerprints in float milliseconds, keyed by relative path.
	ManifestMtimes map[string]float64
	SourceMtimes   map[string]float64
}

func (d Descriptor) path() string {
	if d.Path != "" {
		return d.Path
	}
	return DefaultPath(d.ProjectRoot)
}

// MissReason says why a load did not produce a usable payload.
type MissReason uint8

const (
	MissNone MissReason = iota
	MissNoFile
	MissBadJSON
	MissSchemaVersion
	MissProjectRoot
	MissToolVersion
	MissManifestMtimes
	MissSourceMtimes
)

func (r MissReason) String() string {
	switch r {
	case MissNone:
		return "none"
	case MissNoFile:
		return "missing-file"
	case MissBadJSON:
		return "invalid-json"
	case MissSchemaVersion:
		return "schema-version-mismatch"
	case MissProjectRoot:
		return "project-root-mismatch"
	case MissToolVersion:
		return "tool-version-mismatch"
	case MissManifestMtimes:
		return "manifest-mtimes-changed"
	case MissSourceMtimes:
		return "source-mtimes-changed"
	default:
		return "unknown"
	}
}

// SaveResult reports the outcome of a save attempt.
type SaveResult uint8

const (
	// SaveNone means no save was attempted, the state after a cache hit.
	SaveNone SaveResult = iota
	SaveWritten
	SaveSkipped
	SaveFailed
)

func (r SaveResult) String() string {
	switch r {
	case SaveWritten:
		return "written"
	case SaveSkipped:
		return "skipped"
	case SaveFailed:
		return "failed"
	default:
		return "none"
	}
}

// Store reads and writes the cache artifact for project indexes.
type Store struct {
	fs afero.Fs

	// MaxBytes caps the serialized payload size for Save.
	MaxBytes int
}

func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys, MaxBytes: DefaultMaxBytes}
}

// Load reads and validates the cache for the descriptor. A usable payload
// returns with MissNone; every validation failure returns a nil payload and
// its reason. Only I/O failures other than absence surface as errors.
func (s *Store) Load(desc Descriptor) (*Payload, MissReason, error) {
	path := desc.path()

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, MissNoFile, nil
		}
		return nil, MissNone, errors.NewCacheError("load", path, err)
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		debug.LogCache("unreadable payload at %s: %v\n", path, err)
		return nil, MissBadJSON, nil
	}
	if payload.ProjectIndex == nil {
		debug.LogCache("payload at %s has no index\n", path)
		return nil, MissBadJSON, nil
	}

	if reason := validate(&payload, desc); reason != MissNone {
		debug.LogCache("miss (%s) for %s\n", reason, desc.ProjectRoot)
		return nil, reason, nil
	}

	debug.LogCache("hit for %s (%d bytes)\n", desc.ProjectRoot, len(data))
	return &payload, MissNone, nil
}

func validate(p *Payload, desc Descriptor) MissReason {
	switch {
	case p.SchemaVersion != SchemaVersion:
		return MissSchemaVersion
	case p.ProjectRoot != desc.ProjectRoot:
		return MissProjectRoot
	case p.FormatterVersion != desc.FormatterVersion,
		p.PluginVersion != desc.PluginVersion:
		return MissToolVersion
	case !mtimesEqual(p.ManifestMtimes, desc.ManifestMtimes):
		return MissManifestMtimes
	case !mtimesEqual(p.SourceMtimes, desc.SourceMtimes):
		return MissSourceMtimes
	}
	return MissNone
}

// mtimesEqual is an unordered key and value comparison. Any entry added,
// removed, or changed invalidates the whole map.
func mtimesEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for path, mtime := range a {
		got, ok := b[path]
		if !ok || got != mtime {
			return false
		}
	}
	return true
}

// Save serializes the index under the descriptor's fingerprints and writes
// it atomically. Oversized payloads report SaveSkipped without error; any
// write failure removes the temp file best-effort and returns the original
// error alongside SaveFailed.
func (s *Store) Save(desc Descriptor, index *types.ProjectIndex, summary *metrics.Summary) (SaveResult, error) {
	path := desc.path()

	payload := Payload{
		SchemaVersion:    SchemaVersion,
		ProjectRoot:      desc.ProjectRoot,
		FormatterVersion: desc.FormatterVersion,
		PluginVersion:    desc.PluginVersion,
		ManifestMtimes:   desc.ManifestMtimes,
		SourceMtimes:     desc.SourceMtimes,
		MetricsSummary:   summary,
		ProjectIndex:     index,
	}

	data, err := json.Marshal(&payload)
	if err != nil {
		return SaveFailed, errors.NewCacheError("save", path, err)
	}
	if len(data) > s.MaxBytes {
		debug.LogCache("payload for %s is %d bytes, over the %d cap; skipping\n", desc.ProjectRoot, len(data), s.MaxBytes)
		return SaveSkipped, nil
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return SaveFailed, errors.NewCacheError("save", path, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return SaveFailed, errors.NewCacheError("save", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return SaveFailed, errors.NewCacheError("save", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return SaveFailed, errors.NewCacheError("save", path, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return SaveFailed, errors.NewCacheError("save", path, err)
	}

	debug.LogCache("wrote %d bytes to %s\n", len(data), path)
	return SaveWritten, nil
}

// Clear removes the cache artifact. Absence is not an error. The containing
// directory is removed too when the conventional layout leaves it empty.
func (s *Store) Clear(desc Descriptor) error {
	path := desc.path()

	if err := s.fs.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.NewCacheError("clear", path, err)
	}

	dir := filepath.Dir(path)
	if filepath.Base(dir) == DefaultDirName {
		// Fails while other files remain, which is fine.
		_ = s.fs.Remove(dir)
	}
	return nil
}
