package build

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/gmtooling/gmscope/internal/builtins"
	"github.com/gmtooling/gmscope/internal/cache"
	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/internal/errors"
	"github.com/gmtooling/gmscope/internal/gml"
	"github.com/gmtooling/gmscope/internal/metrics"
	"github.com/gmtooling/gmscope/internal/scan"
	"github.com/gmtooling/gmscope/internal/types"
	"github.com/gmtooling/gmscope/internal/version"
)

// Source says where an index came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceBuild Source = "build"
)

// Result is what EnsureReady hands back. Concurrent callers for the same
// root share one Result value, so callers must treat it as read-only.
type Result struct {
	Source  Source
	Index   *types.ProjectIndex
	Summary *metrics.Summary

	// MissReason explains why a build ran; MissNone on a cache hit.
	MissReason cache.MissReason

	// SaveResult and SaveErr report the post-build persistence attempt.
	// A failed save never fails EnsureReady; callers that care inspect
	// these.
	SaveResult cache.SaveResult
	SaveErr    error
}

// Options configures a Coordinator.
type Options struct {
	// Workers bounds the analysis pool; zero selects the default.
	Workers int

	// CachePath overrides the conventional per-project cache location.
	CachePath string

	// NoCache disables both the cache probe and the save.
	NoCache bool

	// Exclude holds doublestar patterns pruned at scan time.
	Exclude []string

	// BuiltinsPath points at a built-in names file; empty uses the
	// embedded list.
	BuiltinsPath string

	// MaxCacheBytes overrides the cache store's payload size cap.
	MaxCacheBytes int64

	// Parser overrides the source parser, mainly for tests.
	Parser gml.Parser
}

// Coordinator serializes index production per project root. Concurrent
// EnsureReady calls for the same resolved root share one in-flight build;
// distinct roots proceed independently.
type Coordinator struct {
	fs      afero.Fs
	opts    Options
	scanner *scan.Scanner
	store   *cache.Store
	builder *Builder

	group    singleflight.Group
	disposed atomic.Bool
}

func NewCoordinator(fsys afero.Fs, opts Options) *Coordinator {
	registry := builtins.NewRegistry(fsys, opts.BuiltinsPath)
	store := cache.NewStore(fsys)
	if opts.MaxCacheBytes > 0 {
		store.MaxBytes = int(opts.MaxCacheBytes)
	}
	return &Coordinator{
		fs:      fsys,
		opts:    opts,
		scanner: scan.NewScanner(fsys, opts.Exclude),
		store:   store,
		builder: NewBuilder(fsys, opts.Parser, registry, opts.Workers),
	}
}

// EnsureReady returns the project's index, from cache when fingerprints
// still match and from a fresh build otherwise. After Dispose it fails
// immediately with ErrDisposed.
func (c *Coordinator) EnsureReady(ctx context.Context, root string) (*Result, error) {
	if c.disposed.Load() {
		return nil, errors.ErrDisposed
	}

	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	v, err, shared := c.group.Do(resolved, func() (interface{}, error) {
		return c.ensure(ctx, resolved)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		debug.LogIndex("joined in-flight build for %s\n", resolved)
	}
	return v.(*Result), nil
}

func (c *Coordinator) ensure(ctx context.Context, root string) (*Result, error) {
	if c.disposed.Load() {
		return nil, errors.ErrDisposed
	}

	fp, err := Fingerprint(c.fs, c.scanner, root)
	if err != nil {
		return nil, err
	}
	desc := c.descriptor(root, fp)

	missReason := cache.MissNone
	if !c.opts.NoCache {
		payload, reason, err := c.store.Load(desc)
		if err != nil {
			// An unreadable cache must not block a build.
			debug.LogCache("load failed for %s: %v\n", root, err)
		}
		if payload != nil {
			return &Result{
				Source:  SourceCache,
				Index:   payload.ProjectIndex,
				Summary: payload.MetricsSummary,
			}, nil
		}
		missReason = reason
	}

	idx, summary, err := c.builder.Build(ctx, root, fp)
	if err != nil {
		return nil, errors.NewBuildError("index", err).WithRoot(root)
	}

	result := &Result{
		Source:     SourceBuild,
		Index:      idx,
		Summary:    summary,
		MissReason: missReason,
	}
	if !c.opts.NoCache {
		result.SaveResult, result.SaveErr = c.store.Save(desc, idx, summary)
		if result.SaveErr != nil {
			debug.LogCache("save failed for %s: %v\n", root, result.SaveErr)
		}
	}
	return result, nil
}

// Clean removes the project's cache artifact.
func (c *Coordinator) Clean(root string) error {
	if c.disposed.Load() {
		return errors.ErrDisposed
	}
	resolved, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	return c.store.Clear(cache.Descriptor{ProjectRoot: resolved, Path: c.opts.CachePath})
}

// Dispose fails all future EnsureReady calls. In-flight builds run to
// completion; their callers still receive results.
func (c *Coordinator) Dispose() {
	c.disposed.Store(true)
}

func (c *Coordinator) descriptor(root string, fp *Fingerprints) cache.Descriptor {
	return NewDescriptor(root, c.opts.CachePath, fp)
}

// NewDescriptor describes a fingerprinted tree for cache validation
// under the current tool versions.
func NewDescriptor(root, cachePath string, fp *Fingerprints) cache.Descriptor {
	return cache.Descriptor{
		ProjectRoot:      root,
		Path:             cachePath,
		FormatterVersion: version.Version,
		PluginVersion:    version.PluginVersion,
		ManifestMtimes:   fp.ManifestMtimes,
		SourceMtimes:     fp.SourceMtimes,
	}
}
