package build

import (
	"context"
	stderrors "errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/analyze"
	"github.com/gmtooling/gmscope/internal/builtins"
	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/internal/gml"
	"github.com/gmtooling/gmscope/internal/manifest"
	"github.com/gmtooling/gmscope/internal/metrics"
	"github.com/gmtooling/gmscope/internal/scan"
	"github.com/gmtooling/gmscope/internal/types"
)

// Builder runs the index pipeline for one project tree.
type Builder struct {
	fs        afero.Fs
	parser    gml.Parser
	registry  *builtins.Registry
	validator *scan.Validator
	workers   int
}

// NewBuilder wires the pipeline. A nil parser selects the built-in one and
// a nil registry selects the embedded built-in name list.
func NewBuilder(fsys afero.Fs, parser gml.Parser, registry *builtins.Registry, workers int) *Builder {
	if parser == nil {
		parser = gml.Default()
	}
	if registry == nil {
		registry = builtins.NewRegistry(fsys, "")
	}
	return &Builder{
		fs:        fsys,
		parser:    parser,
		registry:  registry,
		validator: scan.NewValidator(),
		workers:   types.ClampWorkerCount(workers),
	}
}

// Build analyzes a fingerprinted tree into a ProjectIndex plus its build
// summary. The first per-file failure in sorted file order aborts the
// build; a file missing at read time is skipped and counted instead, since
// the tree can change under a running build.
func (b *Builder) Build(ctx context.Context, root string, fp *Fingerprints) (*types.ProjectIndex, *metrics.Summary, error) {
	start := time.Now()
	summary := metrics.NewSummary()
	summary.Workers = b.workers
	summary.ScanMillis = fp.ScanMillis
	summary.ManifestCount = len(fp.Scan.Manifests)
	summary.SourceCount = len(fp.Scan.Sources)

	manifestStart := time.Now()
	analysis, err := manifest.NewAnalyzer(b.fs).Analyze(fp.Scan.Manifests)
	if err != nil {
		return nil, nil, err
	}
	summary.ManifestMillis = metrics.Millis(time.Since(manifestStart))
	summary.SkippedManifests = analysis.SkippedManifests

	analyzeStart := time.Now()
	results, skipped, err := b.analyzeSources(ctx, analysis, fp.Scan.Sources)
	if err != nil {
		return nil, nil, err
	}
	summary.AnalyzeMillis = metrics.Millis(time.Since(analyzeStart))
	summary.SkippedSources = skipped

	idx := reduce(root, analysis, results)

	countIndex(summary, idx)
	summary.TotalMillis = metrics.Millis(time.Since(start))
	debug.LogIndex("built %s: %d resources, %d scopes, %d identifiers in %.1fms\n",
		root, summary.ResourceCount, summary.ScopeCount, idx.Identifiers.Total(), summary.TotalMillis)
	return idx, summary, nil
}

// analyzeSources fans the source list out to the worker pool. Workers pull
// the next file from a shared cursor and write only their own slot, so
// results need no locking and the reducer sees them in file order.
func (b *Builder) analyzeSources(ctx context.Context, analysis *manifest.Analysis, sources []scan.FileEntry) ([]*analyze.FileResult, int, error) {
	results := make([]*analyze.FileResult, len(sources))
	errs := make([]error, len(sources))

	analyzer := analyze.NewAnalyzer(b.parser)
	tables := analyze.Tables{
		ScriptScopes:    analysis.ScriptScopes,
		ScriptResources: analysis.ScriptResources,
		Builtins:        b.registry.Load(),
	}

	workers := b.workers
	if len(sources) < workers {
		workers = len(sources)
	}

	var cursor atomic.Int64
	var skipped atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				i := int(cursor.Add(1)) - 1
				if i >= len(sources) {
					return
				}
				entry := sources[i]

				data, err := afero.ReadFile(b.fs, entry.AbsPath)
				if err != nil {
					if stderrors.Is(err, fs.ErrNotExist) {
						skipped.Add(1)
						continue
					}
					errs[i] = err
					continue
				}

				if err := b.validator.Screen(entry.AbsPath, data); err != nil {
					debug.LogIndex("skipping %s: %v\n", entry.RelPath, err)
					skipped.Add(1)
					continue
				}

				result, err := analyzer.AnalyzeSource(scopeFor(analysis, entry.RelPath), entry.RelPath, data, tables)
				if err != nil {
					errs[i] = err
					continue
				}
				results[i] = result
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, 0, err
		}
	}
	return results, int(skipped.Load()), nil
}

// scopeFor resolves a source file to its manifest-announced scope, or to a
// file scope when no manifest claims it.
func scopeFor(analysis *manifest.Analysis, relPath string) analyze.Scope {
	if desc, ok := analysis.ScopesBySource[relPath]; ok {
		return analyze.Scope{
			ID:           desc.ID,
			Kind:         desc.Kind,
			Name:         desc.Name,
			ResourcePath: desc.ResourcePath,
		}
	}
	return analyze.Scope{
		ID:   types.FileScopeID(relPath),
		Kind: types.ScopeKindFile,
		Name: relPath,
	}
}

func countIndex(summary *metrics.Summary, idx *types.ProjectIndex) {
	summary.ResourceCount = len(idx.Resources)
	summary.ScopeCount = len(idx.Scopes)

	ids := idx.Identifiers
	summary.IdentifierCounts[types.CategoryScript.String()] = len(ids.Scripts)
	summary.IdentifierCounts[types.CategoryMacro.String()] = len(ids.Macros)
	summary.IdentifierCounts[types.CategoryEnum.String()] = len(ids.Enums)
	summary.IdentifierCounts[types.CategoryEnumMember.String()] = len(ids.EnumMembers)
	summary.IdentifierCounts[types.CategoryGlobalVariable.String()] = len(ids.GlobalVariables)
	summary.IdentifierCounts[types.CategoryInstanceVariable.String()] = len(ids.InstanceVariables)

	summary.CallCount = len(idx.Relationships.Calls)
	for _, call := range idx.Relationships.Calls {
		if call.IsResolved {
			summary.ResolvedCallCount++
		}
	}
	summary.AssetRefCount = len(idx.Relationships.AssetRefs)
}
