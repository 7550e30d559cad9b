package build

import (
	"sort"

	"github.com/gmtooling/gmscope/internal/analyze"
	"github.com/gmtooling/gmscope/internal/identifiers"
	"github.com/gmtooling/gmscope/internal/manifest"
	"github.com/gmtooling/gmscope/internal/types"
)

// reduce folds the manifest analysis and per-file results into an index.
// Scopes are instantiated from their descriptors first, so a scope exists
// even when no source file on disk realizes it; file results then fill
// scope and file records in sorted file order.
func reduce(root string, analysis *manifest.Analysis, results []*analyze.FileResult) *types.ProjectIndex {
	idx := types.NewProjectIndex(root)
	idx.Resources = analysis.Resources
	collector := identifiers.NewBuilder()

	for _, desc := range sortedDescriptors(analysis) {
		instantiateScope(idx, collector, desc)
	}

	for _, result := range results {
		if result == nil {
			continue
		}

		scope := idx.Scopes[result.ScopeID]
		if scope == nil {
			// Orphan source with no manifest behind it.
			scope = &types.ScopeRecord{
				ID:   result.ScopeID,
				Kind: types.ScopeKindFile,
				Name: result.Path,
			}
			idx.Scopes[result.ScopeID] = scope
		}

		scope.Files = append(scope.Files, result.Path)
		scope.Declarations = append(scope.Declarations, result.Declarations...)
		scope.References = append(scope.References, result.References...)
		scope.Ignored = append(scope.Ignored, result.Ignored...)
		scope.Calls = append(scope.Calls, result.Calls...)

		idx.Files[result.Path] = &types.FileRecord{
			Path:         result.Path,
			ScopeID:      result.ScopeID,
			Checksum:     result.Checksum,
			Declarations: result.Declarations,
			References:   result.References,
			Ignored:      result.Ignored,
			Calls:        result.Calls,
		}

		idx.Relationships.Calls = append(idx.Relationships.Calls, result.Calls...)
		for _, reg := range result.Registrations {
			collector.Apply(reg)
		}
	}

	idx.Relationships.AssetRefs = append(idx.Relationships.AssetRefs, analysis.AssetRefs...)
	idx.Identifiers = collector.Collections()
	return idx
}

// sortedDescriptors flattens sourced and unsourced descriptors into one
// deterministic order. Descriptors sharing an ID (script name collisions)
// sort by source path, which matches the analyzer's first-wins rule.
func sortedDescriptors(analysis *manifest.Analysis) []*manifest.ScopeDescriptor {
	descs := make([]*manifest.ScopeDescriptor, 0, len(analysis.ScopesBySource)+len(analysis.Unsourced))
	for _, desc := range analysis.ScopesBySource {
		descs = append(descs, desc)
	}
	descs = append(descs, analysis.Unsourced...)

	sort.Slice(descs, func(i, j int) bool {
		if descs[i].ID != descs[j].ID {
			return descs[i].ID < descs[j].ID
		}
		return descs[i].SourcePath < descs[j].SourcePath
	})
	return descs
}

// instantiateScope creates the record for a descriptor. Script scopes get
// their synthetic self-declaration here, once per scope, so a script is
// present in the Scripts collection even when its body never spells its
// own name or its source file is missing.
func instantiateScope(idx *types.ProjectIndex, collector *identifiers.Builder, desc *manifest.ScopeDescriptor) {
	if _, exists := idx.Scopes[desc.ID]; exists {
		return
	}

	scope := &types.ScopeRecord{
		ID:           desc.ID,
		Kind:         desc.Kind,
		Name:         desc.Name,
		ResourcePath: desc.ResourcePath,
		Event:        desc.Event,
	}
	idx.Scopes[desc.ID] = scope

	if desc.Kind != types.ScopeKindScript {
		return
	}

	synthetic := types.IdentifierOccurrence{
		Name:        desc.Name,
		Span:        types.SourceSpan{Start: -1, End: -1},
		ScopeID:     desc.ID,
		Roles:       types.RoleDeclaration | types.RoleScript,
		IsSynthetic: true,
	}
	scope.Declarations = append(scope.Declarations, synthetic)
	collector.Apply(identifiers.Registration{
		Category:      types.CategoryScript,
		Name:          desc.Name,
		ScopeID:       desc.ID,
		ResourcePath:  desc.ResourcePath,
		Occurrence:    synthetic,
		IsDeclaration: true,
	})
}
