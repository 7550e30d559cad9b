// Package analyze classifies every identifier occurrence in one source file.
// Analysis is a pure map phase: each file produces a self-contained
// FileResult, and the build reducer folds results together in deterministic
// file order. Workers therefore never share a write target.
package analyze

import (
	"github.com/cespare/xxhash/v2"

	"github.com/gmtooling/gmscope/internal/errors"
	"github.com/gmtooling/gmscope/internal/gml"
	"github.com/gmtooling/gmscope/internal/identifiers"
	"github.com/gmtooling/gmscope/internal/types"
)

// Scope identifies the single scope a source file realizes.
type Scope struct {
	ID           types.ScopeID
	Kind         types.ScopeKind
	Name         string
	ResourcePath string
}

// Tables are the project-wide lookups a file analysis consults.
type Tables struct {
	// ScriptScopes and ScriptResources map manifest-known script names.
	ScriptScopes    map[string]types.ScopeID
	ScriptResources map[string]string

	// Builtins is the language's standard library name set.
	Builtins map[string]struct{}
}

// FileResult is everything one file contributes to the index.
type FileResult struct {
	Path     string
	ScopeID  types.ScopeID
	Checksum uint64

	Declarations []types.IdentifierOccurrence
	References   []types.IdentifierOccurrence
	Ignored      []types.IdentifierOccurrence
	Calls        []types.ScriptCall

	Registrations []identifiers.Registration
}

// Analyzer runs the per-file classification passes.
type Analyzer struct {
	parser gml.Parser
}

func NewAnalyzer(parser gml.Parser) *Analyzer {
	return &Analyzer{parser: parser}
}

// AnalyzeSource parses one file and classifies its occurrences. Parse
// failures propagate to the caller; every downstream list is otherwise
// populated in source order.
func (a *Analyzer) AnalyzeSource(scope Scope, relPath string, src []byte, tables Tables) (*FileResult, error) {
	tree, err := a.parser.Parse(src, gml.ParseOptions{
		ScopeID:                string(scope.ID),
		IncludeLocations:       true,
		IncludeIdentifierRoles: true,
	})
	if err != nil {
		return nil, errors.NewSourceError(relPath, 0, err)
	}

	result := &FileResult{
		Path:     relPath,
		ScopeID:  scope.ID,
		Checksum: xxhash.Sum64(src),
	}

	// Enum and member occurrences are keyed by declaration location, so the
	// display names of the declaration sites must be known before any
	// reference to them is classified.
	enumNames, memberNames := declarationNames(tree, relPath)

	for _, ident := range tree.Identifiers {
		occ := occurrence(ident, relPath, scope.ID)

		if _, builtin := tables.Builtins[ident.Name]; builtin {
			occ.IsBuiltin = true
			result.Ignored = append(result.Ignored, occ)
			continue
		}

		if ident.Roles.Has(types.RoleDeclaration) {
			result.Declarations = append(result.Declarations, occ)
			a.registerDeclaration(result, scope, relPath, ident, occ, tables)
			continue
		}

		result.References = append(result.References, occ)
		a.registerReference(result, scope, relPath, ident, occ, tables, enumNames, memberNames)
	}

	a.collectCalls(result, scope, relPath, tree, tables)
	a.inferInstanceVariables(result, scope, relPath, tree, tables)

	return result, nil
}

// declarationNames is the pre-pass building location-keyed display-name
// tables for enums and their members.
func declarationNames(tree *gml.Tree, relPath string) (map[types.LocationKey]string, map[types.LocationKey]string) {
	enums := make(map[types.LocationKey]string)
	members := make(map[types.LocationKey]string)
	for _, ident := range tree.Identifiers {
		if !ident.Roles.Has(types.RoleDeclaration) {
			continue
		}
		key := types.LocationKey{Path: relPath, Offset: ident.Span.Start}
		switch {
		case ident.Roles.Has(types.RoleEnum):
			enums[key] = ident.Name
		case ident.Roles.Has(types.RoleEnumMember):
			members[key] = ident.Name
		}
	}
	return enums, members
}

func occurrence(ident gml.Identifier, relPath string, scopeID types.ScopeID) types.IdentifierOccurrence {
	occ := types.IdentifierOccurrence{
		Name:     ident.Name,
		FilePath: relPath,
		Span:     ident.Span,
		ScopeID:  scopeID,
		Roles:    ident.Roles,
	}
	if ident.Decl != nil {
		occ.Declaration = &types.DeclarationSite{
			FilePath: relPath,
			Span:     ident.Decl.Span,
			ScopeID:  types.ScopeID(ident.Decl.Scope),
		}
	}
	return occ
}

func (a *Analyzer) registerDeclaration(result *FileResult, scope Scope, relPath string, ident gml.Identifier, occ types.IdentifierOccurrence, tables Tables) {
	loc := types.LocationKey{Path: relPath, Offset: ident.Span.Start}

	switch {
	case ident.Roles.Has(types.RoleScript):
		// A function declaration owns a Scripts entry only when a script
		// scope backs its name; helper functions without a manifest stay
		// out of the collection but keep their occurrence records.
		if target, ok := tables.ScriptScopes[ident.Name]; ok {
			result.Registrations = append(result.Registrations, identifiers.Registration{
				Category:      types.CategoryScript,
				Name:          ident.Name,
				ScopeID:       target,
				ResourcePath:  tables.ScriptResources[ident.Name],
				Occurrence:    occ,
				IsDeclaration: true,
			})
		}

	case ident.Roles.Has(types.RoleMacro):
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:      types.CategoryMacro,
			Name:          ident.Name,
			ScopeID:       scope.ID,
			ResourcePath:  scope.ResourcePath,
			Location:      loc,
			Occurrence:    occ,
			IsDeclaration: true,
		})

	case ident.Roles.Has(types.RoleEnum):
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:      types.CategoryEnum,
			Name:          ident.Name,
			ScopeID:       scope.ID,
			ResourcePath:  scope.ResourcePath,
			Location:      loc,
			Occurrence:    occ,
			IsDeclaration: true,
		})

	case ident.Roles.Has(types.RoleEnumMember):
		reg := identifiers.Registration{
			Category:      types.CategoryEnumMember,
			Name:          ident.Name,
			ScopeID:       scope.ID,
			ResourcePath:  scope.ResourcePath,
			Location:      loc,
			Occurrence:    occ,
			IsDeclaration: true,
		}
		if ident.Owner != nil {
			owner := types.LocationKey{Path: relPath, Offset: ident.Owner.Span.Start}
			reg.Owner = &owner
		}
		result.Registrations = append(result.Registrations, reg)

	case ident.Roles.Has(types.RoleGlobal | types.RoleVariable):
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:      types.CategoryGlobalVariable,
			Name:          ident.Name,
			ScopeID:       scope.ID,
			ResourcePath:  scope.ResourcePath,
			Occurrence:    occ,
			IsDeclaration: true,
		})
	}
}

func (a *Analyzer) registerReference(result *FileResult, scope Scope, relPath string, ident gml.Identifier, occ types.IdentifierOccurrence, tables Tables, enumNames, memberNames map[types.LocationKey]string) {
	switch {
	case ident.Roles.Has(types.RoleMacro):
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:   types.CategoryMacro,
			Name:       ident.Name,
			ScopeID:    scope.ID,
			Occurrence: occ,
		})

	case ident.Roles.Has(types.RoleEnum):
		// Enum entries are keyed by declaration location; a reference
		// without a resolved declaration has no entry to land in.
		if ident.Decl == nil {
			return
		}
		loc := types.LocationKey{Path: relPath, Offset: ident.Decl.Span.Start}
		name := enumNames[loc]
		if name == "" {
			name = ident.Name
		}
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:   types.CategoryEnum,
			Name:       name,
			ScopeID:    scope.ID,
			Location:   loc,
			Occurrence: occ,
		})

	case ident.Roles.Has(types.RoleEnumMember):
		if ident.Decl == nil {
			return
		}
		loc := types.LocationKey{Path: relPath, Offset: ident.Decl.Span.Start}
		name := memberNames[loc]
		if name == "" {
			name = ident.Name
		}
		reg := identifiers.Registration{
			Category:   types.CategoryEnumMember,
			Name:       name,
			ScopeID:    scope.ID,
			Location:   loc,
			Occurrence: occ,
		}
		if ident.Owner != nil {
			owner := types.LocationKey{Path: relPath, Offset: ident.Owner.Span.Start}
			reg.Owner = &owner
		}
		result.Registrations = append(result.Registrations, reg)

	case ident.Roles.Has(types.RoleGlobal | types.RoleVariable):
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:   types.CategoryGlobalVariable,
			Name:       ident.Name,
			ScopeID:    scope.ID,
			Occurrence: occ,
		})

	default:
		// A reference to a manifest-known script name lands in its
		// Scripts entry even without role tags, which is how uses of a
		// script are counted from any scope.
		if target, ok := tables.ScriptScopes[ident.Name]; ok {
			result.Registrations = append(result.Registrations, identifiers.Registration{
				Category:     types.CategoryScript,
				Name:         ident.Name,
				ScopeID:      target,
				ResourcePath: tables.ScriptResources[ident.Name],
				Occurrence:   occ,
			})
		}
	}
}

// collectCalls emits call edges for bare, non-builtin callees. Unresolved
// callees are retained with IsResolved false.
func (a *Analyzer) collectCalls(result *FileResult, scope Scope, relPath string, tree *gml.Tree, tables Tables) {
	for _, call := range tree.Calls {
		if !call.BareCallee {
			continue
		}
		if _, builtin := tables.Builtins[call.Callee]; builtin {
			continue
		}
		target, resolved := tables.ScriptScopes[call.Callee]
		result.Calls = append(result.Calls, types.ScriptCall{
			Callee:      call.Callee,
			CallerScope: scope.ID,
			CallerFile:  relPath,
			Span:        call.CalleeSpan,
			TargetScope: target,
			IsResolved:  resolved,
		})
	}
}

// inferInstanceVariables applies the implicit-assignment heuristic, the one
// place a declaration is inferred instead of read from the tree. A bare
// assignment target in an object event declares an instance variable iff the
// occurrence is reference-classified, not global, unresolved, and not a
// builtin.
func (a *Analyzer) inferInstanceVariables(result *FileResult, scope Scope, relPath string, tree *gml.Tree, tables Tables) {
	if scope.Kind != types.ScopeKindObjectEvent {
		return
	}

	byOffset := make(map[int]gml.Identifier, len(tree.Identifiers))
	for _, ident := range tree.Identifiers {
		byOffset[ident.Span.Start] = ident
	}

	for _, asgn := range tree.Assignments {
		if !asgn.BareTarget {
			continue
		}
		ident, ok := byOffset[asgn.TargetSpan.Start]
		if !ok || ident.Name != asgn.Target {
			continue
		}
		if !ident.Roles.Has(types.RoleReference) || ident.Roles.Has(types.RoleGlobal) || ident.Decl != nil {
			continue
		}
		if _, builtin := tables.Builtins[ident.Name]; builtin {
			continue
		}

		decl := types.IdentifierOccurrence{
			Name:     ident.Name,
			FilePath: relPath,
			Span:     ident.Span,
			ScopeID:  scope.ID,
			Roles:    types.RoleDeclaration | types.RoleInstance | types.RoleVariable,
		}
		result.Declarations = append(result.Declarations, decl)
		result.Registrations = append(result.Registrations, identifiers.Registration{
			Category:      types.CategoryInstanceVariable,
			Name:          ident.Name,
			ScopeID:       scope.ID,
			ResourcePath:  scope.ResourcePath,
			Occurrence:    decl,
			IsDeclaration: true,
		})
	}
}
