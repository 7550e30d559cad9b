// Package gml defines the parser boundary the source analyzer consumes and
// ships a lexical reference parser behind it. The boundary is deliberately
// narrow: a parse produces identifier occurrences with role tags and spans,
// call expressions, and assignment targets. Anything richer (type inference,
// control flow) is out of scope for indexing.
package gml

import (
	"github.com/gmtooling/gmscope/internal/types"
)

// ParseOptions controls what a parse reports.
type ParseOptions struct {
	// ScopeID is stamped on every identifier the parse emits. A source file
	// realizes exactly one scope, so the caller knows it up front.
	ScopeID string

	// IncludeLocations requests start/end offsets on every node.
	IncludeLocations bool

	// IncludeIdentifierRoles requests role tags and declaration
	// back-references on identifiers.
	IncludeIdentifierRoles bool
}

// DeclRef points at a declaration site inside the parsed file.
type DeclRef struct {
	Span  types.SourceSpan
	Scope string
}

// Identifier is one textual occurrence of a name.
type Identifier struct {
	Name  string
	Span  types.SourceSpan
	Scope string
	Roles types.RoleSet

	// Decl backlinks a reference to its in-file declaration when one was
	// found. Nil for declarations and unresolved references.
	Decl *DeclRef

	// Owner backlinks an enum member, declaration or reference, to the
	// declaration of its owning enum.
	Owner *DeclRef

	// IsGlobal marks identifiers reached through the global namespace,
	// either a globalvar name or a global.name access.
	IsGlobal bool
}

// Call is a call expression. The callee also appears in the identifier list
// at the same span.
type Call struct {
	Callee     string
	CalleeSpan types.SourceSpan

	// BareCallee is false for member calls (obj.fn()).
	BareCallee bool
}

// Assignment is a plain = assignment with an identifier-rooted target.
// Compound assignments (+= and friends) are not reported.
type Assignment struct {
	Target     string
	TargetSpan types.SourceSpan

	// BareTarget is false for member targets (obj.x = v, global.x = v).
	BareTarget bool
}

// Tree is the flat parse result. Node lists are in source order.
type Tree struct {
	Identifiers []Identifier
	Calls       []Call
	Assignments []Assignment
}

// Parser turns source text into a Tree.
type Parser interface {
	Parse(src []byte, opts ParseOptions) (*Tree, error)
}

// ParseFunc adapts a function to the Parser interface.
type ParseFunc func(src []byte, opts ParseOptions) (*Tree, error)

func (f ParseFunc) Parse(src []byte, opts ParseOptions) (*Tree, error) {
	return f(src, opts)
}

// Default returns the built-in lexical parser.
func Default() Parser {
	return &lexicalParser{}
}
