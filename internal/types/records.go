package types

// DeclarationSite points an occurrence back at the declaration it resolves to.
type DeclarationSite struct {
	FilePath string     `json:"filePath"`
	Span     SourceSpan `json:"span"`
	ScopeID  ScopeID    `json:"scopeId,omitempty"`
}

// IdentifierOccurrence is one appearance of an identifier in a source file.
type IdentifierOccurrence struct {
	Name        string           `json:"name"`
	FilePath    string           `json:"filePath,omitempty"`
	Span        SourceSpan       `json:"span"`
	ScopeID     ScopeID          `json:"scopeId"`
	Roles       RoleSet          `json:"roles"`
	Declaration *DeclarationSite `json:"declaration,omitempty"`
	IsBuiltin   bool             `json:"isBuiltin,omitempty"`
	IsSynthetic bool             `json:"isSynthetic,omitempty"`
}

// Location returns the occurrence's source-location key. Synthetic
// occurrences have no source position and share SyntheticLocation, which is
// what makes "inject at most once" fall out of plain location dedup.
func (o IdentifierOccurrence) Location() LocationKey {
	if o.IsSynthetic {
		return SyntheticLocation
	}
	return LocationKey{Path: o.FilePath, Offset: o.Span.Start}
}

// ScriptCall is a call edge from a caller scope to a script name. Unresolved
// calls are kept with IsResolved false; consumers decide how to surface them.
type ScriptCall struct {
	Callee      string     `json:"callee"`
	CallerScope ScopeID    `json:"callerScope"`
	CallerFile  string     `json:"callerFile"`
	Span        SourceSpan `json:"span"`
	TargetScope ScopeID    `json:"targetScope,omitempty"`
	IsResolved  bool       `json:"isResolved"`
}

// AssetReference is an edge from a manifest to another resource, collected
// from any manifest node carrying a path field. Collection over-approximates;
// consumers filter by TargetType.
type AssetReference struct {
	SourcePath   string       `json:"sourcePath"`
	PropertyPath string       `json:"propertyPath"`
	TargetPath   string       `json:"targetPath"`
	TargetName   string       `json:"targetName,omitempty"`
	TargetType   ResourceType `json:"targetType"`
}

// EventInfo carries the manifest metadata of an object event. Type and Num
// are -1 when the manifest omitted them.
type EventInfo struct {
	Type int    `json:"eventType"`
	Num  int    `json:"eventNum"`
	Name string `json:"name,omitempty"`
}

// ResourceRecord describes one manifest-declared resource.
type ResourceRecord struct {
	Path        string           `json:"path"`
	Name        string           `json:"name"`
	Type        ResourceType     `json:"type"`
	ScopeIDs    []ScopeID        `json:"scopeIds,omitempty"`
	SourceFiles []string         `json:"sourceFiles,omitempty"`
	AssetRefs   []AssetReference `json:"assetRefs,omitempty"`
}

// ScopeRecord is one analysis scope with everything observed inside it.
type ScopeRecord struct {
	ID           ScopeID                `json:"id"`
	Kind         ScopeKind              `json:"kind"`
	Name         string                 `json:"name"`
	ResourcePath string                 `json:"resourcePath,omitempty"`
	Event        *EventInfo             `json:"event,omitempty"`
	Files        []string               `json:"files,omitempty"`
	Declarations []IdentifierOccurrence `json:"declarations,omitempty"`
	References   []IdentifierOccurrence `json:"references,omitempty"`
	Ignored      []IdentifierOccurrence `json:"ignored,omitempty"`
	Calls        []ScriptCall           `json:"calls,omitempty"`
}

// FileRecord is the per-file view of the same occurrences. Each source file
// belongs to exactly one scope.
type FileRecord struct {
	Path         string                 `json:"path"`
	ScopeID      ScopeID                `json:"scopeId"`
	Checksum     uint64                 `json:"checksum,omitempty"`
	Declarations []IdentifierOccurrence `json:"declarations,omitempty"`
	References   []IdentifierOccurrence `json:"references,omitempty"`
	Ignored      []IdentifierOccurrence `json:"ignored,omitempty"`
	Calls        []ScriptCall           `json:"calls,omitempty"`
}

// Relationships aggregates the project-wide edge lists.
type Relationships struct {
	Calls     []ScriptCall     `json:"calls"`
	AssetRefs []AssetReference `json:"assetRefs"`
}

// IdentifierEntry is one entry in an identifier collection. Metadata fields
// are filled on a first-known-good basis: once set they are never
// overwritten by later occurrences.
type IdentifierEntry struct {
	ID           IdentifierID           `json:"id"`
	Name         string                 `json:"name"`
	Category     IdentifierCategory     `json:"category"`
	ResourcePath string                 `json:"resourcePath,omitempty"`
	ScopeID      ScopeID                `json:"scopeId,omitempty"`
	Owner        *LocationKey           `json:"owner,omitempty"`
	Declarations []IdentifierOccurrence `json:"declarations"`
	References   []IdentifierOccurrence `json:"references"`
}

// IdentifierCollections holds the six typed identifier tables. Keys differ
// per table: Scripts by scope ID, Macros and GlobalVariables by name, Enums
// and EnumMembers by declaration-site location key, InstanceVariables by
// "scopeId:name".
type IdentifierCollections struct {
	Scripts           map[ScopeID]*IdentifierEntry     `json:"scripts"`
	Macros            map[string]*IdentifierEntry      `json:"macros"`
	Enums             map[LocationKey]*IdentifierEntry `json:"enums"`
	EnumMembers       map[LocationKey]*IdentifierEntry `json:"enumMembers"`
	GlobalVariables   map[string]*IdentifierEntry      `json:"globalVariables"`
	InstanceVariables map[string]*IdentifierEntry      `json:"instanceVariables"`
}

// NewIdentifierCollections returns collections with all six maps allocated.
func NewIdentifierCollections() IdentifierCollections {
	return IdentifierCollections{
		Scripts:           make(map[ScopeID]*IdentifierEntry),
		Macros:            make(map[string]*IdentifierEntry),
		Enums:             make(map[LocationKey]*IdentifierEntry),
		EnumMembers:       make(map[LocationKey]*IdentifierEntry),
		GlobalVariables:   make(map[string]*IdentifierEntry),
		InstanceVariables: make(map[string]*IdentifierEntry),
	}
}

// Total returns the number of entries across all six collections.
func (c IdentifierCollections) Total() int {
	return len(c.Scripts) + len(c.Macros) + len(c.Enums) +
		len(c.EnumMembers) + len(c.GlobalVariables) + len(c.InstanceVariables)
}

// ProjectIndex is the complete semantic index of one project root. All paths
// inside it are relative to ProjectRoot with forward slashes, so an index is
// stable across machines and checkouts.
type ProjectIndex struct {
	ProjectRoot   string                     `json:"projectRoot"`
	Resources     map[string]*ResourceRecord `json:"resources"`
	Scopes        map[ScopeID]*ScopeRecord   `json:"scopes"`
	Files         map[string]*FileRecord     `json:"files"`
	Relationships Relationships              `json:"relationships"`
	Identifiers   IdentifierCollections      `json:"identifiers"`
}

// NewProjectIndex returns an empty index for the given root with all maps
// allocated.
func NewProjectIndex(root string) *ProjectIndex {
	return &ProjectIndex{
		ProjectRoot: root,
		Resources:   make(map[string]*ResourceRecord),
		Scopes:      make(map[ScopeID]*ScopeRecord),
		Files:       make(map[string]*FileRecord),
		Relationships: Relationships{
			Calls:     []ScriptCall{},
			AssetRefs: []AssetReference{},
		},
		Identifiers: NewIdentifierCollections(),
	}
}
