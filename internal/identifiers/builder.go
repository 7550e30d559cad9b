// Package identifiers aggregates occurrence registrations into the six
// typed identifier collections. Aggregation is pure: entry identity and IDs
// are derived from category plus name or declaration location, never from
// processing order.
package identifiers

import (
	"github.com/gmtooling/gmscope/internal/types"
)

// Registration is one occurrence to fold into a collection, produced by the
// source analyzer and applied by the build reducer.
type Registration struct {
	Category     types.IdentifierCategory
	Name         string
	ScopeID      types.ScopeID
	ResourcePath string

	// Location keys enums and enum members by declaration site. For
	// references it carries the declaration back-reference's location,
	// which is how a reference finds its entry.
	Location types.LocationKey

	// Owner links an enum member to its owning enum's declaration key.
	Owner *types.LocationKey

	Occurrence    types.IdentifierOccurrence
	IsDeclaration bool
}

// Builder folds registrations into collections.
type Builder struct {
	collections types.IdentifierCollections
}

func NewBuilder() *Builder {
	return &Builder{collections: types.NewIdentifierCollections()}
}

// Collections returns the aggregated tables.
func (b *Builder) Collections() types.IdentifierCollections {
	return b.collections
}

// Apply folds one registration into its category's table.
func (b *Builder) Apply(reg Registration) {
	switch reg.Category {
	case types.CategoryScript:
		entry := b.collections.Scripts[reg.ScopeID]
		if entry == nil {
			entry = newEntry(reg, string(reg.ScopeID))
			b.collections.Scripts[reg.ScopeID] = entry
		}
		record(entry, reg)

	case types.CategoryMacro:
		entry := b.collections.Macros[reg.Name]
		if entry == nil {
			entry = newEntry(reg, reg.Name)
			b.collections.Macros[reg.Name] = entry
		}
		record(entry, reg)

	case types.CategoryEnum:
		entry := b.collections.Enums[reg.Location]
		if entry == nil {
			entry = newEntry(reg, reg.Location.String())
			b.collections.Enums[reg.Location] = entry
		}
		record(entry, reg)

	case types.CategoryEnumMember:
		entry := b.collections.EnumMembers[reg.Location]
		if entry == nil {
			entry = newEntry(reg, reg.Location.String())
			b.collections.EnumMembers[reg.Location] = entry
		}
		record(entry, reg)

	case types.CategoryGlobalVariable:
		entry := b.collections.GlobalVariables[reg.Name]
		if entry == nil {
			entry = newEntry(reg, reg.Name)
			b.collections.GlobalVariables[reg.Name] = entry
		}
		record(entry, reg)

	case types.CategoryInstanceVariable:
		key := string(reg.ScopeID) + ":" + reg.Name
		entry := b.collections.InstanceVariables[key]
		if entry == nil {
			entry = newEntry(reg, key)
			b.collections.InstanceVariables[key] = entry
		}
		record(entry, reg)
	}
}

func newEntry(reg Registration, idValue string) *types.IdentifierEntry {
	return &types.IdentifierEntry{
		ID:           reg.Category.ID(idValue),
		Name:         reg.Name,
		Category:     reg.Category,
		ResourcePath: reg.ResourcePath,
		ScopeID:      reg.ScopeID,
		Owner:        reg.Owner,
		Declarations: []types.IdentifierOccurrence{},
		References:   []types.IdentifierOccurrence{},
	}
}

// record appends the occurrence and fills missing entry metadata.
// Declarations are de-duplicated by exact source location so an occurrence
// revisited through a second code path registers once.
func record(entry *types.IdentifierEntry, reg Registration) {
	if entry.Name == "" {
		entry.Name = reg.Name
	}
	if entry.ResourcePath == "" {
		entry.ResourcePath = reg.ResourcePath
	}
	if entry.ScopeID == "" {
		entry.ScopeID = reg.ScopeID
	}
	if entry.Owner == nil {
		entry.Owner = reg.Owner
	}

	if !reg.IsDeclaration {
		entry.References = append(entry.References, reg.Occurrence)
		return
	}

	loc := reg.Occurrence.Location()
	for _, existing := range entry.Declarations {
		if existing.Location() == loc {
			return
		}
	}
	entry.Declarations = append(entry.Declarations, reg.Occurrence)
}
