package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Common system-wide constants
const (
	// Worker pool limits for source analysis
	DefaultWorkerCount = 4 // Default parallelism when the config does not say otherwise

	MinWorkerCount = 1
	MaxWorkerCount = 16 // Hard ceiling regardless of configuration
)

// ClampWorkerCount normalizes a configured worker count. Zero means
// "unset" and takes the default; anything else is clamped to
// [MinWorkerCount, MaxWorkerCount].
func ClampWorkerCount(n int) int {
	if n == 0 {
		return DefaultWorkerCount
	}
	if n < MinWorkerCount {
		return MinWorkerCount
	}
	if n > MaxWorkerCount {
		return MaxWorkerCount
	}
	return n
}

// ResourceType classifies a project resource by its manifest resourceType field.
type ResourceType uint8

const (
	ResourceUnknown ResourceType = iota
	ResourceProject
	ResourceScript
	ResourceObject
	ResourceSprite
	ResourceRoom
	ResourceSound
	ResourceFont
	ResourceShader
	ResourceTileSet
	ResourcePath
	ResourceTimeline
	ResourceSequence
	ResourceAnimCurve
	ResourceNote
	ResourceExtension
)

func (rt ResourceType) String() string {
	switch rt {
	case ResourceProject:
		return "project"
	case ResourceScript:
		return "script"
	case ResourceObject:
		return "object"
	case ResourceSprite:
		return "sprite"
	case ResourceRoom:
		return "room"
	case ResourceSound:
		return "sound"
	case ResourceFont:
		return "font"
	case ResourceShader:
		return "shader"
	case ResourceTileSet:
		return "tileset"
	case ResourcePath:
		return "path"
	case ResourceTimeline:
		return "timeline"
	case ResourceSequence:
		return "sequence"
	case ResourceAnimCurve:
		return "animcurve"
	case ResourceNote:
		return "note"
	case ResourceExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// manifestResourceTypes maps the raw manifest resourceType strings onto
// ResourceType values. Anything not listed stays ResourceUnknown.
var manifestResourceTypes = map[string]ResourceType{
	"GMProject":   ResourceProject,
	"GMScript":    ResourceScript,
	"GMObject":    ResourceObject,
	"GMSprite":    ResourceSprite,
	"GMRoom":      ResourceRoom,
	"GMSound":     ResourceSound,
	"GMFont":      ResourceFont,
	"GMShader":    ResourceShader,
	"GMTileSet":   ResourceTileSet,
	"GMPath":      ResourcePath,
	"GMTimeline":  ResourceTimeline,
	"GMSequence":  ResourceSequence,
	"GMAnimCurve": ResourceAnimCurve,
	"GMNotes":     ResourceNote,
	"GMExtension": ResourceExtension,
}

// ResourceTypeFromManifest converts a manifest resourceType string into a
// ResourceType. Unrecognized strings map to ResourceUnknown so new GameMaker
// resource kinds degrade instead of failing.
func ResourceTypeFromManifest(s string) ResourceType {
	return manifestResourceTypes[s]
}

var resourceTypeNames = func() map[string]ResourceType {
	m := make(map[string]ResourceType, 16)
	for rt := ResourceUnknown; rt <= ResourceExtension; rt++ {
		m[rt.String()] = rt
	}
	return m
}()

// MarshalText serializes the resource type as its lowercase name so the cache
// file stays readable and diffable.
func (rt ResourceType) MarshalText() ([]byte, error) {
	return []byte(rt.String()), nil
}

// UnmarshalText accepts any name produced by MarshalText; unknown names map
// to ResourceUnknown without error.
func (rt *ResourceType) UnmarshalText(text []byte) error {
	*rt = resourceTypeNames[string(text)]
	return nil
}

// ScopeKind classifies an analysis scope.
type ScopeKind uint8

const (
	ScopeKindUnknown ScopeKind = iota
	ScopeKindScript
	ScopeKindObjectEvent
	ScopeKindFile
)

func (sk ScopeKind) String() string {
	switch sk {
	case ScopeKindScript:
		return "script"
	case ScopeKindObjectEvent:
		return "objectEvent"
	case ScopeKindFile:
		return "file"
	default:
		return "unknown"
	}
}

// MarshalText serializes the scope kind as its name.
func (sk ScopeKind) MarshalText() ([]byte, error) {
	return []byte(sk.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (sk *ScopeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "script":
		*sk = ScopeKindScript
	case "objectEvent":
		*sk = ScopeKindObjectEvent
	case "file":
		*sk = ScopeKindFile
	default:
		*sk = ScopeKindUnknown
	}
	return nil
}

// ScopeID is the stable identifier of a scope, shaped as
// "scope:<kind>:<qualifying parts>". IDs are derived purely from manifest
// content and relative paths so rebuilding a project always reproduces the
// same IDs regardless of processing order.
type ScopeID string

// ScriptScopeID derives the scope ID for a script resource.
func ScriptScopeID(scriptName string) ScopeID {
	return ScopeID("scope:script:" + scriptName)
}

// ObjectEventScopeID derives the scope ID for one event of an object.
func ObjectEventScopeID(objectName, eventLabel string) ScopeID {
	return ScopeID("scope:objectEvent:" + objectName + ":" + eventLabel)
}

// FileScopeID derives the scope ID for a source file no manifest claims.
func FileScopeID(relPath string) ScopeID {
	return ScopeID("scope:file:" + relPath)
}

// Kind reports the scope kind encoded in the ID.
func (id ScopeID) Kind() ScopeKind {
	rest, ok := strings.CutPrefix(string(id), "scope:")
	if !ok {
		return ScopeKindUnknown
	}
	kind, _, ok := strings.Cut(rest, ":")
	if !ok {
		return ScopeKindUnknown
	}
	var sk ScopeKind
	_ = sk.UnmarshalText([]byte(kind))
	return sk
}

// IdentifierCategory names one of the six identifier collections.
type IdentifierCategory uint8

const (
	CategoryScript IdentifierCategory = iota
	CategoryMacro
	CategoryEnum
	CategoryEnumMember
	CategoryGlobalVariable
	CategoryInstanceVariable
)

func (c IdentifierCategory) String() string {
	switch c {
	case CategoryScript:
		return "script"
	case CategoryMacro:
		return "macro"
	case CategoryEnum:
		return "enum"
	case CategoryEnumMember:
		return "enumMember"
	case CategoryGlobalVariable:
		return "globalVariable"
	case CategoryInstanceVariable:
		return "instanceVariable"
	default:
		return "unknown"
	}
}

// MarshalText serializes the category as its name.
func (c IdentifierCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (c *IdentifierCategory) UnmarshalText(text []byte) error {
	switch string(text) {
	case "script":
		*c = CategoryScript
	case "macro":
		*c = CategoryMacro
	case "enum":
		*c = CategoryEnum
	case "enumMember":
		*c = CategoryEnumMember
	case "globalVariable":
		*c = CategoryGlobalVariable
	case "instanceVariable":
		*c = CategoryInstanceVariable
	default:
		return fmt.Errorf("unknown identifier category %q", string(text))
	}
	return nil
}

// IdentifierID is the stable ID of a collection entry: "<category>:<value>".
// The value part is the collection key (scope ID, name, location key or
// composite), so IDs reproduce bit-for-bit across rebuilds.
type IdentifierID string

// ID derives the stable identifier ID for a collection key within this category.
func (c IdentifierCategory) ID(value string) IdentifierID {
	return IdentifierID(c.String() + ":" + value)
}

// RoleSet is a bitmask of role tags attached to an identifier occurrence.
type RoleSet uint16

const (
	RoleDeclaration RoleSet = 1 << iota
	RoleReference
	RoleMacro
	RoleEnum
	RoleEnumMember
	RoleGlobal
	RoleInstance
	RoleScript
	RoleVariable
)

// roleNames is ordered by bit value; serialization follows this order so
// role lists are stable.
var roleNames = []struct {
	role RoleSet
	name string
}{
	{RoleDeclaration, "declaration"},
	{RoleReference, "reference"},
	{RoleMacro, "macro"},
	{RoleEnum, "enum"},
	{RoleEnumMember, "enumMember"},
	{RoleGlobal, "global"},
	{RoleInstance, "instance"},
	{RoleScript, "script"},
	{RoleVariable, "variable"},
}

// Has reports whether every role in r is present in the set.
func (s RoleSet) Has(r RoleSet) bool {
	return s&r == r
}

func (s RoleSet) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for _, rn := range roleNames {
		if s&rn.role != 0 {
			parts = append(parts, rn.name)
		}
	}
	return strings.Join(parts, "|")
}

// MarshalJSON serializes the set as a sorted array of role names.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 4)
	for _, rn := range roleNames {
		if s&rn.role != 0 {
			names = append(names, rn.name)
		}
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts an array of role names; unknown names are ignored so
// newer caches degrade instead of failing to load.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set RoleSet
	for _, name := range names {
		for _, rn := range roleNames {
			if rn.name == name {
				set |= rn.role
				break
			}
		}
	}
	*s = set
	return nil
}

// SourceSpan is a half-open byte offset range [Start, End) within a source file.
type SourceSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// LocationKey identifies a source location as a typed (file path, start
// offset) pair. Enum and enum-member collections are keyed by the location
// of the declaration site, so the key has to be exact and comparable.
type LocationKey struct {
	Path   string
	Offset int
}

// SyntheticLocation is the location key shared by all synthetic occurrences.
// The negative offset can never collide with a real declaration site.
var SyntheticLocation = LocationKey{Path: "", Offset: -1}

func (k LocationKey) String() string {
	return k.Path + "#" + strconv.Itoa(k.Offset)
}

// MarshalText lets LocationKey serve as a JSON map key ("path#offset").
func (k LocationKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the "path#offset" form. The separator search runs
// from the right so '#' inside the path part cannot confuse it.
func (k *LocationKey) UnmarshalText(text []byte) error {
	s := string(text)
	i := strings.LastIndexByte(s, '#')
	if i < 0 {
		return fmt.Errorf("malformed location key %q", s)
	}
	off, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return fmt.Errorf("malformed location key offset in %q: %w", s, err)
	}
	k.Path = s[:i]
	k.Offset = off
	return nil
}
