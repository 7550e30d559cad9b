package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/internal/scan"
	"github.com/gmtooling/gmscope/internal/types"
	"github.com/gmtooling/gmscope/pkg/pathutil"
)

// ScopeDescriptor announces a scope derived from a manifest, keyed by the
// source file expected to realize it. The source analyzer records every
// occurrence in a file against the file's descriptor scope.
type ScopeDescriptor struct {
	ID           types.ScopeID
	Kind         types.ScopeKind
	Name         string
	ResourcePath string
	Event        *types.EventInfo
	SourcePath   string
}

// Analysis is the combined outcome of analyzing every manifest in a project.
type Analysis struct {
	Resources      map[string]*types.ResourceRecord
	ScopesBySource map[string]*ScopeDescriptor

	// Unsourced holds descriptors whose source path could not be derived;
	// their scopes still exist, with no files attached.
	Unsourced []*ScopeDescriptor

	AssetRefs []types.AssetReference

	// ScriptScopes and ScriptResources map script names for call resolution.
	// On a name collision the lexicographically first manifest wins.
	ScriptScopes    map[string]types.ScopeID
	ScriptResources map[string]string

	SkippedManifests int
}

// Analyzer reads and interprets resource manifests.
type Analyzer struct {
	fs afero.Fs
}

// NewAnalyzer creates a manifest analyzer over the given filesystem.
func NewAnalyzer(fsys afero.Fs) *Analyzer {
	return &Analyzer{fs: fsys}
}

// Analyze processes the scanned manifests in their deterministic scan order.
// Missing and malformed manifests are counted and skipped; other I/O errors
// propagate.
func (a *Analyzer) Analyze(manifests []scan.FileEntry) (*Analysis, error) {
	analysis := &Analysis{
		Resources:       make(map[string]*types.ResourceRecord),
		ScopesBySource:  make(map[string]*ScopeDescriptor),
		AssetRefs:       []types.AssetReference{},
		ScriptScopes:    make(map[string]types.ScopeID),
		ScriptResources: make(map[string]string),
	}

	for _, entry := range manifests {
		data, err := afero.ReadFile(a.fs, entry.AbsPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				analysis.SkippedManifests++
				continue
			}
			return nil, err
		}

		root, err := Parse(data)
		if err != nil {
			debug.LogIndex("manifest %s skipped: %v\n", entry.RelPath, err)
			analysis.SkippedManifests++
			continue
		}

		a.analyzeManifest(analysis, entry.RelPath, root)
	}

	a.attributeTargets(analysis)
	return analysis, nil
}

func (a *Analyzer) analyzeManifest(analysis *Analysis, rel string, root Value) {
	name := root.FieldStr("name")
	if name == "" {
		name = pathutil.Stem(rel)
	}

	resType := types.ResourceTypeFromManifest(root.FieldStr("resourceType"))
	if resType == types.ResourceUnknown && strings.HasSuffix(strings.ToLower(rel), scan.ExtProjectManifest) {
		// Old project manifests omit resourceType; the extension is enough.
		resType = types.ResourceProject
	}

	record := &types.ResourceRecord{
		Path: rel,
		Name: name,
		Type: resType,
	}

	switch record.Type {
	case types.ResourceScript:
		a.addScriptScope(analysis, record)
	case types.ResourceObject:
		a.addEventScopes(analysis, record, root)
	}

	refs := collectAssetRefs(rel, root)
	record.AssetRefs = refs
	analysis.AssetRefs = append(analysis.AssetRefs, refs...)

	analysis.Resources[rel] = record
}

// addScriptScope derives the single scope of a script resource. The script's
// source file sits next to its manifest and shares the resource name.
func (a *Analyzer) addScriptScope(analysis *Analysis, record *types.ResourceRecord) {
	scopeID := types.ScriptScopeID(record.Name)
	srcPath := pathutil.JoinKey(pathutil.Dir(record.Path), record.Name+scan.ExtSource)

	desc := &ScopeDescriptor{
		ID:           scopeID,
		Kind:         types.ScopeKindScript,
		Name:         record.Name,
		ResourcePath: record.Path,
		SourcePath:   srcPath,
	}
	analysis.ScopesBySource[srcPath] = desc

	record.ScopeIDs = append(record.ScopeIDs, scopeID)
	record.SourceFiles = append(record.SourceFiles, srcPath)

	if _, exists := analysis.ScriptScopes[record.Name]; !exists {
		analysis.ScriptScopes[record.Name] = scopeID
		analysis.ScriptResources[record.Name] = record.Path
	}
}

// addEventScopes derives one scope per entry of an object's eventList.
func (a *Analyzer) addEventScopes(analysis *Analysis, record *types.ResourceRecord, root Value) {
	events, ok := root.Field("eventList")
	if !ok || events.Kind() != KindArray {
		return
	}

	for _, item := range events.Items() {
		if item.Kind() != KindObject {
			continue
		}

		info := &types.EventInfo{
			Type: item.FieldInt("eventType"),
			Num:  item.FieldInt("eventNum"),
			Name: item.FieldStr("name"),
		}

		pathLabel := eventPathLabel(info)
		label := eventDisplayLabel(info, pathLabel)

		srcPath := item.FieldStr("path")
		if srcPath == "" && pathLabel != "" {
			srcPath = pathutil.JoinKey(pathutil.Dir(record.Path), pathLabel+scan.ExtSource)
		}

		desc := &ScopeDescriptor{
			ID:           types.ObjectEventScopeID(record.Name, label),
			Kind:         types.ScopeKindObjectEvent,
			Name:         label,
			ResourcePath: record.Path,
			Event:        info,
		}

		record.ScopeIDs = append(record.ScopeIDs, desc.ID)
		if srcPath != "" {
			desc.SourcePath = srcPath
			analysis.ScopesBySource[srcPath] = desc
			record.SourceFiles = append(record.SourceFiles, srcPath)
		} else {
			analysis.Unsourced = append(analysis.Unsourced, desc)
		}
	}
}

// eventTypeNames maps numeric event types onto the names GameMaker uses in
// event file names.
var eventTypeNames = map[int]string{
	0:  "Create",
	1:  "Destroy",
	2:  "Alarm",
	3:  "Step",
	4:  "Collision",
	5:  "Keyboard",
	6:  "Mouse",
	7:  "Other",
	8:  "Draw",
	9:  "KeyPress",
	10: "KeyRelease",
	11: "Trigger",
	12: "CleanUp",
	13: "Gesture",
}

// eventPathLabel is the "<EventName>_<num>" label used for the conventional
// source file name, empty when the manifest lacks type or number.
func eventPathLabel(info *types.EventInfo) string {
	if info.Type < 0 || info.Num < 0 {
		return ""
	}
	name, ok := eventTypeNames[info.Type]
	if !ok {
		name = strconv.Itoa(info.Type)
	}
	return fmt.Sprintf("%s_%d", name, info.Num)
}

// eventDisplayLabel picks the event's display name: the manifest name when
// present, else the path label, else the literal "event".
func eventDisplayLabel(info *types.EventInfo, pathLabel string) string {
	if info.Name != "" {
		return info.Name
	}
	if pathLabel != "" {
		return pathLabel
	}
	return "event"
}

// collectAssetRefs walks every node of the manifest and records each object
// carrying a string path member. Collection deliberately over-approximates;
// TargetType attribution later tells real resource references apart.
func collectAssetRefs(sourcePath string, root Value) []types.AssetReference {
	var refs []types.AssetReference
	walkAssetRefs(sourcePath, "", root, &refs)
	return refs
}

func walkAssetRefs(sourcePath, propertyPath string, v Value, refs *[]types.AssetReference) {
	switch v.Kind() {
	case KindObject:
		if target := v.FieldStr("path"); target != "" {
			*refs = append(*refs, types.AssetReference{
				SourcePath:   sourcePath,
				PropertyPath: propertyPath,
				TargetPath:   target,
				TargetName:   v.FieldStr("name"),
			})
		}
		for _, key := range v.Keys() {
			child, _ := v.Field(key)
			childPath := key
			if propertyPath != "" {
				childPath = propertyPath + "." + key
			}
			walkAssetRefs(sourcePath, childPath, child, refs)
		}
	case KindArray:
		for i, item := range v.Items() {
			walkAssetRefs(sourcePath, fmt.Sprintf("%s[%d]", propertyPath, i), item, refs)
		}
	}
}

// attributeTargets runs the second pass: now that every resource is known,
// resolve each reference's target type.
func (a *Analyzer) attributeTargets(analysis *Analysis) {
	attribute := func(refs []types.AssetReference) {
		for i := range refs {
			if target, ok := analysis.Resources[refs[i].TargetPath]; ok {
				refs[i].TargetType = target.Type
			}
		}
	}

	attribute(analysis.AssetRefs)
	for _, record := range analysis.Resources {
		attribute(record.AssetRefs)
	}
}
