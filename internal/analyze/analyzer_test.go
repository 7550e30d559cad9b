package analyze

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmtooling/gmscope/internal/gml"
	"github.com/gmtooling/gmscope/internal/identifiers"
	"github.com/gmtooling/gmscope/internal/types"
)

func scriptScope(name string) Scope {
	return Scope{
		ID:           types.ScriptScopeID(name),
		Kind:         types.ScopeKindScript,
		Name:         name,
		ResourcePath: fmt.Sprintf("scripts/%s/%s.yy", name, name),
	}
}

func eventScope(object, event string) Scope {
	return Scope{
		ID:           types.ObjectEventScopeID(object, event),
		Kind:         types.ScopeKindObjectEvent,
		Name:         event,
		ResourcePath: fmt.Sprintf("objects/%s/%s.yy", object, object),
	}
}

func newTables(scripts []string, builtins ...string) Tables {
	t := Tables{
		ScriptScopes:    make(map[string]types.ScopeID),
		ScriptResources: make(map[string]string),
		Builtins:        make(map[string]struct{}),
	}
	for _, name := range scripts {
		t.ScriptScopes[name] = types.ScriptScopeID(name)
		t.ScriptResources[name] = fmt.Sprintf("scripts/%s/%s.yy", name, name)
	}
	for _, name := range builtins {
		t.Builtins[name] = struct{}{}
	}
	return t
}

func regsOf(result *FileResult, cat types.IdentifierCategory) []identifiers.Registration {
	var out []identifiers.Registration
	for _, reg := range result.Registrations {
		if reg.Category == cat {
			out = append(out, reg)
		}
	}
	return out
}

func TestAnalyzeScriptDeclaration(t *testing.T) {
	src := []byte("function scr_attack(dmg) {\n\treturn dmg * 2;\n}")
	scope := scriptScope("scr_attack")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_attack/scr_attack.gml", src, newTables([]string{"scr_attack"}))
	require.NoError(t, err)

	assert.Equal(t, "scripts/scr_attack/scr_attack.gml", result.Path)
	assert.Equal(t, scope.ID, result.ScopeID)
	assert.Equal(t, xxhash.Sum64(src), result.Checksum)

	require.Len(t, result.Declarations, 2)
	assert.Equal(t, "scr_attack", result.Declarations[0].Name)
	assert.Equal(t, "dmg", result.Declarations[1].Name)

	scripts := regsOf(result, types.CategoryScript)
	require.Len(t, scripts, 1)
	assert.True(t, scripts[0].IsDeclaration)
	assert.Equal(t, scope.ID, scripts[0].ScopeID)
	assert.Equal(t, scope.ResourcePath, scripts[0].ResourcePath)

	assert.Empty(t, result.Calls)
	assert.Empty(t, result.Ignored)
}

func TestAnalyzeHelperFunctionStaysOutOfCollection(t *testing.T) {
	src := []byte("function scr_util() { }\nfunction helper_fn() { }")
	scope := scriptScope("scr_util")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_util/scr_util.gml", src, newTables([]string{"scr_util"}))
	require.NoError(t, err)

	// Both functions declare, only the manifest-backed one registers.
	assert.Len(t, result.Declarations, 2)
	scripts := regsOf(result, types.CategoryScript)
	require.Len(t, scripts, 1)
	assert.Equal(t, "scr_util", scripts[0].Name)
}

func TestAnalyzeBuiltinExclusion(t *testing.T) {
	src := []byte("show_debug_message(\"hi\")\ncurrent = room_speed")
	scope := scriptScope("scr_log")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_log/scr_log.gml", src,
		newTables([]string{"scr_log"}, "show_debug_message", "room_speed"))
	require.NoError(t, err)

	require.Len(t, result.Ignored, 2)
	for _, occ := range result.Ignored {
		assert.True(t, occ.IsBuiltin)
	}

	// Builtin callees produce no call edge and no registration.
	assert.Empty(t, result.Calls)
	assert.Empty(t, result.Registrations)

	require.Len(t, result.References, 1)
	assert.Equal(t, "current", result.References[0].Name)
}

func TestAnalyzeCallResolution(t *testing.T) {
	src := []byte("scr_helper(1)\nscr_unknown(2)")
	scope := scriptScope("scr_main")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_main/scr_main.gml", src,
		newTables([]string{"scr_main", "scr_helper"}))
	require.NoError(t, err)

	require.Len(t, result.Calls, 2)

	resolved := result.Calls[0]
	assert.Equal(t, "scr_helper", resolved.Callee)
	assert.True(t, resolved.IsResolved)
	assert.Equal(t, types.ScriptScopeID("scr_helper"), resolved.TargetScope)
	assert.Equal(t, scope.ID, resolved.CallerScope)
	assert.Equal(t, "scripts/scr_main/scr_main.gml", resolved.CallerFile)

	unresolved := result.Calls[1]
	assert.Equal(t, "scr_unknown", unresolved.Callee)
	assert.False(t, unresolved.IsResolved)
	assert.Empty(t, unresolved.TargetScope)

	// The resolved callee also lands in the script's entry as a reference.
	scripts := regsOf(result, types.CategoryScript)
	require.Len(t, scripts, 1)
	assert.Equal(t, "scr_helper", scripts[0].Name)
	assert.False(t, scripts[0].IsDeclaration)
	assert.Equal(t, types.ScriptScopeID("scr_helper"), scripts[0].ScopeID)
}

func TestAnalyzeMemberCallDropped(t *testing.T) {
	src := []byte("inst.scr_helper(1)")
	scope := scriptScope("scr_main")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_main/scr_main.gml", src,
		newTables([]string{"scr_helper"}))
	require.NoError(t, err)
	assert.Empty(t, result.Calls)
}

func TestAnalyzeMacros(t *testing.T) {
	src := []byte("#macro SPEED 4\nspd = SPEED")
	scope := scriptScope("scr_consts")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_consts/scr_consts.gml", src, newTables(nil))
	require.NoError(t, err)

	macros := regsOf(result, types.CategoryMacro)
	require.Len(t, macros, 2)
	assert.True(t, macros[0].IsDeclaration)
	assert.False(t, macros[1].IsDeclaration)
	assert.Equal(t, "SPEED", macros[1].Name)
}

func TestAnalyzeEnums(t *testing.T) {
	src := []byte("enum State { Idle, Run }\ncur = State.Run")
	scope := scriptScope("scr_fsm")
	rel := "scripts/scr_fsm/scr_fsm.gml"

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, rel, src, newTables(nil))
	require.NoError(t, err)

	// State registers twice, once declaring and once as the qualifier of
	// State.Run, both keyed by the declaration site.
	enums := regsOf(result, types.CategoryEnum)
	require.Len(t, enums, 2)
	enumLoc := enums[0].Location
	assert.Equal(t, rel, enumLoc.Path)
	assert.Equal(t, 5, enumLoc.Offset)
	assert.True(t, enums[0].IsDeclaration)
	assert.False(t, enums[1].IsDeclaration)
	assert.Equal(t, enumLoc, enums[1].Location)

	members := regsOf(result, types.CategoryEnumMember)
	require.Len(t, members, 3)

	runDecl := members[1]
	require.True(t, runDecl.IsDeclaration)
	assert.Equal(t, "Run", runDecl.Name)
	require.NotNil(t, runDecl.Owner)
	assert.Equal(t, enumLoc, *runDecl.Owner)

	// The reference keys by the declaration site, not its own span.
	runRef := members[2]
	assert.False(t, runRef.IsDeclaration)
	assert.Equal(t, runDecl.Location, runRef.Location)
	require.NotNil(t, runRef.Owner)
	assert.Equal(t, enumLoc, *runRef.Owner)
}

func TestAnalyzeGlobals(t *testing.T) {
	src := []byte("globalvar kills;\nkills = 0\nglobal.deaths = 1")
	scope := scriptScope("scr_stats")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_stats/scr_stats.gml", src, newTables(nil))
	require.NoError(t, err)

	globals := regsOf(result, types.CategoryGlobalVariable)
	require.Len(t, globals, 3)
	assert.True(t, globals[0].IsDeclaration)
	assert.Equal(t, "kills", globals[0].Name)
	assert.False(t, globals[1].IsDeclaration)
	assert.Equal(t, "deaths", globals[2].Name)
	assert.False(t, globals[2].IsDeclaration)
}

func TestAnalyzeInstanceHeuristic(t *testing.T) {
	src := []byte(`hp = 100
global.kills = 0
var tmp = 1;
tmp = 2
speed = 4
hp = hp - 1`)
	scope := eventScope("o_player", "Create_0")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "objects/o_player/Create_0.gml", src,
		newTables(nil, "speed"))
	require.NoError(t, err)

	instances := regsOf(result, types.CategoryInstanceVariable)
	// hp assigns twice at distinct sites; tmp is a local, speed a builtin,
	// kills a global.
	require.Len(t, instances, 2)
	for _, reg := range instances {
		assert.Equal(t, "hp", reg.Name)
		assert.True(t, reg.IsDeclaration)
		assert.Equal(t, scope.ID, reg.ScopeID)
		assert.Equal(t, types.RoleDeclaration|types.RoleInstance|types.RoleVariable, reg.Occurrence.Roles)
	}
	assert.NotEqual(t, instances[0].Occurrence.Span, instances[1].Occurrence.Span)

	// The inferred declarations join the file's declaration list.
	declared := map[string]int{}
	for _, occ := range result.Declarations {
		declared[occ.Name]++
	}
	assert.Equal(t, 2, declared["hp"])
	assert.Equal(t, 1, declared["tmp"])
}

func TestAnalyzeInstanceHeuristicScriptScopeOff(t *testing.T) {
	src := []byte("hp = 100")
	scope := scriptScope("scr_setup")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "scripts/scr_setup/scr_setup.gml", src, newTables(nil))
	require.NoError(t, err)
	assert.Empty(t, regsOf(result, types.CategoryInstanceVariable))
}

func TestAnalyzeInstanceHeuristicWithBlock(t *testing.T) {
	// A with block retargets assignment to another instance at runtime,
	// which the statement-shape pass cannot see. The bare target inside the
	// block is attributed to the enclosing event scope.
	src := []byte("with (o_door) {\n    locked = true\n}")
	scope := eventScope("o_player", "Step_0")

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, "objects/o_player/Step_0.gml", src, newTables(nil))
	require.NoError(t, err)

	instances := regsOf(result, types.CategoryInstanceVariable)
	require.Len(t, instances, 1)
	assert.Equal(t, "locked", instances[0].Name)
	assert.Equal(t, scope.ID, instances[0].ScopeID)

	// The with target stays a plain reference and registers nothing.
	var doorRef bool
	for _, occ := range result.References {
		if occ.Name == "o_door" {
			doorRef = true
		}
	}
	assert.True(t, doorRef)
	for _, reg := range result.Registrations {
		assert.NotEqual(t, "o_door", reg.Name)
	}
}

func TestAnalyzeReferenceBackref(t *testing.T) {
	src := []byte("var dmg = 3;\ntotal = dmg")
	scope := eventScope("o_enemy", "Step_0")
	rel := "objects/o_enemy/Step_0.gml"

	result, err := NewAnalyzer(gml.Default()).AnalyzeSource(scope, rel, src, newTables(nil))
	require.NoError(t, err)

	var dmgRef *types.IdentifierOccurrence
	for i := range result.References {
		if result.References[i].Name == "dmg" {
			dmgRef = &result.References[i]
		}
	}
	require.NotNil(t, dmgRef)
	require.NotNil(t, dmgRef.Declaration)
	assert.Equal(t, rel, dmgRef.Declaration.FilePath)
	assert.Equal(t, 4, dmgRef.Declaration.Span.Start)

	// A resolved local is not an instance variable even in an event scope.
	for _, reg := range regsOf(result, types.CategoryInstanceVariable) {
		assert.NotEqual(t, "dmg", reg.Name)
	}
}

func TestAnalyzeParseFailure(t *testing.T) {
	boom := errors.New("parser exploded")
	parser := gml.ParseFunc(func(src []byte, opts gml.ParseOptions) (*gml.Tree, error) {
		return nil, boom
	})

	_, err := NewAnalyzer(parser).AnalyzeSource(scriptScope("scr_x"), "scripts/scr_x/scr_x.gml", []byte("x"), newTables(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "scripts/scr_x/scr_x.gml")
}
