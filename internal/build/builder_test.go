package build

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmtooling/gmscope/internal/builtins"
	"github.com/gmtooling/gmscope/internal/errors"
	"github.com/gmtooling/gmscope/internal/gml"
	"github.com/gmtooling/gmscope/internal/scan"
	"github.com/gmtooling/gmscope/internal/types"
)

const projRoot = "/proj"

func write(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

// writeProject lays down a small but representative project: two scripts
// with a call between them, an object with one event, and one orphan
// source file no manifest claims.
func writeProject(t *testing.T, fs afero.Fs) {
	t.Helper()

	write(t, fs, projRoot+"/game.yyp", `{"resourceType":"GMProject","name":"game",}`)

	write(t, fs, projRoot+"/scripts/scr_attack/scr_attack.yy",
		`{"resourceType":"GMScript","name":"scr_attack",}`)
	write(t, fs, projRoot+"/scripts/scr_attack/scr_attack.gml",
		"function scr_attack(target) {\n\tvar dmg = scr_damage();\n\treturn dmg;\n}\n")

	write(t, fs, projRoot+"/scripts/scr_damage/scr_damage.yy",
		`{"resourceType":"GMScript","name":"scr_damage",}`)
	write(t, fs, projRoot+"/scripts/scr_damage/scr_damage.gml",
		"#macro BASE_DMG 5\nfunction scr_damage() {\n\treturn global.atk_power * BASE_DMG;\n}\n")

	write(t, fs, projRoot+"/objects/o_player/o_player.yy", `{
		"resourceType": "GMObject",
		"name": "o_player",
		"spriteId": {"name": "spr_player", "path": "sprites/spr_player/spr_player.yy",},
		"eventList": [
			{"eventType": 0, "eventNum": 0,},
		],
	}`)
	write(t, fs, projRoot+"/objects/o_player/Create_0.gml", "hp = 100;\nscr_damage();\n")

	write(t, fs, projRoot+"/helpers.gml", "function helper_max(a, b) {\n\treturn a;\n}\n")
}

func buildProject(t *testing.T, fs afero.Fs, workers int) *types.ProjectIndex {
	t.Helper()
	builder := NewBuilder(fs, nil, nil, workers)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), projRoot)
	require.NoError(t, err)
	idx, _, err := builder.Build(context.Background(), projRoot, fp)
	require.NoError(t, err)
	return idx
}

func TestBuildProducesIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)

	builder := NewBuilder(fs, nil, nil, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), projRoot)
	require.NoError(t, err)
	idx, summary, err := builder.Build(context.Background(), projRoot, fp)
	require.NoError(t, err)

	assert.Equal(t, projRoot, idx.ProjectRoot)
	assert.Len(t, idx.Resources, 4)
	assert.Len(t, idx.Files, 4)
	assert.Len(t, idx.Scopes, 4)

	assert.Equal(t, types.ResourceProject, idx.Resources["game.yyp"].Type)

	attack := idx.Scopes[types.ScriptScopeID("scr_attack")]
	require.NotNil(t, attack)
	assert.Equal(t, types.ScopeKindScript, attack.Kind)
	assert.Equal(t, []string{"scripts/scr_attack/scr_attack.gml"}, attack.Files)

	// The synthetic self-declaration comes first, the real one after it.
	require.GreaterOrEqual(t, len(attack.Declarations), 2)
	assert.True(t, attack.Declarations[0].IsSynthetic)
	assert.Equal(t, "scr_attack", attack.Declarations[0].Name)
	assert.False(t, attack.Declarations[1].IsSynthetic)

	attackFile := idx.Files["scripts/scr_attack/scr_attack.gml"]
	require.NotNil(t, attackFile)
	assert.Equal(t, attack.ID, attackFile.ScopeID)
	assert.NotZero(t, attackFile.Checksum)

	event := idx.Scopes[types.ObjectEventScopeID("o_player", "Create_0")]
	require.NotNil(t, event)
	assert.Equal(t, types.ScopeKindObjectEvent, event.Kind)

	orphan := idx.Scopes[types.FileScopeID("helpers.gml")]
	require.NotNil(t, orphan)
	assert.Equal(t, types.ScopeKindFile, orphan.Kind)

	ids := idx.Identifiers
	assert.Len(t, ids.Scripts, 2)
	assert.Len(t, ids.Macros, 1)
	assert.Len(t, ids.GlobalVariables, 1)
	assert.Len(t, ids.InstanceVariables, 1)
	assert.Empty(t, ids.Enums)

	macro := ids.Macros["BASE_DMG"]
	require.NotNil(t, macro)
	assert.Len(t, macro.Declarations, 1)
	assert.Len(t, macro.References, 1)

	global := ids.GlobalVariables["atk_power"]
	require.NotNil(t, global)
	assert.Empty(t, global.Declarations)
	assert.Len(t, global.References, 1)

	hp := ids.InstanceVariables["scope:objectEvent:o_player:Create_0:hp"]
	require.NotNil(t, hp)
	assert.Len(t, hp.Declarations, 1)

	damage := ids.Scripts[types.ScriptScopeID("scr_damage")]
	require.NotNil(t, damage)
	assert.Len(t, damage.References, 2)

	require.Len(t, idx.Relationships.Calls, 2)
	for _, call := range idx.Relationships.Calls {
		assert.Equal(t, "scr_damage", call.Callee)
		assert.True(t, call.IsResolved)
	}

	require.Len(t, idx.Relationships.AssetRefs, 1)
	ref := idx.Relationships.AssetRefs[0]
	assert.Equal(t, "spriteId", ref.PropertyPath)
	assert.Equal(t, "sprites/spr_player/spr_player.yy", ref.TargetPath)
	assert.Equal(t, types.ResourceUnknown, ref.TargetType)

	assert.Equal(t, 4, summary.ManifestCount)
	assert.Equal(t, 4, summary.SourceCount)
	assert.Equal(t, 0, summary.SkippedManifests)
	assert.Equal(t, 2, summary.CallCount)
	assert.Equal(t, 2, summary.ResolvedCallCount)
	assert.Equal(t, 1, summary.AssetRefCount)
	assert.Equal(t, types.DefaultWorkerCount, summary.Workers)
	assert.Equal(t, 2, summary.IdentifierCounts["script"])
	assert.Equal(t, 1, summary.IdentifierCounts["instanceVariable"])
}

func TestBuildIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)

	first := buildProject(t, fs, 0)
	second := buildProject(t, fs, 0)
	require.Equal(t, first, second)
}

func TestBuildDeterministicAcrossWorkerCounts(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)

	serial := buildProject(t, fs, 1)
	parallel := buildProject(t, fs, 16)
	require.Equal(t, serial, parallel)
}

func TestBuildEmptyProject(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/empty", 0o755))

	builder := NewBuilder(fs, nil, nil, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), "/empty")
	require.NoError(t, err)
	idx, summary, err := builder.Build(context.Background(), "/empty", fp)
	require.NoError(t, err)

	assert.Empty(t, idx.Resources)
	assert.Empty(t, idx.Scopes)
	assert.Empty(t, idx.Files)
	assert.Equal(t, 0, idx.Identifiers.Total())
	assert.Equal(t, 0, summary.SourceCount)
}

func TestBuildSyntheticSelfDeclarationOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/p/scripts/scr_empty/scr_empty.yy", `{"resourceType":"GMScript","name":"scr_empty"}`)
	write(t, fs, "/p/scripts/scr_empty/scr_empty.gml", "// nothing here\n")

	builder := NewBuilder(fs, nil, nil, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), "/p")
	require.NoError(t, err)
	idx, _, err := builder.Build(context.Background(), "/p", fp)
	require.NoError(t, err)

	entry := idx.Identifiers.Scripts[types.ScriptScopeID("scr_empty")]
	require.NotNil(t, entry)
	require.Len(t, entry.Declarations, 1)
	assert.True(t, entry.Declarations[0].IsSynthetic)
	assert.Equal(t, types.SyntheticLocation, entry.Declarations[0].Location())
}

func TestBuildScopeWithoutSourceFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/p/scripts/scr_ghost/scr_ghost.yy", `{"resourceType":"GMScript","name":"scr_ghost"}`)

	builder := NewBuilder(fs, nil, nil, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), "/p")
	require.NoError(t, err)
	idx, _, err := builder.Build(context.Background(), "/p", fp)
	require.NoError(t, err)

	scope := idx.Scopes[types.ScriptScopeID("scr_ghost")]
	require.NotNil(t, scope)
	assert.Empty(t, scope.Files)
	require.Len(t, scope.Declarations, 1)
	assert.True(t, scope.Declarations[0].IsSynthetic)
	assert.Empty(t, idx.Files)
}

func TestBuildBuiltinExclusion(t *testing.T) {
	fs := afero.NewMemMapFs()
	write(t, fs, "/b/builtins.txt", "show_debug_message(str)\nroom_speed*\n")
	write(t, fs, "/p/scripts/scr_log/scr_log.yy", `{"resourceType":"GMScript","name":"scr_log"}`)
	write(t, fs, "/p/scripts/scr_log/scr_log.gml", "show_debug_message(room_speed);\n")

	registry := builtins.NewRegistry(fs, "/b/builtins.txt")
	builder := NewBuilder(fs, nil, registry, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), "/p")
	require.NoError(t, err)
	idx, _, err := builder.Build(context.Background(), "/p", fp)
	require.NoError(t, err)

	scope := idx.Scopes[types.ScriptScopeID("scr_log")]
	require.NotNil(t, scope)
	require.Len(t, scope.Ignored, 2)
	for _, occ := range scope.Ignored {
		assert.True(t, occ.IsBuiltin)
	}

	// Built-ins never reach the collections or the call graph.
	assert.Len(t, idx.Identifiers.Scripts, 1)
	assert.Empty(t, idx.Relationships.Calls)
	assert.Empty(t, idx.Identifiers.GlobalVariables)
}

func TestBuildParseFailurePropagates(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)

	failing := gml.ParseFunc(func(src []byte, opts gml.ParseOptions) (*gml.Tree, error) {
		return nil, assert.AnError
	})
	builder := NewBuilder(fs, failing, nil, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), projRoot)
	require.NoError(t, err)

	_, _, err = builder.Build(context.Background(), projRoot, fp)
	require.Error(t, err)

	var srcErr *errors.SourceError
	assert.ErrorAs(t, err, &srcErr)
}

func TestBuildCancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := NewBuilder(fs, nil, nil, 0)
	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), projRoot)
	require.NoError(t, err)

	_, _, err = builder.Build(ctx, projRoot, fp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFingerprintMaps(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)

	fp, err := Fingerprint(fs, scan.NewScanner(fs, nil), projRoot)
	require.NoError(t, err)

	assert.Len(t, fp.ManifestMtimes, 4)
	assert.Len(t, fp.SourceMtimes, 4)
	assert.Contains(t, fp.ManifestMtimes, "game.yyp")
	assert.Contains(t, fp.SourceMtimes, "objects/o_player/Create_0.gml")
	for _, mtime := range fp.SourceMtimes {
		assert.Greater(t, mtime, 0.0)
	}
}
