package build

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmtooling/gmscope/internal/cache"
	"github.com/gmtooling/gmscope/internal/errors"
	"github.com/gmtooling/gmscope/internal/gml"
)

// countingParser counts Parse invocations across workers.
type countingParser struct {
	inner gml.Parser
	calls atomic.Int64
}

func (p *countingParser) Parse(src []byte, opts gml.ParseOptions) (*gml.Tree, error) {
	p.calls.Add(1)
	return p.inner.Parse(src, opts)
}

func TestEnsureReadyBuildsThenHitsCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{})

	first, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, first.Source)
	assert.Equal(t, cache.MissNoFile, first.MissReason)
	assert.Equal(t, cache.SaveWritten, first.SaveResult)
	require.NoError(t, first.SaveErr)

	second, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, cache.SaveNone, second.SaveResult)

	// The cached index survives the JSON round trip intact.
	require.Equal(t, first.Index, second.Index)
	assert.Equal(t, first.Summary.SourceCount, second.Summary.SourceCount)
}

func TestEnsureReadyInvalidatesOnManifestChange(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{})

	_, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)

	touch(t, fs, projRoot+"/objects/o_player/o_player.yy")

	result, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, result.Source)
	assert.Equal(t, cache.MissManifestMtimes, result.MissReason)
}

func TestEnsureReadyInvalidatesOnSourceChange(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{})

	_, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)

	touch(t, fs, projRoot+"/scripts/scr_attack/scr_attack.gml")

	result, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, result.Source)
	assert.Equal(t, cache.MissSourceMtimes, result.MissReason)
}

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	info, err := fs.Stat(path)
	require.NoError(t, err)
	next := info.ModTime().Add(10 * time.Millisecond)
	require.NoError(t, fs.Chtimes(path, next, next))
}

func TestEnsureReadyConcurrentCallersShareOneBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	parser := &countingParser{inner: gml.Default()}
	coord := NewCoordinator(fs, Options{Parser: parser})

	const callers = 8
	results := make([]*Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.EnsureReady(context.Background(), projRoot)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		require.Equal(t, results[0].Index, results[i].Index)
	}

	// Whether a caller joined the in-flight build or hit the freshly
	// written cache, the four sources parse exactly once.
	assert.Equal(t, int64(4), parser.calls.Load())
}

func TestEnsureReadyNoCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{NoCache: true})

	first, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, first.Source)
	assert.Equal(t, cache.SaveNone, first.SaveResult)

	second, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, second.Source)

	exists, err := afero.Exists(fs, cache.DefaultPath(projRoot))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureReadySaveFailureStaysInMetadata(t *testing.T) {
	base := afero.NewMemMapFs()
	writeProject(t, base)
	coord := NewCoordinator(afero.NewReadOnlyFs(base), Options{})

	result, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, result.Source)
	assert.NotNil(t, result.Index)
	assert.Equal(t, cache.SaveFailed, result.SaveResult)
	assert.Error(t, result.SaveErr)
}

func TestEnsureReadyDistinctRoots(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	write(t, fs, "/other/scripts/scr_solo/scr_solo.yy", `{"resourceType":"GMScript","name":"scr_solo"}`)
	write(t, fs, "/other/scripts/scr_solo/scr_solo.gml", "function scr_solo() { }\n")

	coord := NewCoordinator(fs, Options{})

	a, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	b, err := coord.EnsureReady(context.Background(), "/other")
	require.NoError(t, err)

	assert.Equal(t, projRoot, a.Index.ProjectRoot)
	assert.Equal(t, "/other", b.Index.ProjectRoot)
	assert.Len(t, b.Index.Identifiers.Scripts, 1)
}

func TestEnsureReadyCanceledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := coord.EnsureReady(ctx, projRoot)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var buildErr *errors.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, projRoot, buildErr.ProjectRoot)
	assert.Equal(t, "index", buildErr.Operation)
}

func TestEnsureReadyAfterDispose(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{})

	_, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)

	coord.Dispose()

	_, err = coord.EnsureReady(context.Background(), projRoot)
	assert.ErrorIs(t, err, errors.ErrDisposed)
	assert.ErrorIs(t, coord.Clean(projRoot), errors.ErrDisposed)
}

func TestCoordinatorClean(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeProject(t, fs)
	coord := NewCoordinator(fs, Options{})

	_, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, cache.DefaultPath(projRoot))
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, coord.Clean(projRoot))

	exists, err = afero.Exists(fs, cache.DefaultPath(projRoot))
	require.NoError(t, err)
	assert.False(t, exists)

	result, err := coord.EnsureReady(context.Background(), projRoot)
	require.NoError(t, err)
	assert.Equal(t, SourceBuild, result.Source)
	assert.Equal(t, cache.MissNoFile, result.MissReason)
}
