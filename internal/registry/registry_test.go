package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcql/internal/loader"
	"github.com/leapstack-labs/leapcql/pkg/compiler"
	"github.com/leapstack-labs/leapcql/pkg/cql"
)

func writeLib(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

// newRegistry builds a loaded registry over dir with the compiler
// wired back to it as provider.
func newRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	comp := compiler.New(cql.DefaultOptions())
	reg := New(loader.New(dir), comp)
	comp.WithProvider(reg)
	require.NoError(t, reg.Load(context.Background()))
	return reg
}

// ---------- Include Scanning Tests ----------

func TestScanIncludes(t *testing.T) {
	refs := scanIncludes(`library Measure version '1.0'
include Common version '1.0.0' called C
include "Shared Helpers" called H
include FHIRHelpers
define "X": 1`)

	require.Len(t, refs, 3)
	assert.Equal(t, includeRef{name: "Common", version: "1.0.0"}, refs[0])
	assert.Equal(t, includeRef{name: "Shared Helpers"}, refs[1])
	assert.Equal(t, includeRef{name: "FHIRHelpers"}, refs[2])
}

// ---------- Load Tests ----------

func TestLoadBuildsIncludeGraph(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "measure.cql", "library Measure version '1.0'\ninclude Common version '1.0' called C\ndefine \"X\": C.\"Y\"")
	writeLib(t, dir, "common.cql", "library Common version '1.0'\ndefine \"Y\": 1")

	reg := newRegistry(t, dir)

	graph := reg.Graph()
	assert.Equal(t, 2, graph.Size())
	assert.Equal(t, []string{"Common@1.0"}, graph.Includes("Measure@1.0"))
}

func TestCycleCompilesToSingleFatalDiagnostic(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "a.cql", "library A version '1.0'\ninclude B version '1.0' called B1")
	writeLib(t, dir, "b.cql", "library B version '1.0'\ninclude A version '1.0' called A1")

	reg := newRegistry(t, dir)

	src, err := reg.loader.Resolve(context.Background(), "A", "1.0")
	require.NoError(t, err)
	res, err := reg.Compile(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, cql.SeverityError, d.Severity)
	assert.Equal(t, cql.StageSemantic, d.Stage)
	assert.Equal(t, "include cycle: A@1.0 -> B@1.0 -> A@1.0", d.Message)
}

func TestCycleDoesNotAffectOtherLibraries(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "a.cql", "library A version '1.0'\ninclude B version '1.0' called B1")
	writeLib(t, dir, "b.cql", "library B version '1.0'\ninclude A version '1.0' called A1")
	writeLib(t, dir, "standalone.cql", "library Standalone version '1.0'\ndefine \"X\": 1")

	reg := newRegistry(t, dir)

	res, err := reg.Resolve(context.Background(), "Standalone", "1.0")
	require.NoError(t, err)
	assert.False(t, res.HasErrors(), "diagnostics: %v", res.Diagnostics)
}

func TestIncludingCycleMemberReportsUnavailableDependency(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "a.cql", "library A version '1.0'\ninclude B version '1.0' called B1")
	writeLib(t, dir, "b.cql", "library B version '1.0'\ninclude A version '1.0' called A1")
	writeLib(t, dir, "measure.cql", "library Measure version '1.0'\ninclude A version '1.0' called A1\ndefine \"X\": 1")

	reg := newRegistry(t, dir)

	res, err := reg.Resolve(context.Background(), "Measure", "1.0")
	require.NoError(t, err)
	require.True(t, res.HasErrors())
	assert.Contains(t, res.Diagnostics[0].Message, "dependency unavailable")
	assert.Contains(t, res.Diagnostics[0].Message, "include cycle")
}

func TestLoadIgnoresUnresolvableIncludes(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "measure.cql", "library Measure version '1.0'\ninclude Missing version '1.0' called M")

	reg := newRegistry(t, dir)
	assert.Equal(t, 1, reg.Graph().Size())
}

// ---------- Compile Tests ----------

func TestResolveCompilesDependencyChain(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "measure.cql", "library Measure version '1.0'\ninclude Common version '1.0' called C\ndefine \"X\": C.\"Y\"")
	writeLib(t, dir, "common.cql", "library Common version '1.0'\ndefine \"Y\": 1")

	reg := newRegistry(t, dir)

	res, err := reg.Resolve(context.Background(), "Measure", "1.0")
	require.NoError(t, err)
	assert.False(t, res.HasErrors(), "diagnostics: %v", res.Diagnostics)
}

func TestResolveUnknownLibrary(t *testing.T) {
	reg := newRegistry(t, t.TempDir())

	_, err := reg.Resolve(context.Background(), "Missing", "1.0")
	var notFound *loader.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCompileMemoizesPerLoad(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "common.cql", "library Common version '1.0'\ndefine \"Y\": 1")

	reg := newRegistry(t, dir)

	src, err := reg.loader.Resolve(context.Background(), "Common", "1.0")
	require.NoError(t, err)

	first, err := reg.Compile(context.Background(), src)
	require.NoError(t, err)
	second, err := reg.Compile(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCompileConcurrent(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "measure.cql", "library Measure version '1.0'\ninclude Common version '1.0' called C\ndefine \"X\": C.\"Y\"")
	writeLib(t, dir, "common.cql", "library Common version '1.0'\ndefine \"Y\": 1")

	reg := newRegistry(t, dir)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Resolve(context.Background(), "Measure", "1.0")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

// ---------- Cache Tests ----------

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elm, ok := c.entries[key]
	return elm, ok, nil
}

func (c *memCache) Put(_ context.Context, key string, elm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[key] = elm
	return nil
}

func TestCleanResultIsCached(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "common.cql", "library Common version '1.0'\ndefine \"Y\": 1")

	cache := newMemCache()
	comp := compiler.New(cql.DefaultOptions())
	reg := New(loader.New(dir), comp).WithCache(cache)
	comp.WithProvider(reg)
	require.NoError(t, reg.Load(context.Background()))

	_, err := reg.Resolve(context.Background(), "Common", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.puts)

	// A fresh Load drops the memo, so the next compile hits the cache.
	require.NoError(t, reg.Load(context.Background()))
	res, err := reg.Resolve(context.Background(), "Common", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.puts)
	assert.NotNil(t, res.ELM["library"])
}

func TestResultWithDiagnosticsIsNotCached(t *testing.T) {
	dir := t.TempDir()
	writeLib(t, dir, "broken.cql", "library Broken version '1.0'\ndefine \"X\": +")

	cache := newMemCache()
	comp := compiler.New(cql.DefaultOptions())
	reg := New(loader.New(dir), comp).WithCache(cache)
	comp.WithProvider(reg)
	require.NoError(t, reg.Load(context.Background()))

	res, err := reg.Resolve(context.Background(), "Broken", "1.0")
	require.NoError(t, err)
	assert.True(t, res.HasErrors())
	assert.Zero(t, cache.puts)
}

func TestCacheKeyChangesWithSourceAndOptions(t *testing.T) {
	comp := compiler.New(cql.DefaultOptions())
	reg := New(loader.New(), comp)

	base := &loader.Source{Name: "Common", Version: "1.0", Content: "define \"X\": 1"}
	edited := &loader.Source{Name: "Common", Version: "1.0", Content: "define \"X\": 2"}
	assert.NotEqual(t, reg.cacheKey(base), reg.cacheKey(edited))

	opts := cql.DefaultOptions()
	opts.DebugMode = true
	other := New(loader.New(), compiler.New(opts))
	assert.NotEqual(t, reg.cacheKey(base), other.cacheKey(base))
}
