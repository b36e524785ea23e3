package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapcql/internal/cli/config"
	"github.com/leapstack-labs/leapcql/internal/testutil"
	"github.com/leapstack-labs/leapcql/pkg/cql"
)

func TestNewCompileCommand(t *testing.T) {
	cmd := NewCompileCommand()

	assert.Equal(t, "compile <file.cql...|->", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"annotations", "locators", "debug", "placeholders", "no-list-traversal", "out", "watch", "compact"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	assert.Equal(t, "validate <file.cql...>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("annotations"), "emission flags should exist")
	assert.Nil(t, cmd.Flags().Lookup("out"), "validate should not write output")
}

func TestNewLibsCommand(t *testing.T) {
	cmd := NewLibsCommand()

	assert.Equal(t, "libs", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
}

func TestNewVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("1.2.3")

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.Contains(t, out.String(), "LeapCQL v1.2.3")
}

// ---------- Pipeline Tests ----------

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.LibDir = dir
	cfg.NoCache = true
	return cfg
}

func TestCompileFilesWritesELMBesideSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "common.cql")
	require.NoError(t, os.WriteFile(src, []byte("library Common version '1.0'\ndefine \"X\": 1"), 0o644))

	var errOut bytes.Buffer
	cfg := testConfig(dir)
	logger := testutil.NewTestLogger(t)

	results, err := compileFiles(context.Background(), &errOut, cfg, logger, cql.DefaultOptions(), []string{src}, "", true)
	require.NoError(t, err)
	require.Len(t, results, 1)

	elm, err := os.ReadFile(filepath.Join(dir, "common.json"))
	require.NoError(t, err)
	assert.Contains(t, string(elm), `"library"`)
	assert.Contains(t, string(elm), `"Common"`)
}

func TestCompileFilesReportsErrors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.cql")
	require.NoError(t, os.WriteFile(src, []byte("library Broken version '1.0'\ndefine \"X\": +"), 0o644))

	var errOut bytes.Buffer
	results, err := compileFiles(context.Background(), &errOut, testConfig(dir), testutil.NewTestLogger(t), cql.DefaultOptions(), []string{src}, "", true)
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, errOut.String(), "broken.cql:2:")
	assert.Contains(t, err.Error(), "error(s)")

	_, statErr := os.Stat(filepath.Join(dir, "broken.json"))
	assert.True(t, os.IsNotExist(statErr), "no ELM should be written for failing libraries")
}

func TestCompileFilesMultipleIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cql")
	b := filepath.Join(dir, "b.cql")
	require.NoError(t, os.WriteFile(a, []byte("library A version '1.0'\ndefine \"X\": 1"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("library B version '1.0'\ndefine \"Y\": 2"), 0o644))
	out := filepath.Join(dir, "out")

	var errOut bytes.Buffer
	_, err := compileFiles(context.Background(), &errOut, testConfig(dir), testutil.NewTestLogger(t), cql.DefaultOptions(), []string{a, b}, out, true)
	require.NoError(t, err)

	for _, name := range []string{"a.json", "b.json"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, "expected %s", name)
	}
}

func TestCompileFilesCycleFailsOnlyImplicatedLibraries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cql")
	standalone := filepath.Join(dir, "standalone.cql")
	require.NoError(t, os.WriteFile(a, []byte("library A version '1.0'\ninclude B version '1.0' called B1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cql"), []byte("library B version '1.0'\ninclude A version '1.0' called A1"), 0o644))
	require.NoError(t, os.WriteFile(standalone, []byte("library Standalone version '1.0'\ndefine \"X\": 1"), 0o644))

	var errOut bytes.Buffer
	_, err := compileFiles(context.Background(), &errOut, testConfig(dir), testutil.NewTestLogger(t), cql.DefaultOptions(), []string{a, standalone}, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Equal(t, 1, strings.Count(errOut.String(), "include cycle"), "stderr: %s", errOut.String())

	// The unrelated library in the batch still compiles
	_, statErr := os.Stat(filepath.Join(dir, "standalone.json"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dir, "a.json"))
	assert.True(t, os.IsNotExist(statErr), "no ELM should be written for the cyclic library")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("lib", "m.json"), outputPath(filepath.Join("lib", "m.cql"), "", false))
	assert.Equal(t, "out.json", outputPath(filepath.Join("lib", "m.cql"), "out.json", false))
	assert.Equal(t, filepath.Join("out", "m.json"), outputPath(filepath.Join("lib", "m.cql"), "out", true))
}

func TestAffectedInputsNarrowsToDependents(t *testing.T) {
	dir := t.TempDir()
	measure := filepath.Join(dir, "measure.cql")
	other := filepath.Join(dir, "other.cql")
	common := filepath.Join(dir, "common.cql")
	require.NoError(t, os.WriteFile(measure, []byte("library Measure version '1.0'\ninclude Common version '1.0' called C\ndefine \"X\": C.\"Y\""), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("library Other version '1.0'\ndefine \"Z\": 3"), 0o644))
	require.NoError(t, os.WriteFile(common, []byte("library Common version '1.0'\ndefine \"Y\": 1"), 0o644))

	cfg := testConfig(dir)
	targets := affectedInputs(context.Background(), cfg, testutil.NewTestLogger(t), cql.DefaultOptions(), []string{measure, other}, []string{common})
	assert.Equal(t, []string{measure}, targets)
}
