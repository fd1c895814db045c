package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagen/internal/cli/testutil"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := NewRootCmd()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func projectArgs(t *testing.T, root string, args ...string) []string {
	t.Helper()
	base := []string{
		"--project-dir", root,
		"--state", filepath.Join(root, ".schemagen", "state.db"),
	}
	return append(args, base...)
}

func TestRootCommandMetadata(t *testing.T) {
	rootCmd := NewRootCmd()

	assert.Equal(t, "schemagen", rootCmd.Use)
	for _, flag := range []string{"config", "project-dir", "state", "env", "verbose", "output", "jobs"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootUnknownCommand(t *testing.T) {
	_, err := executeRoot(t, "frobnicate")
	require.Error(t, err)
}

func TestListCommand(t *testing.T) {
	root := testutil.SetupTestProject(t)

	out, err := executeRoot(t, projectArgs(t, root, "list", "--output", "markdown")...)
	require.NoError(t, err)

	assert.Contains(t, out, "Generators (1 total)")
	assert.Contains(t, out, "## main")
	assert.Contains(t, out, "jet@2.11.0")
}

func TestGraphCommand(t *testing.T) {
	root := testutil.SetupTestProject(t)

	out, err := executeRoot(t, projectArgs(t, root, "graph")...)
	require.NoError(t, err)

	assert.Contains(t, out, "generate:main")
	assert.Contains(t, out, "clean:main")
	assert.Contains(t, out, "depends on: clean:main")
	assert.Contains(t, out, "Entry tasks: clean:main")
	assert.Contains(t, out, "Final tasks: generate:main")
}

func TestGraphCommandJSON(t *testing.T) {
	root := testutil.SetupTestProject(t)

	out, err := executeRoot(t, projectArgs(t, root, "graph", "--output", "json")...)
	require.NoError(t, err)

	assert.Contains(t, out, `"level": 0`)
	assert.Contains(t, out, `"clean:main"`)
}

func TestGraphCommandDot(t *testing.T) {
	root := testutil.SetupTestProject(t)

	out, err := executeRoot(t, projectArgs(t, root, "graph", "--dot")...)
	require.NoError(t, err)

	assert.Contains(t, out, "digraph tasks {")
	assert.Contains(t, out, `"clean:main" -> "generate:main";`)
}

func TestCleanCommand(t *testing.T) {
	root := testutil.SetupTestProject(t)

	genDir := filepath.Join(root, "gen", "main")
	require.NoError(t, os.MkdirAll(genDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(genDir, "models.go"), []byte("package models\n"), 0o600))

	out, err := executeRoot(t, projectArgs(t, root, "clean")...)
	require.NoError(t, err)
	assert.Contains(t, out, "clean:main")

	_, statErr := os.Stat(genDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInvalidConfigFails(t *testing.T) {
	root := t.TempDir()
	bad := `generators:
  "bad name":
    output_dir: gen
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "schemagen.yaml"), []byte(bad), 0o600))

	_, err := executeRoot(t, projectArgs(t, root, "list")...)
	require.Error(t, err)
}
