// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/schemagen/internal/cli/output"
)

// SetupTestProject creates a temporary project with a minimal configuration
// and a schema input file, returning the project root.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tmpDir, "db"), 0o755); err != nil {
		t.Fatalf("failed to create db directory: %v", err)
	}

	schema := `CREATE TABLE customers (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);`
	if err := os.WriteFile(filepath.Join(tmpDir, "db", "schema.sql"), []byte(schema), 0o644); err != nil {
		t.Fatalf("failed to create schema.sql: %v", err)
	}

	cfg := `tool:
  name: jet
  version: 2.11.0

compile:
  disabled: true

generators:
  main:
    output_dir: gen/main
    inputs:
      - db/schema.sql
    spec:
      source: postgres
      schema: public
`
	if err := os.WriteFile(filepath.Join(tmpDir, "schemagen.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to create schemagen.yaml: %v", err)
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and
// TTY state. Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the captured stdout output.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the captured stderr output.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}
