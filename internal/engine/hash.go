package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/schemagen/internal/cli/config"
)

// inputHash fingerprints everything that feeds a generate task: the tool
// identity and resolved version, the invocation arguments and environment,
// the opaque spec payload, and the content of every matched input file.
// A changed fingerprint means the task is out of date.
func inputHash(gen *config.GeneratorConfig, tool *config.ToolConfig, version string) (string, error) {
	h := sha256.New()

	fmt.Fprintf(h, "tool=%s module=%s channel=%s version=%s\n",
		tool.Name, tool.Module, tool.Channel, version)
	fmt.Fprintf(h, "output_dir=%s\n", gen.OutputDir)

	for _, arg := range gen.Args {
		fmt.Fprintf(h, "arg=%s\n", arg)
	}

	envKeys := make([]string, 0, len(gen.Env))
	for k := range gen.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		fmt.Fprintf(h, "env=%s=%s\n", k, gen.Env[k])
	}

	// YAML marshalling sorts map keys, so the spec serializes stably.
	specBytes, err := yaml.Marshal(gen.Spec)
	if err != nil {
		return "", fmt.Errorf("failed to serialize spec: %w", err)
	}
	h.Write(specBytes)

	files, err := matchInputs(gen.Inputs)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if err := hashFile(h, f); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// matchInputs expands the input globs into a sorted, de-duplicated file list.
func matchInputs(globs []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, fmt.Errorf("invalid input pattern %q: %w", g, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read input %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(h, "file=%s\n", path)
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash input %s: %w", path, err)
	}
	return nil
}
