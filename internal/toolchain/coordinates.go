// Package toolchain resolves the external schema code generator: it maps tool
// names and distribution channels to module coordinates, pins versions from
// exact pins or semver constraints, and installs resolved binaries into the
// tool cache. It never runs the generator itself.
package toolchain

import (
	"fmt"
	"strings"

	"golang.org/x/mod/module"
)

// Coordinate identifies one generator artifact: a module path and a version.
type Coordinate struct {
	Module  string
	Version string
}

// String returns the module@version form.
func (c Coordinate) String() string {
	if c.Version == "" {
		return c.Module
	}
	return c.Module + "@v" + strings.TrimPrefix(c.Version, "v")
}

// toolSpec describes a known generator tool.
type toolSpec struct {
	// modulePath is the oss-channel module
	modulePath string
	// cmdPath is the package installed to produce the binary, relative to
	// the module root ("" when the module root is the command)
	cmdPath string
	// artifacts are companion submodule suffixes pinned alongside the main
	// module so that every artifact of a tool agrees on channel and version
	artifacts []string
}

// coordinateTable maps built-in tool names to their oss coordinates.
// Unknown tools require an explicit module in the config.
var coordinateTable = map[string]toolSpec{
	"jet":  {modulePath: "github.com/go-jet/jet/v2", cmdPath: "cmd/jet"},
	"sqlc": {modulePath: "github.com/sqlc-dev/sqlc", cmdPath: "cmd/sqlc"},
	"xo":   {modulePath: "github.com/xo/xo"},
}

// KnownTools returns the built-in tool names.
func KnownTools() []string {
	names := make([]string, 0, len(coordinateTable))
	for name := range coordinateTable {
		names = append(names, name)
	}
	return names
}

// ChannelModule rewrites a module path for a distribution channel. The oss
// channel leaves the path untouched; trial and enterprise substitute the
// final path element, mirroring how commercial generator distributions ship
// under a parallel group.
func ChannelModule(modulePath, channel string) (string, error) {
	switch strings.ToLower(channel) {
	case "", "oss":
		return modulePath, nil
	case "trial", "enterprise":
		return rewriteLastElement(modulePath, strings.ToLower(channel))
	default:
		return "", fmt.Errorf("unknown channel %q", channel)
	}
}

// rewriteLastElement appends "-<channel>" to the last non-version path element.
func rewriteLastElement(modulePath, channel string) (string, error) {
	parts := strings.Split(modulePath, "/")
	idx := len(parts) - 1
	if isMajorSuffix(parts[idx]) {
		idx--
	}
	if idx < 1 {
		return "", fmt.Errorf("module path %q has no group to rewrite", modulePath)
	}
	parts[idx] = parts[idx] + "-" + channel
	rewritten := strings.Join(parts, "/")
	if err := module.CheckPath(rewritten); err != nil {
		return "", fmt.Errorf("rewritten module path %q is invalid: %w", rewritten, err)
	}
	return rewritten, nil
}

// isMajorSuffix reports whether a path element is a module major-version
// suffix like "v2".
func isMajorSuffix(elem string) bool {
	if len(elem) < 2 || elem[0] != 'v' {
		return false
	}
	for _, r := range elem[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LookupModule resolves a tool name to its module path for a channel,
// honoring an explicit module override. Overrides skip the coordinate table
// but still get the channel rewrite so every artifact agrees on channel.
func LookupModule(name, moduleOverride, channel string) (string, error) {
	modulePath := moduleOverride
	if modulePath == "" {
		spec, ok := coordinateTable[name]
		if !ok {
			return "", fmt.Errorf("unknown tool %q: set tool.module explicitly (built-in: %s)",
				name, strings.Join(KnownTools(), ", "))
		}
		modulePath = spec.modulePath
	}

	if err := module.CheckPath(modulePath); err != nil {
		return "", fmt.Errorf("invalid module path %q: %w", modulePath, err)
	}

	return ChannelModule(modulePath, channel)
}

// InstallPath returns the package path passed to go install for a tool.
func InstallPath(name, modulePath string) string {
	if spec, ok := coordinateTable[name]; ok && spec.cmdPath != "" {
		return modulePath + "/" + spec.cmdPath
	}
	return modulePath
}

// PinnedArtifacts returns every package coordinate pinned for a tool: the
// main command first, then any companion commands from the coordinate table
// and the configuration, all on the same channel-rewritten module at the
// same version.
func PinnedArtifacts(name, modulePath, version string, companions []string) []Coordinate {
	coords := []Coordinate{{Module: InstallPath(name, modulePath), Version: version}}

	var suffixes []string
	if spec, ok := coordinateTable[name]; ok {
		suffixes = append(suffixes, spec.artifacts...)
	}
	suffixes = append(suffixes, companions...)

	seen := map[string]bool{coords[0].Module: true}
	for _, suffix := range suffixes {
		pkg := modulePath + "/" + strings.Trim(suffix, "/")
		if seen[pkg] {
			continue
		}
		seen[pkg] = true
		coords = append(coords, Coordinate{Module: pkg, Version: version})
	}
	return coords
}
