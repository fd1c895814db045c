// Package config provides configuration management for the schemagen CLI.
//
// Configuration is layered the same way across every command:
// flags > SCHEMAGEN_* environment variables > schemagen.yaml > defaults.
package config

import "time"

// ToolConfig identifies the external schema code generator to invoke.
type ToolConfig struct {
	// Name is the generator binary name (e.g. "jet", "xo", "sqlc")
	Name string `koanf:"name"`

	// Module overrides the module path resolved from the coordinate table
	Module string `koanf:"module"`

	// Version is an exact version or a semver constraint (e.g. "2.11.0", "^2.10")
	Version string `koanf:"version"`

	// Channel selects the distribution channel: oss, trial, enterprise
	Channel string `koanf:"channel"`

	// CacheDir overrides the tool cache location (default ~/.cache/schemagen/tools)
	CacheDir string `koanf:"cache_dir"`

	// Artifacts lists companion command paths (relative to the module root)
	// installed alongside the main binary at the same channel and version
	Artifacts []string `koanf:"artifacts"`
}

// CompileConfig holds the compile lifecycle step configuration.
type CompileConfig struct {
	// Command is the compiler invocation (default: go build ./...)
	Command []string `koanf:"command"`

	// Disabled skips the compile step entirely
	Disabled bool `koanf:"disabled"`
}

// GeneratorConfig holds one named generator invocation block.
// The Spec payload is opaque: schemagen serializes it for the generator
// process and never interprets its contents.
type GeneratorConfig struct {
	// OutputDir is where the generator writes sources (required)
	OutputDir string `koanf:"output_dir"`

	// Inputs are globs of files feeding this invocation (schema files,
	// migrations). Used for up-to-date checks, never parsed.
	Inputs []string `koanf:"inputs"`

	// DependsOn names other generator blocks that must run first
	DependsOn []string `koanf:"depends_on"`

	// Version overrides the project tool version pin for this block
	Version string `koanf:"version"`

	// Env adds environment variables to the generator process
	Env map[string]string `koanf:"env"`

	// Args appends extra arguments to the generator invocation
	Args []string `koanf:"args"`

	// Timeout bounds the generator process (Go duration string, e.g. "5m")
	Timeout string `koanf:"timeout"`

	// Spec is the pass-through configuration object for the generator
	Spec map[string]any `koanf:"spec"`
}

// TimeoutDuration parses the block timeout, falling back to the default
// when unset or malformed input was already rejected by Validate.
func (g *GeneratorConfig) TimeoutDuration() time.Duration {
	if g.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return DefaultTimeout
	}
	return d
}

// EnvConfig holds environment-specific configuration overrides. Tool and
// generator settings merge field-wise over the base config; compile replaces
// it wholesale.
type EnvConfig struct {
	Tool       *ToolConfig                 `koanf:"tool"`
	Compile    *CompileConfig              `koanf:"compile"`
	Generators map[string]*GeneratorConfig `koanf:"generators"`
}

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is inferred at load time, not read from the file
	ProjectRoot string `koanf:"-"`

	StatePath    string                      `koanf:"state_path"`
	Environment  string                      `koanf:"environment"`
	Verbose      bool                        `koanf:"verbose"`
	OutputFormat string                      `koanf:"output"`
	Jobs         int                         `koanf:"jobs"`
	Tool         *ToolConfig                 `koanf:"tool"`
	Compile      *CompileConfig              `koanf:"compile"`
	Generators   map[string]*GeneratorConfig `koanf:"generators"`
	Environments map[string]EnvConfig        `koanf:"environments"`
}

// Default configuration values.
const (
	DefaultStateFile = ".schemagen/state.db"
	DefaultEnv       = "dev"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultJobs      = 1
	DefaultChannel   = "oss"
	DefaultTimeout   = 10 * time.Minute
)

// DefaultCompileCommand is the compile step used when none is configured.
var DefaultCompileCommand = []string{"go", "build", "./..."}

// GetCompile returns the compile config with defaults applied.
func (c *Config) GetCompile() *CompileConfig {
	if c.Compile == nil {
		return &CompileConfig{Command: DefaultCompileCommand}
	}
	cc := c.Compile
	if len(cc.Command) == 0 {
		cc.Command = DefaultCompileCommand
	}
	return cc
}
