package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level config file tracking.
var configFileUsed string

// configExistsIn checks if a schemagen config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"schemagen.yaml", "schemagen.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a schemagen config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. Search upward from CWD for schemagen.yaml
//  3. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" && flags.Changed("project-dir") {
			abs, err := filepath.Abs(projectDir)
			if err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithEnv(cfgFile, "", flags)
}

// LoadConfigWithEnv loads configuration with an optional environment override.
// The envOverride parameter selects which environments: block to merge over
// the base tool and compile settings.
func LoadConfigWithEnv(cfgFile string, envOverride string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(flags)

	// A state path given as a flag is relative to CWD, not the project root.
	// Capture the absolute path before the normal resolution step.
	var flagStatePath string
	if flags != nil && flags.Changed("state") {
		if v, _ := flags.GetString("state"); v != "" {
			flagStatePath, _ = filepath.Abs(v)
		}
	}

	// If an explicit config file is provided, its directory is the project root
	// unless --project-dir gave a more specific hint.
	if cfgFile != "" && projectRoot == inferProjectRoot(nil) {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"state_path":  DefaultStateFile,
		"environment": DefaultEnv,
		"verbose":     false,
		"output":      DefaultOutput,
		"jobs":        DefaultJobs,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	if cfgFile == "" {
		for _, name := range []string{"schemagen.yaml", "schemagen.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (SCHEMAGEN_ prefix)
	// Transform: SCHEMAGEN_STATE_PATH -> state_path
	if err := k.Load(env.Provider("SCHEMAGEN_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SCHEMAGEN_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The CLI uses --state and --env for brevity; map them to
			// their config keys
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			if key == "env" {
				return "environment", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Set project root and resolve relative paths against it
	cfg.ProjectRoot = projectRoot

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}

	// Determine which environment block applies
	envName := cfg.Environment
	if envOverride != "" {
		envName = envOverride
		cfg.Environment = envOverride
	}

	// Apply environment-specific overrides
	if envName != "" && cfg.Environments != nil {
		if envCfg, ok := cfg.Environments[envName]; ok {
			if envCfg.Tool != nil {
				cfg.Tool = MergeToolConfig(cfg.Tool, envCfg.Tool)
			}
			if envCfg.Compile != nil {
				cfg.Compile = envCfg.Compile
			}
			for name, override := range envCfg.Generators {
				if cfg.Generators == nil {
					cfg.Generators = make(map[string]*GeneratorConfig)
				}
				cfg.Generators[name] = MergeGeneratorConfig(cfg.Generators[name], override)
			}
		}
	}

	// Initialize default tool settings
	if cfg.Tool == nil {
		cfg.Tool = &ToolConfig{}
	}
	if cfg.Tool.Channel == "" {
		cfg.Tool.Channel = DefaultChannel
	}

	// Expand ${VAR} in schemagen's own fields. The opaque spec payloads are
	// left untouched: they belong to the generator.
	cfg.Tool.CacheDir = expandEnvVars(cfg.Tool.CacheDir)
	for _, gen := range cfg.Generators {
		for key, val := range gen.Env {
			gen.Env[key] = expandEnvVars(val)
		}
		gen.OutputDir = resolvePathRelativeTo(expandEnvVars(gen.OutputDir), projectRoot)
		for i, glob := range gen.Inputs {
			gen.Inputs[i] = resolvePathRelativeTo(glob, projectRoot)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// MergeToolConfig merges two tool configs, with override taking precedence.
func MergeToolConfig(base, override *ToolConfig) *ToolConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &ToolConfig{
		Name:      base.Name,
		Module:    base.Module,
		Version:   base.Version,
		Channel:   base.Channel,
		CacheDir:  base.CacheDir,
		Artifacts: base.Artifacts,
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Module != "" {
		merged.Module = override.Module
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Channel != "" {
		merged.Channel = override.Channel
	}
	if override.CacheDir != "" {
		merged.CacheDir = override.CacheDir
	}
	if override.Artifacts != nil {
		merged.Artifacts = override.Artifacts
	}

	return merged
}

// MergeGeneratorConfig merges two generator blocks, with override taking
// precedence. Scalar and list fields replace when set; env entries merge
// key-wise. An override without a base block stands on its own, so an
// environment can introduce a generator the base config does not have.
func MergeGeneratorConfig(base, override *GeneratorConfig) *GeneratorConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base

	if override.OutputDir != "" {
		merged.OutputDir = override.OutputDir
	}
	if override.Inputs != nil {
		merged.Inputs = override.Inputs
	}
	if override.DependsOn != nil {
		merged.DependsOn = override.DependsOn
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Args != nil {
		merged.Args = override.Args
	}
	if override.Timeout != "" {
		merged.Timeout = override.Timeout
	}
	if override.Spec != nil {
		merged.Spec = override.Spec
	}
	if override.Env != nil {
		env := make(map[string]string, len(base.Env)+len(override.Env))
		for k, v := range base.Env {
			env[k] = v
		}
		for k, v := range override.Env {
			env[k] = v
		}
		merged.Env = env
	}

	return &merged
}
