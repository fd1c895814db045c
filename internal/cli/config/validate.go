package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// validChannels are the recognized generator distribution channels.
var validChannels = map[string]bool{
	"oss":        true,
	"trial":      true,
	"enterprise": true,
}

// Validate checks the loaded configuration for structural errors.
// It does not touch the filesystem; directory checks happen when tasks run.
func (c *Config) Validate() error {
	if c.Tool != nil && c.Tool.Channel != "" && !validChannels[strings.ToLower(c.Tool.Channel)] {
		return fmt.Errorf("unknown tool channel %q (valid: oss, trial, enterprise)", c.Tool.Channel)
	}

	if c.Tool != nil && c.Tool.Version != "" {
		if err := validateVersionExpr(c.Tool.Version); err != nil {
			return fmt.Errorf("invalid tool version %q: %w", c.Tool.Version, err)
		}
	}

	// Zero means unset; the engine runs with one job. Only negatives are
	// nonsense.
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}

	for name, gen := range c.Generators {
		if err := validateGenerator(name, gen, c.Generators); err != nil {
			return err
		}
	}

	return nil
}

func validateGenerator(name string, gen *GeneratorConfig, all map[string]*GeneratorConfig) error {
	if strings.ContainsAny(name, ": \t") {
		return fmt.Errorf("generator name %q must not contain ':' or whitespace", name)
	}
	if gen == nil {
		return fmt.Errorf("generator %q has an empty block", name)
	}
	if gen.OutputDir == "" {
		return fmt.Errorf("generator %q: output_dir is required", name)
	}
	if gen.Timeout != "" {
		if _, err := time.ParseDuration(gen.Timeout); err != nil {
			return fmt.Errorf("generator %q: invalid timeout %q: %w", name, gen.Timeout, err)
		}
	}
	if gen.Version != "" {
		if err := validateVersionExpr(gen.Version); err != nil {
			return fmt.Errorf("generator %q: invalid version %q: %w", name, gen.Version, err)
		}
	}
	for _, dep := range gen.DependsOn {
		if dep == name {
			return fmt.Errorf("generator %q depends on itself", name)
		}
		if _, ok := all[dep]; !ok {
			return fmt.Errorf("generator %q depends on unknown generator %q", name, dep)
		}
	}
	return nil
}

// validateVersionExpr accepts an exact semver version or a constraint range.
func validateVersionExpr(expr string) error {
	if _, err := semver.NewVersion(expr); err == nil {
		return nil
	}
	if _, err := semver.NewConstraint(expr); err != nil {
		return fmt.Errorf("not a version or constraint: %w", err)
	}
	return nil
}

// GeneratorNames returns the configured block names in sorted order.
func (c *Config) GeneratorNames() []string {
	names := make([]string, 0, len(c.Generators))
	for name := range c.Generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
