// Package engine orchestrates lifecycle runs. It resolves the generator
// toolchain, schedules tasks in dependency order, and records every run in
// the state store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/schemagen/internal/cli/config"
	"github.com/leapstack-labs/schemagen/internal/runner"
	"github.com/leapstack-labs/schemagen/internal/state"
	"github.com/leapstack-labs/schemagen/internal/task"
	"github.com/leapstack-labs/schemagen/internal/toolchain"
	"github.com/leapstack-labs/schemagen/pkg/core"
)

// Engine coordinates toolchain resolution, task execution, and state
// tracking for a project.
type Engine struct {
	cfg      *config.Config
	store    core.Store
	registry *task.Registry
	logger   *slog.Logger
	events   EventFunc
	eventMu  sync.Mutex

	// Force re-runs generate tasks even when their inputs are unchanged.
	Force bool

	// Swappable for tests.
	ensureBinary func(ctx context.Context, versionExpr string) (string, string, error)
	generateFn   func(ctx context.Context, inv runner.Invocation) error
	commandFn    func(ctx context.Context, dir string, argv []string) error
}

// Config holds engine construction options.
type Config struct {
	// Config is the loaded project configuration (required)
	Config *config.Config
	// Store overrides the state store; when nil a SQLite store is opened
	// at the configured state path
	Store core.Store
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Events receives run progress events (optional)
	Events EventFunc
}

// New creates an engine, opening and migrating the state store when one is
// not supplied.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Config == nil {
		return nil, fmt.Errorf("engine requires a project configuration")
	}
	if cfg.Config.Tool == nil {
		cfg.Config.Tool = &config.ToolConfig{Channel: config.DefaultChannel}
	}

	logger.Debug("initializing engine",
		"project_root", cfg.Config.ProjectRoot,
		"environment", cfg.Config.Environment)

	store := cfg.Store
	if store == nil {
		s := state.NewSQLiteStore(logger)
		if err := s.Open(cfg.Config.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to migrate state store: %w", err)
		}
		store = s
	}

	registry, err := task.NewRegistry(cfg.Config)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	e := &Engine{
		cfg:      cfg.Config,
		store:    store,
		registry: registry,
		logger:   logger,
		events:   cfg.Events,
	}

	resolver := toolchain.NewResolver(nil, logger)
	installer := toolchain.NewInstaller(cfg.Config.Tool.CacheDir, logger)
	run := runner.New(logger)

	e.ensureBinary = func(ctx context.Context, versionExpr string) (string, string, error) {
		return e.resolveBinary(ctx, resolver, installer, versionExpr)
	}
	e.generateFn = run.Generate
	e.commandFn = run.RunCommand

	return e, nil
}

// resolveBinary turns a version expression into an installed binary path.
// An empty expression falls back to whatever the PATH provides.
func (e *Engine) resolveBinary(ctx context.Context, resolver *toolchain.Resolver, installer *toolchain.Installer, versionExpr string) (string, string, error) {
	tool := e.cfg.Tool

	modulePath, err := toolchain.LookupModule(tool.Name, tool.Module, tool.Channel)
	if err != nil {
		return "", "", err
	}

	version := ""
	if versionExpr != "" {
		version, err = resolver.ResolveVersion(ctx, modulePath, versionExpr)
		if err != nil {
			return "", "", fmt.Errorf("tool %s: %w", tool.Name, err)
		}
	}

	coords := toolchain.PinnedArtifacts(tool.Name, modulePath, version, tool.Artifacts)
	binary, err := installer.EnsureTool(ctx, tool.Name, coords)
	if err != nil {
		return "", "", err
	}

	return binary, version, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Registry returns the task registry for this project.
func (e *Engine) Registry() *task.Registry {
	return e.registry
}

// Store returns the state store.
func (e *Engine) Store() core.Store {
	return e.store
}
