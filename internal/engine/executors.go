package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/schemagen/internal/runner"
	"github.com/leapstack-labs/schemagen/internal/task"
)

func (e *Engine) executeTask(ctx context.Context, p *preparedTask) error {
	switch p.task.Kind {
	case task.KindClean:
		return e.executeClean(p)
	case task.KindGenerate:
		return e.executeGenerate(ctx, p)
	case task.KindCompile:
		return e.executeCompile(ctx)
	default:
		return fmt.Errorf("unknown task kind: %s", p.task.Kind)
	}
}

// executeClean removes the generator's output directory and forgets its
// fingerprint so the next generate always reruns.
func (e *Engine) executeClean(p *preparedTask) error {
	dir := p.gen.OutputDir
	if dir == "" {
		return fmt.Errorf("generator %s has no output directory", p.task.Generator)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(e.cfg.ProjectRoot)
	if err != nil {
		return err
	}
	if abs == root {
		return fmt.Errorf("refusing to clean the project root: %s", abs)
	}

	e.logger.Info("cleaning output", "generator", p.task.Generator, "dir", abs)

	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to clean %s: %w", abs, err)
	}

	return e.store.DeleteInputHash(task.GenerateID(p.task.Generator))
}

// executeGenerate invokes the external generator for one block and records
// the new input fingerprint on success.
func (e *Engine) executeGenerate(ctx context.Context, p *preparedTask) error {
	e.logger.Info("generating", "generator", p.task.Generator, "binary", p.binary)

	inv := runner.Invocation{
		Binary:    p.binary,
		Name:      p.task.Generator,
		Spec:      p.gen.Spec,
		OutputDir: p.gen.OutputDir,
		Args:      p.gen.Args,
		Env:       p.gen.Env,
		Dir:       e.cfg.ProjectRoot,
		Timeout:   p.gen.TimeoutDuration(),
	}

	if err := e.generateFn(ctx, inv); err != nil {
		return err
	}

	if p.hash != "" {
		if err := e.store.SetInputHash(p.task.ID, p.hash); err != nil {
			e.logger.Warn("failed to record input fingerprint", "task", p.task.ID, "error", err)
		}
	}
	return nil
}

// executeCompile runs the configured compile command in the project root.
func (e *Engine) executeCompile(ctx context.Context) error {
	cmd := e.cfg.GetCompile().Command
	e.logger.Info("compiling", "command", cmd)
	return e.commandFn(ctx, e.cfg.ProjectRoot, cmd)
}

// outputExists reports whether a generator output directory exists and has
// at least one entry.
func outputExists(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
