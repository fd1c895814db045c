package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagen/internal/cli/config"
	"github.com/leapstack-labs/schemagen/internal/runner"
	"github.com/leapstack-labs/schemagen/internal/state"
	"github.com/leapstack-labs/schemagen/internal/task"
	"github.com/leapstack-labs/schemagen/pkg/core"
)

// fakeToolchain pretends every version resolves to an installed binary.
func fakeToolchain(ctx context.Context, versionExpr string) (string, string, error) {
	return "/fake/bin/jet", versionExpr, nil
}

func newTestEngine(t *testing.T, cfg *config.Config, events EventFunc) *Engine {
	t.Helper()

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())

	eng, err := New(Config{Config: cfg, Store: store, Events: events})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	eng.ensureBinary = fakeToolchain
	return eng
}

func testProjectConfig(t *testing.T, generators map[string]*config.GeneratorConfig) *config.Config {
	t.Helper()

	root := t.TempDir()
	for _, gen := range generators {
		gen.OutputDir = filepath.Join(root, gen.OutputDir)
	}

	return &config.Config{
		ProjectRoot: root,
		Environment: "dev",
		Jobs:        1,
		Tool:        &config.ToolConfig{Name: "jet", Channel: "oss", Version: "2.11.0"},
		Generators:  generators,
	}
}

// invocationLog records lifecycle process launches in order.
type invocationLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *invocationLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *invocationLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func TestRunExecutesLifecycleInOrder(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{
		"base":    {},
		"derived": {DependsOn: []string{"base"}},
	})

	eng := newTestEngine(t, cfg, nil)

	log := &invocationLog{}
	eng.generateFn = func(_ context.Context, inv runner.Invocation) error {
		log.add("generate:" + inv.Name)
		require.NoError(t, os.MkdirAll(inv.OutputDir, 0o750))
		return os.WriteFile(filepath.Join(inv.OutputDir, "models.go"), []byte("package models\n"), 0o600)
	}
	eng.commandFn = func(_ context.Context, _ string, argv []string) error {
		log.add("compile")
		assert.Equal(t, config.DefaultCompileCommand, argv)
		return nil
	}

	run, err := eng.Run(context.Background(), task.Selection{Generate: true, Compile: true})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, core.RunStatusCompleted, run.Status)

	assert.Equal(t, []string{"generate:base", "generate:derived", "compile"}, log.all())

	taskRuns, err := eng.Store().GetTaskRunsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, taskRuns, 3)
	for _, tr := range taskRuns {
		assert.Equal(t, core.TaskRunStatusSuccess, tr.Status, tr.TaskID)
	}
}

func TestRunFailureSkipsDownstream(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{
		"base":    {},
		"derived": {DependsOn: []string{"base"}},
	})

	eng := newTestEngine(t, cfg, nil)
	eng.generateFn = func(_ context.Context, inv runner.Invocation) error {
		if inv.Name == "base" {
			return fmt.Errorf("exit code 3: boom")
		}
		t.Fatalf("generator %s should have been skipped", inv.Name)
		return nil
	}
	eng.commandFn = func(_ context.Context, _ string, _ []string) error {
		t.Fatal("compile should have been skipped")
		return nil
	}

	run, err := eng.Run(context.Background(), task.Selection{Generate: true, Compile: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate:base")
	require.NotNil(t, run)
	assert.Equal(t, core.RunStatusFailed, run.Status)

	statuses := taskStatuses(t, eng, run.ID)
	assert.Equal(t, core.TaskRunStatusFailed, statuses["generate:base"])
	assert.Equal(t, core.TaskRunStatusSkipped, statuses["generate:derived"])
	assert.Equal(t, core.TaskRunStatusSkipped, statuses["compile"])
}

func TestRunUpToDateSkipsGenerate(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{
		"main": {Spec: map[string]any{"schema": "public"}},
	})
	cfg.Compile = &config.CompileConfig{Disabled: true}

	eng := newTestEngine(t, cfg, nil)

	calls := 0
	eng.generateFn = func(_ context.Context, inv runner.Invocation) error {
		calls++
		require.NoError(t, os.MkdirAll(inv.OutputDir, 0o750))
		return os.WriteFile(filepath.Join(inv.OutputDir, "models.go"), []byte("package models\n"), 0o600)
	}

	run1, err := eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, run1.Status)
	assert.Equal(t, 1, calls)

	// Nothing changed: second run is up to date.
	run2, err := eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	statuses := taskStatuses(t, eng, run2.ID)
	assert.Equal(t, core.TaskRunStatusUpToDate, statuses["generate:main"])

	// Force reruns regardless.
	eng.Force = true
	_, err = eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRunInputChangeInvalidatesUpToDate(t *testing.T) {
	root := t.TempDir()
	schema := filepath.Join(root, "schema.sql")
	require.NoError(t, os.WriteFile(schema, []byte("CREATE TABLE a (id INT);"), 0o600))

	cfg := &config.Config{
		ProjectRoot: root,
		Environment: "dev",
		Jobs:        1,
		Tool:        &config.ToolConfig{Name: "jet", Channel: "oss", Version: "2.11.0"},
		Generators: map[string]*config.GeneratorConfig{
			"main": {OutputDir: filepath.Join(root, "gen"), Inputs: []string{schema}},
		},
		Compile: &config.CompileConfig{Disabled: true},
	}

	eng := newTestEngine(t, cfg, nil)
	calls := 0
	eng.generateFn = func(_ context.Context, inv runner.Invocation) error {
		calls++
		require.NoError(t, os.MkdirAll(inv.OutputDir, 0o750))
		return os.WriteFile(filepath.Join(inv.OutputDir, "models.go"), []byte("package models\n"), 0o600)
	}

	_, err := eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, os.WriteFile(schema, []byte("CREATE TABLE a (id INT, name TEXT);"), 0o600))

	_, err = eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRunToolchainFailureFailsFast(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{
		"main": {},
	})

	eng := newTestEngine(t, cfg, nil)
	eng.ensureBinary = func(_ context.Context, _ string) (string, string, error) {
		return "", "", fmt.Errorf("no version satisfies constraint")
	}
	eng.generateFn = func(_ context.Context, _ runner.Invocation) error {
		t.Fatal("generator must not run when the toolchain fails to resolve")
		return nil
	}

	run, err := eng.Run(context.Background(), task.Selection{Generate: true, Compile: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no version satisfies constraint")
	require.NotNil(t, run)
	assert.Equal(t, core.RunStatusFailed, run.Status)

	taskRuns, err := eng.Store().GetTaskRunsForRun(run.ID)
	require.NoError(t, err)
	assert.Empty(t, taskRuns)
}

func TestRunCleanRemovesOutputAndFingerprint(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{
		"main": {},
	})
	cfg.Generators["main"].OutputDir = filepath.Join(cfg.ProjectRoot, "gen", "main")
	cfg.Compile = &config.CompileConfig{Disabled: true}

	eng := newTestEngine(t, cfg, nil)
	eng.generateFn = func(_ context.Context, inv runner.Invocation) error {
		require.NoError(t, os.MkdirAll(inv.OutputDir, 0o750))
		return os.WriteFile(filepath.Join(inv.OutputDir, "models.go"), []byte("package models\n"), 0o600)
	}

	_, err := eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)

	hash, err := eng.Store().GetInputHash("generate:main")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	run, err := eng.Run(context.Background(), task.Selection{Clean: true})
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, run.Status)

	_, statErr := os.Stat(cfg.Generators["main"].OutputDir)
	assert.True(t, os.IsNotExist(statErr))

	hash, err = eng.Store().GetInputHash("generate:main")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestRunEmitsEvents(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{
		"main": {},
	})
	cfg.Compile = &config.CompileConfig{Disabled: true}

	var events []Event
	eng := newTestEngine(t, cfg, func(ev Event) { events = append(events, ev) })
	eng.generateFn = func(_ context.Context, inv runner.Invocation) error {
		require.NoError(t, os.MkdirAll(inv.OutputDir, 0o750))
		return os.WriteFile(filepath.Join(inv.OutputDir, "f.go"), []byte("package f\n"), 0o600)
	}

	_, err := eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, EventRunStart, events[0].Kind)
	assert.Equal(t, []string{"generate:main"}, events[0].Tasks)
	assert.Equal(t, EventTaskStart, events[1].Kind)
	assert.Equal(t, EventTaskComplete, events[2].Kind)
	assert.Equal(t, string(core.TaskRunStatusSuccess), events[2].Status)
	assert.Equal(t, EventRunComplete, events[3].Kind)
	assert.Equal(t, 1, events[3].Successful)
}

func TestRunEmptySelection(t *testing.T) {
	cfg := testProjectConfig(t, map[string]*config.GeneratorConfig{})
	cfg.Compile = &config.CompileConfig{Disabled: true}

	eng := newTestEngine(t, cfg, nil)

	run, err := eng.Run(context.Background(), task.Selection{Generate: true})
	require.NoError(t, err)
	assert.Nil(t, run)
}

func taskStatuses(t *testing.T, eng *Engine, runID string) map[string]core.TaskRunStatus {
	t.Helper()

	taskRuns, err := eng.Store().GetTaskRunsForRun(runID)
	require.NoError(t, err)

	statuses := make(map[string]core.TaskRunStatus, len(taskRuns))
	for _, tr := range taskRuns {
		statuses[tr.TaskID] = tr.Status
	}
	return statuses
}
