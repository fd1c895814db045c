package engine

// run.go - execution orchestration for lifecycle runs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/schemagen/internal/cli/config"
	"github.com/leapstack-labs/schemagen/internal/dag"
	"github.com/leapstack-labs/schemagen/internal/task"
	"github.com/leapstack-labs/schemagen/pkg/core"
)

// preparedTask holds a task ready for execution after toolchain resolution.
type preparedTask struct {
	task    *task.Task
	gen     *config.GeneratorConfig
	binary  string
	version string
	hash    string
}

// Run executes the selected tasks using a two-phase approach:
// Phase 1: Resolve and install the toolchain for every generate task
// (fail fast before any task touches the filesystem)
// Phase 2: Execute tasks level by level, skipping dependents of failures.
func (e *Engine) Run(ctx context.Context, sel task.Selection) (*core.Run, error) {
	graph, err := e.registry.Select(sel)
	if err != nil {
		return nil, err
	}

	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	if len(sorted) == 0 {
		e.logger.Info("nothing to do")
		return nil, nil
	}

	e.logger.Info("starting run", "environment", e.cfg.Environment, "tasks", len(sorted))

	run, err := e.store.CreateRun(e.cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	taskIDs := make([]string, len(sorted))
	for i, n := range sorted {
		taskIDs[i] = n.ID
	}
	e.emit(Event{Kind: EventRunStart, RunID: run.ID, Tasks: taskIDs})

	start := time.Now()

	// Phase 1: resolve the toolchain and fingerprint inputs.
	prepared, err := e.prepare(ctx, sorted)
	if err != nil {
		_ = e.store.CompleteRun(run.ID, core.RunStatusFailed, err.Error())
		e.emit(Event{Kind: EventRunComplete, RunID: run.ID, Status: string(core.RunStatusFailed),
			Error: err.Error(), TotalMS: time.Since(start).Milliseconds()})
		run, _ = e.store.GetRun(run.ID)
		return run, err
	}

	// Phase 2: execute.
	tally, runErr := e.execute(ctx, run.ID, graph, prepared)

	status := core.RunStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = core.RunStatusFailed
		errMsg = runErr.Error()
		e.logger.Info("run failed", "run_id", run.ID, "error", errMsg)
	} else {
		e.logger.Info("run completed", "run_id", run.ID)
	}
	_ = e.store.CompleteRun(run.ID, status, errMsg)

	e.emit(Event{
		Kind:       EventRunComplete,
		RunID:      run.ID,
		Status:     string(status),
		Error:      errMsg,
		TotalTasks: len(sorted),
		Successful: tally.successful,
		Failed:     tally.failed,
		Skipped:    tally.skipped,
		UpToDate:   tally.upToDate,
		TotalMS:    time.Since(start).Milliseconds(),
	})

	run, _ = e.store.GetRun(run.ID)
	return run, runErr
}

// prepare resolves the generator binary for every generate task and computes
// input fingerprints. All resolution errors are reported together.
func (e *Engine) prepare(ctx context.Context, sorted []*dag.Node) (map[string]*preparedTask, error) {
	prepared := make(map[string]*preparedTask, len(sorted))
	binaries := make(map[string]binaryResult)
	var prepErrors []error

	for _, node := range sorted {
		t := node.Data.(*task.Task)
		p := &preparedTask{task: t, gen: e.registry.Generator(t)}
		prepared[t.ID] = p

		if t.Kind != task.KindGenerate {
			continue
		}

		versionExpr := e.cfg.Tool.Version
		if p.gen.Version != "" {
			versionExpr = p.gen.Version
		}

		res, ok := binaries[versionExpr]
		if !ok {
			res.binary, res.version, res.err = e.ensureBinary(ctx, versionExpr)
			binaries[versionExpr] = res
		}
		if res.err != nil {
			prepErrors = append(prepErrors, fmt.Errorf("%s: %w", t.ID, res.err))
			continue
		}
		p.binary = res.binary
		p.version = res.version

		hash, err := inputHash(p.gen, e.cfg.Tool, p.version)
		if err != nil {
			prepErrors = append(prepErrors, fmt.Errorf("%s: %w", t.ID, err))
			continue
		}
		p.hash = hash

		e.logger.Debug("task prepared", "task", t.ID, "binary", p.binary, "version", p.version)
	}

	if len(prepErrors) > 0 {
		return nil, errors.Join(prepErrors...)
	}
	return prepared, nil
}

type binaryResult struct {
	binary  string
	version string
	err     error
}

type tally struct {
	successful int
	failed     int
	skipped    int
	upToDate   int
}

// execute runs prepared tasks level by level. Tasks within a level run in
// parallel, bounded by the configured job count. A failure marks every
// downstream task as skipped but never stops unrelated tasks.
func (e *Engine) execute(ctx context.Context, runID string, graph *dag.Graph, prepared map[string]*preparedTask) (tally, error) {
	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return tally{}, err
	}

	jobs := e.cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var mu sync.Mutex
	statuses := make(map[string]core.TaskRunStatus)
	var taskErrors []error

	for _, level := range levels {
		var runnable []string
		for _, id := range level {
			if reason := e.skipReason(graph, statuses, id); reason != "" {
				tr, recErr := e.store.RecordTaskRun(runID, id, core.TaskRunStatusRunning)
				if recErr == nil {
					_ = e.store.UpdateTaskRun(tr.ID, core.TaskRunStatusSkipped, reason, 0)
				}
				statuses[id] = core.TaskRunStatusSkipped
				e.logger.Debug("task skipped", "task", id, "reason", reason)
				e.emit(Event{Kind: EventTaskComplete, RunID: runID, Task: id,
					Status: string(core.TaskRunStatusSkipped), Error: reason})
				continue
			}
			runnable = append(runnable, id)
		}

		g := new(errgroup.Group)
		g.SetLimit(jobs)

		for _, id := range runnable {
			p := prepared[id]
			g.Go(func() error {
				status, execErr := e.runTask(ctx, runID, p)

				mu.Lock()
				statuses[id] = status
				if execErr != nil {
					taskErrors = append(taskErrors, fmt.Errorf("%s: %w", id, execErr))
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	t := tallyStatuses(statuses)
	if len(taskErrors) > 0 {
		sort.Slice(taskErrors, func(i, j int) bool {
			return taskErrors[i].Error() < taskErrors[j].Error()
		})
		return t, fmt.Errorf("%d task(s) failed: %w", t.failed, errors.Join(taskErrors...))
	}
	return t, nil
}

// runTask executes a single task and records its outcome.
func (e *Engine) runTask(ctx context.Context, runID string, p *preparedTask) (core.TaskRunStatus, error) {
	id := p.task.ID
	e.emit(Event{Kind: EventTaskStart, RunID: runID, Task: id})

	tr, err := e.store.RecordTaskRun(runID, id, core.TaskRunStatusRunning)
	if err != nil {
		return core.TaskRunStatusFailed, fmt.Errorf("failed to record task run: %w", err)
	}

	if p.task.Kind == task.KindGenerate && e.isUpToDate(p) {
		_ = e.store.UpdateTaskRun(tr.ID, core.TaskRunStatusUpToDate, "", 0)
		e.logger.Info("task up to date", "task", id)
		e.emit(Event{Kind: EventTaskComplete, RunID: runID, Task: id,
			Status: string(core.TaskRunStatusUpToDate)})
		return core.TaskRunStatusUpToDate, nil
	}

	start := time.Now()
	execErr := e.executeTask(ctx, p)
	execMS := time.Since(start).Milliseconds()

	if execErr != nil {
		_ = e.store.UpdateTaskRun(tr.ID, core.TaskRunStatusFailed, execErr.Error(), execMS)
		e.logger.Debug("task failed", "task", id, "error", execErr)
		e.emit(Event{Kind: EventTaskComplete, RunID: runID, Task: id,
			Status: string(core.TaskRunStatusFailed), Error: execErr.Error(), ExecutionMS: execMS})
		return core.TaskRunStatusFailed, execErr
	}

	_ = e.store.UpdateTaskRun(tr.ID, core.TaskRunStatusSuccess, "", execMS)
	e.logger.Debug("task executed", "task", id, "exec_ms", execMS)
	e.emit(Event{Kind: EventTaskComplete, RunID: runID, Task: id,
		Status: string(core.TaskRunStatusSuccess), ExecutionMS: execMS})
	return core.TaskRunStatusSuccess, nil
}

// skipReason reports why a task cannot run, or empty when it can.
// Parents live in earlier levels, so statuses are settled by the time a
// level is scheduled.
func (e *Engine) skipReason(graph *dag.Graph, statuses map[string]core.TaskRunStatus, id string) string {
	for _, parent := range graph.GetParents(id) {
		switch statuses[parent] {
		case core.TaskRunStatusFailed:
			return fmt.Sprintf("skipped: upstream task %s failed", parent)
		case core.TaskRunStatusSkipped:
			return fmt.Sprintf("skipped: upstream task %s was skipped", parent)
		}
	}
	return ""
}

// isUpToDate reports whether a generate task can be skipped because its
// fingerprint matches the last successful run and its output still exists.
func (e *Engine) isUpToDate(p *preparedTask) bool {
	if e.Force || p.hash == "" {
		return false
	}
	stored, err := e.store.GetInputHash(p.task.ID)
	if err != nil || stored != p.hash {
		return false
	}
	return outputExists(p.gen.OutputDir)
}

func tallyStatuses(statuses map[string]core.TaskRunStatus) tally {
	var t tally
	for _, s := range statuses {
		switch s {
		case core.TaskRunStatusSuccess:
			t.successful++
		case core.TaskRunStatusFailed:
			t.failed++
		case core.TaskRunStatusSkipped:
			t.skipped++
		case core.TaskRunStatusUpToDate:
			t.upToDate++
		}
	}
	return t
}
