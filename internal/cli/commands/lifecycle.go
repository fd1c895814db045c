package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/cli/output"
	"github.com/leapstack-labs/schemagen/internal/engine"
	"github.com/leapstack-labs/schemagen/internal/task"
	"github.com/leapstack-labs/schemagen/pkg/core"
)

// lifecycleOptions holds the flags shared by generate, build, and clean.
type lifecycleOptions struct {
	Force      bool
	JSONOutput bool
}

func addLifecycleFlags(cmd *cobra.Command, opts *lifecycleOptions) {
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Run generators even when inputs are unchanged")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")
}

// executeLifecycle runs the selected tasks and renders progress either as
// human-readable lines or as JSON events.
func executeLifecycle(cmd *cobra.Command, sel task.Selection, opts lifecycleOptions) error {
	var events engine.EventFunc
	if opts.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		events = func(ev engine.Event) { _ = enc.Encode(ev) }
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd, events)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	eng.Force = opts.Force
	r := cmdCtx.Renderer

	startTime := time.Now()
	run, runErr := eng.Run(context.Background(), sel)

	if opts.JSONOutput {
		return runErr
	}

	if run == nil && runErr == nil {
		r.Println("Nothing to do")
		return nil
	}

	if run != nil {
		taskRuns, err := eng.Store().GetTaskRunsForRun(run.ID)
		if err == nil {
			rows := make([]output.TaskRow, 0, len(taskRuns))
			for _, tr := range taskRuns {
				rows = append(rows, output.TaskRow{
					Task:     tr.TaskID,
					Status:   string(tr.Status),
					Duration: formatDuration(tr),
					Detail:   tr.Error,
				})
			}
			r.RenderTaskTable(rows)
		}
		r.Printf("Run %s: %s\n", run.ID, run.Status)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	r.Printf("Completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func formatDuration(tr *core.TaskRun) string {
	if tr.Status == core.TaskRunStatusSuccess || tr.Status == core.TaskRunStatusFailed {
		return fmt.Sprintf("%dms", tr.ExecutionMS)
	}
	return "-"
}
