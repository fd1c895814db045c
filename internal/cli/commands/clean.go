package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/task"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand() *cobra.Command {
	opts := &lifecycleOptions{}

	cmd := &cobra.Command{
		Use:   "clean [generator...]",
		Short: "Remove generated output",
		Long: `Remove the output directories of the configured generators and forget
their recorded input fingerprints, so the next generate always reruns.`,
		Example: `  # Clean every generator's output
  schemagen clean

  # Clean a single generator
  schemagen clean main`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := task.Selection{Generators: args, Clean: true}
			return executeLifecycle(cmd, sel, *opts)
		},
	}

	addLifecycleFlags(cmd, opts)
	return cmd
}
