package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/task"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &lifecycleOptions{}
	var clean bool

	cmd := &cobra.Command{
		Use:   "build [generator...]",
		Short: "Run generators and compile the project",
		Long: `Run the configured code generators, then the compile step.

The compile command (default: go build ./...) runs in the project root after
every generator has finished. Use --clean to remove previous output first.`,
		Example: `  # Generate and compile
  schemagen build

  # Clean, generate, and compile from scratch
  schemagen build --clean

  # Build with JSON output
  schemagen build --json`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := task.Selection{
				Generators: args,
				Clean:      clean,
				Generate:   true,
				Compile:    true,
			}
			return executeLifecycle(cmd, sel, *opts)
		},
	}

	addLifecycleFlags(cmd, opts)
	cmd.Flags().BoolVar(&clean, "clean", false, "Remove generated output before generating")
	return cmd
}
