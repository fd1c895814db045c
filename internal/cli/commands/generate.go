package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/task"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &lifecycleOptions{}
	var downstream bool

	cmd := &cobra.Command{
		Use:   "generate [generator...]",
		Short: "Run code generators",
		Long: `Run the configured code generators.

By default every generator block runs. Naming blocks restricts the run to
those blocks plus the blocks they depend on. Generators whose inputs are
unchanged since the last successful run are skipped unless --force is given.`,
		Example: `  # Run all generators
  schemagen generate

  # Run one generator (and its dependencies)
  schemagen generate main

  # Rerun even when inputs are unchanged
  schemagen generate --force

  # Run with JSON output for CI/CD integration
  schemagen generate --json`,
		Aliases: []string{"gen"},
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := task.Selection{Generators: args, Generate: true, Downstream: downstream}
			return executeLifecycle(cmd, sel, *opts)
		},
	}

	addLifecycleFlags(cmd, opts)
	cmd.Flags().BoolVar(&downstream, "downstream", false, "Also run the generators that depend on the named ones")
	return cmd
}
