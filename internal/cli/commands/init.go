package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const configTemplate = `# schemagen project configuration
#
# tool selects the external code generator and pins its version.
# Each block under generators: becomes a generate:<name> task; the spec:
# section is written out unchanged for the generator to consume.

tool:
  name: jet
  version: "2.11.0"

generators:
  main:
    output_dir: gen/main
    inputs:
      - db/schema.sql
    spec:
      source: postgres
      dsn: ${DATABASE_URL}
      schema: public
`

const schemaTemplate = `-- Schema inputs for the main generator.
-- Changes here mark generate:main as out of date.

CREATE TABLE example (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new schemagen project",
		Long: `Initialize a new schemagen project with a starter configuration.

This creates:
  - schemagen.yaml with one generator block
  - db/schema.sql as a sample input file
  - gen/ directory for generated code`,
		Example: `  # Initialize in current directory
  schemagen init

  # Initialize in a new directory
  schemagen init my-project

  # Force overwrite existing config
  schemagen init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "schemagen.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("schemagen.yaml already exists, use --force to overwrite")
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	for _, sub := range []string{"db", "gen"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	schemaPath := filepath.Join(dir, "db", "schema.sql")
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) || force {
		if err := os.WriteFile(schemaPath, []byte(schemaTemplate), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", schemaPath, err)
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Initialized schemagen project in %s\n", dir)
	_, _ = fmt.Fprintln(out, "")
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit schemagen.yaml to point at your schema generator")
	_, _ = fmt.Fprintln(out, "  2. Run 'schemagen generate' to generate code")
	_, _ = fmt.Fprintln(out, "  3. Run 'schemagen build' to generate and compile")
	return nil
}
