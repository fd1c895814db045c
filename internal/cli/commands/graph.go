package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/schemagen/internal/cli/output"
	"github.com/leapstack-labs/schemagen/internal/dag"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the task dependency graph",
		Long: `Show every lifecycle task grouped by execution level. Tasks in the
same level have no ordering between them and may run in parallel.`,
		Example: `  # Show the task graph
  schemagen graph

  # Show the task graph as JSON
  schemagen graph --output json

  # Render with Graphviz
  schemagen graph --dot | dot -Tsvg -o tasks.svg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd, dot)
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "Print the graph in Graphviz DOT format")
	return cmd
}

type graphLevel struct {
	Level int      `json:"level"`
	Tasks []string `json:"tasks"`
}

func runGraph(cmd *cobra.Command, dot bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	graph := cmdCtx.Engine.Registry().Graph()

	if dot {
		return renderDot(r, graph)
	}

	levels, err := graph.GetExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get execution levels: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		payload := make([]graphLevel, 0, len(levels))
		for i, level := range levels {
			payload = append(payload, graphLevel{Level: i, Tasks: level})
		}
		enc := json.NewEncoder(r.Out())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	r.Println("Task Graph (execution levels):")
	r.Println("")

	for i, level := range levels {
		r.Printf("Level %d:\n", i)
		for _, id := range level {
			r.Printf("  %s\n", id)
			if deps := graph.GetParents(id); len(deps) > 0 {
				r.Printf("    depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := graph.GetChildren(id); len(children) > 0 {
				r.Printf("    required by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Printf("Entry tasks: %s\n", strings.Join(graph.GetRoots(), ", "))
	r.Printf("Final tasks: %s\n", strings.Join(graph.GetLeaves(), ", "))
	r.Printf("Total: %d tasks, %d dependencies\n", graph.NodeCount(), graph.EdgeCount())
	return nil
}

func renderDot(r *output.Renderer, graph *dag.Graph) error {
	r.Println("digraph tasks {")
	r.Println("  rankdir=LR;")
	r.Println("  node [shape=box];")
	for _, n := range graph.GetAllNodes() {
		r.Printf("  %q;\n", n.ID)
		for _, child := range graph.GetChildren(n.ID) {
			r.Printf("  %q -> %q;\n", n.ID, child)
		}
	}
	r.Println("}")
	return nil
}
