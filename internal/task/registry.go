package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/schemagen/internal/cli/config"
	"github.com/leapstack-labs/schemagen/internal/dag"
)

// Registry holds every task derived from a project configuration together
// with the ordering graph between them.
type Registry struct {
	cfg   *config.Config
	tasks map[string]*Task
	graph *dag.Graph
}

// Selection narrows the task graph to a set of lifecycle stages and
// generator blocks.
type Selection struct {
	// Generators restricts the selection to the named blocks.
	// Empty means all blocks.
	Generators []string

	// Clean includes the clean tasks of the selected blocks.
	Clean bool

	// Generate includes the generate tasks of the selected blocks and,
	// transitively, the generate tasks they depend on.
	Generate bool

	// Downstream additionally includes the generate tasks that depend,
	// transitively, on the selected blocks.
	Downstream bool

	// Compile includes the project compile task.
	Compile bool
}

// NewRegistry builds the task registry for a configuration. One clean and
// one generate task is registered per generator block, plus a single
// compile task unless compilation is disabled. An error is returned when
// the declared dependencies between blocks form a cycle.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		cfg:   cfg,
		tasks: make(map[string]*Task),
		graph: dag.NewGraph(),
	}

	names := cfg.GeneratorNames()

	for _, name := range names {
		r.add(&Task{ID: CleanID(name), Kind: KindClean, Generator: name})
		r.add(&Task{ID: GenerateID(name), Kind: KindGenerate, Generator: name})

		if err := r.graph.AddEdge(CleanID(name), GenerateID(name)); err != nil {
			return nil, err
		}
	}

	compile := cfg.GetCompile()
	if !compile.Disabled {
		r.add(&Task{ID: CompileID, Kind: KindCompile})
		for _, name := range names {
			if err := r.graph.AddEdge(GenerateID(name), CompileID); err != nil {
				return nil, err
			}
			if err := r.graph.AddEdge(CleanID(name), CompileID); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range names {
		gen := cfg.Generators[name]
		for _, dep := range gen.DependsOn {
			if err := r.graph.AddEdge(GenerateID(dep), GenerateID(name)); err != nil {
				return nil, fmt.Errorf("dependency %s -> %s: %w", dep, name, err)
			}
		}
	}

	if hasCycle, path := r.graph.HasCycle(); hasCycle {
		return nil, fmt.Errorf("dependency cycle between generator blocks: %s", strings.Join(path, " -> "))
	}

	return r, nil
}

func (r *Registry) add(t *Task) {
	r.tasks[t.ID] = t
	r.graph.AddNode(t.ID, t)
}

// Task returns the task with the given ID.
func (r *Registry) Task(id string) (*Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// Tasks returns all registered tasks sorted by ID.
func (r *Registry) Tasks() []*Task {
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, r.tasks[id])
	}
	return tasks
}

// Graph returns the full task graph.
func (r *Registry) Graph() *dag.Graph {
	return r.graph
}

// Generator returns the configuration block a task acts on.
func (r *Registry) Generator(t *Task) *config.GeneratorConfig {
	if t.Generator == "" {
		return nil
	}
	return r.cfg.Generators[t.Generator]
}

// Select returns the subgraph of tasks matched by the selection. Selecting
// a generate task pulls in the generate tasks it transitively depends on,
// so a declared dependency is never skipped. A full task ID such as
// "generate:main" selects its block, so IDs printed by graph or list can be
// pasted back as arguments.
func (r *Registry) Select(sel Selection) (*dag.Graph, error) {
	var names []string
	if len(sel.Generators) == 0 {
		names = r.cfg.GeneratorNames()
	} else {
		for _, arg := range sel.Generators {
			name := arg
			if _, gen, err := ParseID(arg); err == nil && gen != "" {
				name = gen
			}
			if _, ok := r.cfg.Generators[name]; !ok {
				return nil, fmt.Errorf("unknown generator: %s", arg)
			}
			names = append(names, name)
		}
	}

	selected := make(map[string]bool)

	for _, name := range names {
		if sel.Clean {
			selected[CleanID(name)] = true
		}
		if sel.Generate {
			selected[GenerateID(name)] = true
			for _, up := range r.graph.GetUpstreamNodes(GenerateID(name)) {
				if t, ok := r.tasks[up]; ok && t.Kind == KindGenerate {
					selected[up] = true
				}
			}
			if sel.Downstream {
				for _, down := range r.graph.GetAffectedNodes([]string{GenerateID(name)}) {
					if t, ok := r.tasks[down]; ok && t.Kind == KindGenerate {
						selected[down] = true
					}
				}
			}
		}
	}

	if sel.Compile {
		if _, ok := r.tasks[CompileID]; ok {
			selected[CompileID] = true
		}
	}

	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return r.graph.Subgraph(ids), nil
}
