// Package task materializes the lifecycle tasks of a schemagen project.
// Each configured generator block yields a clean task and a generate task,
// and the project as a whole carries a single compile task. Ordering between
// tasks (clean before generate, compile after generate, declared
// dependencies between blocks) is expressed as edges in a task graph.
package task

import (
	"fmt"
	"strings"
)

// Kind identifies the lifecycle stage a task belongs to.
type Kind string

const (
	KindClean    Kind = "clean"
	KindGenerate Kind = "generate"
	KindCompile  Kind = "compile"
)

// CompileID is the task ID of the single project compile task.
const CompileID = "compile"

// Task is one schedulable unit of work.
type Task struct {
	// ID is the unique task identifier, e.g. "generate:main".
	ID string

	// Kind is the lifecycle stage.
	Kind Kind

	// Generator is the generator block name this task acts on.
	// Empty for the compile task.
	Generator string
}

// CleanID returns the clean task ID for a generator block.
func CleanID(name string) string {
	return string(KindClean) + ":" + name
}

// GenerateID returns the generate task ID for a generator block.
func GenerateID(name string) string {
	return string(KindGenerate) + ":" + name
}

// ParseID splits a task ID into its kind and generator name.
func ParseID(id string) (Kind, string, error) {
	if id == CompileID {
		return KindCompile, "", nil
	}

	kind, name, ok := strings.Cut(id, ":")
	if !ok {
		return "", "", fmt.Errorf("invalid task ID: %s", id)
	}

	switch Kind(kind) {
	case KindClean, KindGenerate:
		return Kind(kind), name, nil
	default:
		return "", "", fmt.Errorf("unknown task kind: %s", kind)
	}
}
