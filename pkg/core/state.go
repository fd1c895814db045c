package core

import "time"

// Store defines the interface for state management operations.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Run operations
	CreateRun(env string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun(env string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Task run operations
	RecordTaskRun(runID, taskID string, status TaskRunStatus) (*TaskRun, error)
	UpdateTaskRun(id string, status TaskRunStatus, errMsg string, executionMS int64) error
	GetTaskRunsForRun(runID string) ([]*TaskRun, error)
	GetLatestTaskRun(taskID string) (*TaskRun, error)

	// Input fingerprint tracking for up-to-date checks
	GetInputHash(taskID string) (string, error)
	SetInputHash(taskID, hash string) error
	DeleteInputHash(taskID string) error
}

// RunStatus represents the status of a build run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one invocation of the build lifecycle.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// TaskRunStatus represents the status of an individual task execution.
type TaskRunStatus string

// Task run status constants.
const (
	TaskRunStatusPending  TaskRunStatus = "pending"
	TaskRunStatusRunning  TaskRunStatus = "running"
	TaskRunStatusSuccess  TaskRunStatus = "success"
	TaskRunStatusFailed   TaskRunStatus = "failed"
	TaskRunStatusSkipped  TaskRunStatus = "skipped"
	TaskRunStatusUpToDate TaskRunStatus = "up-to-date"
)

// TaskRun represents a single execution of a task within a run.
type TaskRun struct {
	ID          string
	RunID       string
	TaskID      string
	Status      TaskRunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	ExecutionMS int64
}
