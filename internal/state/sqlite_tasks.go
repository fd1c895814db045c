package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/schemagen/pkg/core"
)

// RecordTaskRun records the start of a task execution within a run.
func (s *SQLiteStore) RecordTaskRun(runID, taskID string, status core.TaskRunStatus) (*core.TaskRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	tr := &core.TaskRun{
		ID:        generateID(),
		RunID:     runID,
		TaskID:    taskID,
		Status:    status,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO task_runs (id, run_id, task_id, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		tr.ID, tr.RunID, tr.TaskID, tr.Status, tr.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record task run: %w", err)
	}

	return tr, nil
}

// UpdateTaskRun updates the status and outcome of a task execution.
func (s *SQLiteStore) UpdateTaskRun(id string, status core.TaskRunStatus, errMsg string, executionMS int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE task_runs SET status = ?, completed_at = ?, error = ?, execution_ms = ? WHERE id = ?`,
		status, time.Now().UTC(), errVal, executionMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update task run: %w", err)
	}
	return nil
}

// GetTaskRunsForRun retrieves all task executions belonging to a run,
// ordered by start time.
func (s *SQLiteStore) GetTaskRunsForRun(runID string) ([]*core.TaskRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, task_id, status, started_at, completed_at, error, execution_ms
		 FROM task_runs WHERE run_id = ? ORDER BY started_at ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get task runs: %w", err)
	}
	defer rows.Close()

	var taskRuns []*core.TaskRun
	for rows.Next() {
		tr, err := scanTaskRun(rows)
		if err != nil {
			return nil, err
		}
		taskRuns = append(taskRuns, tr)
	}

	return taskRuns, rows.Err()
}

// GetLatestTaskRun retrieves the most recent execution of a task across all
// runs. Returns nil without error when the task has never run.
func (s *SQLiteStore) GetLatestTaskRun(taskID string) (*core.TaskRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, run_id, task_id, status, started_at, completed_at, error, execution_ms
		 FROM task_runs WHERE task_id = ? ORDER BY started_at DESC LIMIT 1`, taskID,
	)

	tr := &core.TaskRun{}
	var completedAt sql.NullTime
	var errMsg sql.NullString
	var execMS sql.NullInt64

	err := row.Scan(&tr.ID, &tr.RunID, &tr.TaskID, &tr.Status, &tr.StartedAt, &completedAt, &errMsg, &execMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest task run: %w", err)
	}

	if completedAt.Valid {
		tr.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		tr.Error = errMsg.String
	}
	if execMS.Valid {
		tr.ExecutionMS = execMS.Int64
	}

	return tr, nil
}

func scanTaskRun(rows *sql.Rows) (*core.TaskRun, error) {
	tr := &core.TaskRun{}
	var completedAt sql.NullTime
	var errMsg sql.NullString
	var execMS sql.NullInt64

	if err := rows.Scan(&tr.ID, &tr.RunID, &tr.TaskID, &tr.Status, &tr.StartedAt, &completedAt, &errMsg, &execMS); err != nil {
		return nil, fmt.Errorf("failed to scan task run: %w", err)
	}

	if completedAt.Valid {
		tr.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		tr.Error = errMsg.String
	}
	if execMS.Valid {
		tr.ExecutionMS = execMS.Int64
	}

	return tr, nil
}
