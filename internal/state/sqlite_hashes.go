package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetInputHash retrieves the stored input fingerprint for a task.
// Returns an empty string when no fingerprint is recorded.
func (s *SQLiteStore) GetInputHash(taskID string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	var hash string
	err := s.db.QueryRow(
		`SELECT hash FROM input_hashes WHERE task_id = ?`, taskID,
	).Scan(&hash)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get input hash: %w", err)
	}

	return hash, nil
}

// SetInputHash stores the input fingerprint for a task, replacing any
// previous value.
func (s *SQLiteStore) SetInputHash(taskID, hash string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT INTO input_hashes (task_id, hash, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
		taskID, hash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set input hash: %w", err)
	}
	return nil
}

// DeleteInputHash removes the stored fingerprint for a task. Used by clean
// so the next generate is never considered up to date.
func (s *SQLiteStore) DeleteInputHash(taskID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(`DELETE FROM input_hashes WHERE task_id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete input hash: %w", err)
	}
	return nil
}
