package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagen/pkg/core"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	return store
}

func TestCreateAndGetRun(t *testing.T) {
	store := openTestStore(t)

	run, err := store.CreateRun("dev")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "dev", run.Environment)
	assert.Equal(t, core.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())
	assert.Nil(t, run.CompletedAt)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "dev", got.Environment)
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCompleteRun(t *testing.T) {
	store := openTestStore(t)

	run, err := store.CreateRun("dev")
	require.NoError(t, err)

	require.NoError(t, store.CompleteRun(run.ID, core.RunStatusFailed, "generator exploded"))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, got.Status)
	assert.Equal(t, "generator exploded", got.Error)
	require.NotNil(t, got.CompletedAt)
}

func TestGetLatestRun(t *testing.T) {
	store := openTestStore(t)

	latest, err := store.GetLatestRun("dev")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = store.CreateRun("dev")
	require.NoError(t, err)
	second, err := store.CreateRun("dev")
	require.NoError(t, err)
	_, err = store.CreateRun("prod")
	require.NoError(t, err)

	latest, err = store.GetLatestRun("dev")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestListRuns(t *testing.T) {
	store := openTestStore(t)

	for range 3 {
		_, err := store.CreateRun("dev")
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestTaskRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	run, err := store.CreateRun("dev")
	require.NoError(t, err)

	tr, err := store.RecordTaskRun(run.ID, "generate:main", core.TaskRunStatusRunning)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "generate:main", tr.TaskID)

	require.NoError(t, store.UpdateTaskRun(tr.ID, core.TaskRunStatusSuccess, "", 1234))

	taskRuns, err := store.GetTaskRunsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, taskRuns, 1)
	assert.Equal(t, core.TaskRunStatusSuccess, taskRuns[0].Status)
	assert.Equal(t, int64(1234), taskRuns[0].ExecutionMS)
	assert.Empty(t, taskRuns[0].Error)
	require.NotNil(t, taskRuns[0].CompletedAt)
}

func TestTaskRunFailure(t *testing.T) {
	store := openTestStore(t)

	run, err := store.CreateRun("dev")
	require.NoError(t, err)

	tr, err := store.RecordTaskRun(run.ID, "generate:main", core.TaskRunStatusRunning)
	require.NoError(t, err)
	require.NoError(t, store.UpdateTaskRun(tr.ID, core.TaskRunStatusFailed, "exit code 3", 50))

	got, err := store.GetLatestTaskRun("generate:main")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.TaskRunStatusFailed, got.Status)
	assert.Equal(t, "exit code 3", got.Error)
}

func TestGetLatestTaskRunNeverRan(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetLatestTaskRun("generate:never")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInputHashes(t *testing.T) {
	store := openTestStore(t)

	hash, err := store.GetInputHash("generate:main")
	require.NoError(t, err)
	assert.Empty(t, hash)

	require.NoError(t, store.SetInputHash("generate:main", "abc123"))

	hash, err = store.GetInputHash("generate:main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", hash)

	// Upsert replaces.
	require.NoError(t, store.SetInputHash("generate:main", "def456"))
	hash, err = store.GetInputHash("generate:main")
	require.NoError(t, err)
	assert.Equal(t, "def456", hash)

	require.NoError(t, store.DeleteInputHash("generate:main"))
	hash, err = store.GetInputHash("generate:main")
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestOperationsWithoutOpen(t *testing.T) {
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun("dev")
	assert.Error(t, err)

	err = store.SetInputHash("x", "y")
	assert.Error(t, err)
}
