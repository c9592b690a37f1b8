package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/port"
	"github.com/brightframe/studioops/internal/domain/task"
)

const testSchema = `
CREATE TABLE tasks (
    id TEXT PRIMARY KEY,
    department_id TEXT NOT NULL,
    assigned_to TEXT,
    client_id TEXT,
    status TEXT NOT NULL,
    due_date DATETIME NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    document TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`

func setupRepo(t *testing.T) port.TaskRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewTaskRepository(db, zap.NewNop())
}

func sampleTask(t *testing.T, due time.Time) *task.Task {
	t.Helper()
	actor := task.Actor{ID: "user-1", Role: task.RoleStaff}
	tk, err := task.New(task.CreateInput{
		Title:        "Edit promo video",
		Description:  "Rough cut for client review",
		TaskType:     "video",
		DepartmentID: "dept-1",
		DueDate:      due,
	}, actor, time.Now().UTC())
	require.NoError(t, err)
	return tk
}

func TestTaskRepository_CreateAndGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	tk := sampleTask(t, time.Now().Add(48*time.Hour).UTC())

	require.NoError(t, repo.Create(ctx, tk))

	got, err := repo.GetByID(ctx, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, tk.Title, got.Title)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, tk.Version, got.Version)
}

func TestTaskRepository_GetMissing(t *testing.T) {
	repo := setupRepo(t)

	got, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskRepository_UpdateVersioning(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	tk := sampleTask(t, time.Now().Add(48*time.Hour).UTC())
	require.NoError(t, repo.Create(ctx, tk))

	t.Run("successful update bumps version", func(t *testing.T) {
		loaded, err := repo.GetByID(ctx, tk.ID)
		require.NoError(t, err)
		before := loaded.Version

		loaded.Title = "Edit promo video v2"
		require.NoError(t, repo.Update(ctx, loaded))
		assert.Equal(t, before+1, loaded.Version)

		got, err := repo.GetByID(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, "Edit promo video v2", got.Title)
		assert.Equal(t, before+1, got.Version)
	})

	t.Run("stale write loses", func(t *testing.T) {
		first, err := repo.GetByID(ctx, tk.ID)
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, tk.ID)
		require.NoError(t, err)

		first.Description = "first writer"
		require.NoError(t, repo.Update(ctx, first))

		second.Description = "second writer"
		staleVersion := second.Version
		err = repo.Update(ctx, second)
		assert.ErrorIs(t, err, port.ErrVersionConflict)
		assert.Equal(t, staleVersion, second.Version, "failed update must restore the loaded version")
	})
}

func TestTaskRepository_List(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	a := sampleTask(t, time.Now().Add(24*time.Hour).UTC())
	a.AssignedTo = "user-2"
	require.NoError(t, repo.Create(ctx, a))

	b := sampleTask(t, time.Now().Add(24*time.Hour).UTC())
	b.DepartmentID = "dept-2"
	require.NoError(t, repo.Create(ctx, b))

	t.Run("filter by department", func(t *testing.T) {
		got, err := repo.List(ctx, port.TaskFilter{DepartmentID: "dept-2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
	})

	t.Run("filter by assignee", func(t *testing.T) {
		got, err := repo.List(ctx, port.TaskFilter{AssignedTo: "user-2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, a.ID, got[0].ID)
	})

	t.Run("no matches", func(t *testing.T) {
		got, err := repo.List(ctx, port.TaskFilter{Status: task.StatusCompleted})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestTaskRepository_DeadlineQueries(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := sampleTask(t, now.Add(-24*time.Hour))
	require.NoError(t, repo.Create(ctx, past))

	pastDone := sampleTask(t, now.Add(-24*time.Hour))
	pastDone.Status = task.StatusCompleted
	require.NoError(t, repo.Create(ctx, pastDone))

	soon := sampleTask(t, now.Add(6*time.Hour))
	require.NoError(t, repo.Create(ctx, soon))

	far := sampleTask(t, now.Add(72*time.Hour))
	require.NoError(t, repo.Create(ctx, far))

	t.Run("overdue excludes terminal tasks", func(t *testing.T) {
		got, err := repo.ListOverdue(ctx, port.TaskFilter{}, now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, past.ID, got[0].ID)
	})

	t.Run("due within window", func(t *testing.T) {
		got, err := repo.ListDueWithin(ctx, 24*time.Hour, now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, soon.ID, got[0].ID)
	})
}
