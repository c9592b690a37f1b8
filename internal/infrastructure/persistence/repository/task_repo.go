// Package repository implements the persistence ports over sqlite. The
// task aggregate is stored as one JSON document per row; a handful of
// columns are extracted for filtering, with the document as the source
// of truth. Updates are conditional on the version column so concurrent
// writers cannot interleave within one task.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/port"
	"github.com/brightframe/studioops/internal/domain/task"
	"github.com/brightframe/studioops/pkg/database"
)

// busyAttempts bounds the retry budget for transient sqlite lock errors
const busyAttempts = 3

// TaskRepository implements port.TaskRepository over sqlite
type TaskRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sql.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new task document
func (r *TaskRepository) Create(ctx context.Context, t *task.Task) error {
	document, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	query := `
		INSERT INTO tasks (
			id, department_id, assigned_to, client_id, status,
			due_date, version, document, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = r.withBusyRetry(func() error {
		_, err := r.db.ExecContext(ctx, query,
			t.ID,
			t.DepartmentID,
			nullable(t.AssignedTo),
			nullable(t.ClientID),
			t.Status.String(),
			t.DueDate.UTC(),
			t.Version,
			string(document),
			t.CreatedAt.UTC(),
			t.UpdatedAt.UTC(),
		)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.String("task_id", t.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID retrieves the full aggregate. Returns (nil, nil) when the task
// does not exist.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*task.Task, error) {
	var document string
	err := r.db.QueryRowContext(ctx,
		"SELECT document FROM tasks WHERE id = ?", id,
	).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task",
			zap.String("task_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return unmarshalTask(document)
}

// Update writes the aggregate back conditionally on its loaded version.
// The version bump and the document write are one statement, so two
// commands racing on the same task cannot both commit.
func (r *TaskRepository) Update(ctx context.Context, t *task.Task) error {
	loadedVersion := t.Version
	t.Version = loadedVersion + 1

	document, err := json.Marshal(t)
	if err != nil {
		t.Version = loadedVersion
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	query := `
		UPDATE tasks
		SET department_id = ?, assigned_to = ?, client_id = ?, status = ?,
			due_date = ?, version = ?, document = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	var affected int64
	err = r.withBusyRetry(func() error {
		result, err := r.db.ExecContext(ctx, query,
			t.DepartmentID,
			nullable(t.AssignedTo),
			nullable(t.ClientID),
			t.Status.String(),
			t.DueDate.UTC(),
			t.Version,
			string(document),
			t.UpdatedAt.UTC(),
			t.ID,
			loadedVersion,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		t.Version = loadedVersion
		r.logger.Error("Failed to update task",
			zap.String("task_id", t.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}

	if affected == 0 {
		t.Version = loadedVersion
		return port.ErrVersionConflict
	}
	return nil
}

// List returns tasks matching the filter, most recently created first
func (r *TaskRepository) List(ctx context.Context, filter port.TaskFilter) ([]*task.Task, error) {
	query := "SELECT document FROM tasks WHERE 1=1"
	var args []any

	if filter.DepartmentID != "" {
		query += " AND department_id = ?"
		args = append(args, filter.DepartmentID)
	}
	if filter.AssignedTo != "" {
		query += " AND assigned_to = ?"
		args = append(args, filter.AssignedTo)
	}
	if filter.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status.String())
	}
	if filter.DueBefore != nil {
		query += " AND due_date < ?"
		args = append(args, filter.DueBefore.UTC())
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.queryTasks(ctx, query, args...)
}

// ListOverdue returns open tasks whose due date has passed
func (r *TaskRepository) ListOverdue(ctx context.Context, filter port.TaskFilter, now time.Time) ([]*task.Task, error) {
	query := `
		SELECT document FROM tasks
		WHERE due_date < ? AND status NOT IN (?, ?)
	`
	args := []any{now.UTC(), task.StatusCompleted.String(), task.StatusCancelled.String()}

	if filter.DepartmentID != "" {
		query += " AND department_id = ?"
		args = append(args, filter.DepartmentID)
	}
	if filter.AssignedTo != "" {
		query += " AND assigned_to = ?"
		args = append(args, filter.AssignedTo)
	}

	query += " ORDER BY due_date ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.queryTasks(ctx, query, args...)
}

// ListDueWithin returns open tasks due between now and now+window
func (r *TaskRepository) ListDueWithin(ctx context.Context, window time.Duration, now time.Time) ([]*task.Task, error) {
	query := `
		SELECT document FROM tasks
		WHERE due_date >= ? AND due_date < ? AND status NOT IN (?, ?)
		ORDER BY due_date ASC
	`
	return r.queryTasks(ctx, query,
		now.UTC(),
		now.Add(window).UTC(),
		task.StatusCompleted.String(),
		task.StatusCancelled.String(),
	)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t, err := unmarshalTask(document)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// withBusyRetry retries transient sqlite lock errors with bounded
// attempts. Domain-level failures never reach this path.
func (r *TaskRepository) withBusyRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		if err = fn(); err == nil || !database.IsBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

func unmarshalTask(document string) (*task.Task, error) {
	var t task.Task
	if err := json.Unmarshal([]byte(document), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task document: %w", err)
	}
	return &t, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
