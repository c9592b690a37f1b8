package port

import (
	"context"
	"errors"
	"time"

	"github.com/brightframe/studioops/internal/domain/task"
)

// ErrVersionConflict is returned by TaskRepository.Update when the stored
// document's version no longer matches the version the aggregate was
// loaded at. The conditional write is the storage half of the
// duplicate-active-entry guard.
var ErrVersionConflict = errors.New("task version conflict")

// TaskFilter scopes list queries. Zero values mean "no constraint".
type TaskFilter struct {
	DepartmentID string
	AssignedTo   string
	ClientID     string
	Status       task.Status
	DueBefore    *time.Time
	Limit        int
	Offset       int
}

// TaskRepository persists the task aggregate as a single document.
// GetByID returns (nil, nil) when the task does not exist.
type TaskRepository interface {
	// Create inserts a new task document
	Create(ctx context.Context, t *task.Task) error

	// GetByID retrieves the full aggregate
	GetByID(ctx context.Context, id string) (*task.Task, error)

	// Update writes the aggregate back conditionally on the version it
	// was loaded at, bumping the version on success. Returns
	// ErrVersionConflict when another command committed in between.
	Update(ctx context.Context, t *task.Task) error

	// List returns tasks matching the filter, most recently created first
	List(ctx context.Context, filter TaskFilter) ([]*task.Task, error)

	// ListOverdue returns open tasks whose due date has passed
	ListOverdue(ctx context.Context, filter TaskFilter, now time.Time) ([]*task.Task, error)

	// ListDueWithin returns open tasks due between now and now+window
	ListDueWithin(ctx context.Context, window time.Duration, now time.Time) ([]*task.Task, error)
}
