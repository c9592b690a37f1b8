package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brightframe/studioops/internal/application/dispatcher"
	"github.com/brightframe/studioops/internal/application/port"
	"github.com/brightframe/studioops/internal/domain/event"
	"github.com/brightframe/studioops/internal/domain/task"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TaskService exposes the task lifecycle and time-tracking commands.
// Every command is applied to the aggregate as one atomic unit: per-task
// lock, load, mutate in memory, conditional write. Events are emitted
// fire-and-forget after a successful commit.
type TaskService interface {
	CreateTask(ctx context.Context, in task.CreateInput, actor task.Actor) (*task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context, filter port.TaskFilter) ([]*task.Task, error)
	UpdateTask(ctx context.Context, id string, in task.UpdateInput, actor task.Actor) (*task.Task, error)
	AssignTask(ctx context.Context, id, assigneeID string, actor task.Actor) (*task.Task, error)
	ChangeStatus(ctx context.Context, id string, to task.Status, reason string, actor task.Actor) (*task.Task, error)
	SetProgress(ctx context.Context, id string, percentage int, note string, actor task.Actor) (*task.Task, error)
	AddNote(ctx context.Context, id, text string, actor task.Actor) (*task.Task, error)
	StartTime(ctx context.Context, id string, actor task.Actor, description string) (*task.TimeEntry, error)
	StopTime(ctx context.Context, id string, actor task.Actor, description string) (*task.TimeEntry, error)
	RecordManualTime(ctx context.Context, id string, actor task.Actor, in task.ManualTimeInput) (*task.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, id, entryID string, actor task.Actor, in task.EntryUpdateInput) (*task.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, id, entryID string, actor task.Actor) error
	ListOverdue(ctx context.Context, filter port.TaskFilter) ([]*task.Task, error)
}

type taskServiceImpl struct {
	taskRepo   port.TaskRepository
	directory  port.Directory
	dispatcher dispatcher.Dispatcher
	logger     Logger
	locks      *keyedMutex
	now        func() time.Time
}

// ServiceOption configures the task service
type ServiceOption func(*taskServiceImpl)

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *taskServiceImpl) {
		s.now = now
	}
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo port.TaskRepository,
	directory port.Directory,
	disp dispatcher.Dispatcher,
	logger Logger,
	opts ...ServiceOption,
) TaskService {
	s := &taskServiceImpl{
		taskRepo:   taskRepo,
		directory:  directory,
		dispatcher: disp,
		logger:     logger,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask validates the input, checks assignee department membership
// and persists a fresh pending task. The initial status writes no history
// record.
func (s *taskServiceImpl) CreateTask(ctx context.Context, in task.CreateInput, actor task.Actor) (*task.Task, error) {
	if in.AssignedTo != "" {
		if err := s.checkMembership(ctx, in.AssignedTo, in.DepartmentID); err != nil {
			return nil, err
		}
	}
	if in.ClientID != "" {
		if err := s.checkClientCapability(ctx, in.ClientID); err != nil {
			return nil, err
		}
	}

	t, err := task.New(in, actor, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		s.logger.Error("Failed to create task", "error", err, "title", in.Title)
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("Task created",
		"task_id", t.ID,
		"department_id", t.DepartmentID,
		"created_by", actor.ID)

	s.emit(ctx, event.New(event.TypeTaskCreated, t.ID, t.Stakeholders(), map[string]any{
		"title":    t.Title,
		"due_date": t.DueDate,
	}))
	if t.AssignedTo != "" {
		s.emit(ctx, event.New(event.TypeTaskAssigned, t.ID, t.Stakeholders(), map[string]any{
			"assigned_to": t.AssignedTo,
			"assigned_by": actor.ID,
		}))
	}
	return t, nil
}

// GetTask retrieves the aggregate snapshot
func (s *taskServiceImpl) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, task.NewNotFoundError("task %s not found", id)
	}
	return t, nil
}

// ListTasks returns tasks matching the filter
func (s *taskServiceImpl) ListTasks(ctx context.Context, filter port.TaskFilter) ([]*task.Task, error) {
	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask applies a partial update. Reassignment and client changes go
// through the same directory checks as creation.
func (s *taskServiceImpl) UpdateTask(ctx context.Context, id string, in task.UpdateInput, actor task.Actor) (*task.Task, error) {
	var assigned string
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		if in.AssignedTo != nil && *in.AssignedTo != "" && *in.AssignedTo != t.AssignedTo {
			if err := s.checkMembership(ctx, *in.AssignedTo, t.DepartmentID); err != nil {
				return err
			}
			assigned = *in.AssignedTo
		}
		if in.ClientID != nil && *in.ClientID != "" && *in.ClientID != t.ClientID {
			if err := s.checkClientCapability(ctx, *in.ClientID); err != nil {
				return err
			}
		}
		return t.Apply(in, s.now())
	})
	if err != nil {
		return nil, err
	}

	if assigned != "" {
		s.emit(ctx, event.New(event.TypeTaskAssigned, t.ID, t.Stakeholders(), map[string]any{
			"assigned_to": assigned,
			"assigned_by": actor.ID,
		}))
	}
	return t, nil
}

// AssignTask reassigns the task, enforcing department membership
func (s *taskServiceImpl) AssignTask(ctx context.Context, id, assigneeID string, actor task.Actor) (*task.Task, error) {
	if assigneeID == "" {
		return nil, task.NewValidationError("assignee is required")
	}
	return s.UpdateTask(ctx, id, task.UpdateInput{AssignedTo: &assigneeID}, actor)
}

// ChangeStatus performs an explicit status transition
func (s *taskServiceImpl) ChangeStatus(ctx context.Context, id string, to task.Status, reason string, actor task.Actor) (*task.Task, error) {
	var previous task.Status
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		previous = t.Status
		return t.ChangeStatus(actor, to, reason, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task status changed",
		"task_id", t.ID,
		"previous_status", previous.String(),
		"new_status", t.Status.String(),
		"actor_id", actor.ID)

	s.emitStatusChanged(ctx, t, previous, actor, reason)
	return t, nil
}

// SetProgress updates the percentage and applies any derived status
// transition. Progress events go to the stakeholders minus the actor;
// status-change events go to all stakeholders.
func (s *taskServiceImpl) SetProgress(ctx context.Context, id string, percentage int, note string, actor task.Actor) (*task.Task, error) {
	var previous task.Status
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		previous = t.Status
		return t.SetPercentage(actor, percentage, note, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.New(event.TypeProgressUpdated, t.ID, without(t.Stakeholders(), actor.ID), map[string]any{
		"percentage": percentage,
		"updated_by": actor.ID,
	}))
	if t.Status != previous {
		s.emitStatusChanged(ctx, t, previous, actor, "")
	}
	return t, nil
}

// AddNote appends a free-text note to the task
func (s *taskServiceImpl) AddNote(ctx context.Context, id, text string, actor task.Actor) (*task.Task, error) {
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		return t.AddNote(actor, text, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.New(event.TypeNoteAdded, t.ID, without(t.Stakeholders(), actor.ID), map[string]any{
		"author_id": actor.ID,
	}))
	return t, nil
}

// StartTime opens a live time entry for the actor. The per-task lock plus
// the repository's conditional write guarantee that of two concurrent
// starts by the same actor exactly one succeeds.
func (s *taskServiceImpl) StartTime(ctx context.Context, id string, actor task.Actor, description string) (*task.TimeEntry, error) {
	var entry *task.TimeEntry
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		var err error
		entry, err = t.StartTimer(actor, description, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.New(event.TypeTimeStarted, t.ID, without(t.Stakeholders(), actor.ID), map[string]any{
		"entry_id": entry.ID,
		"actor_id": actor.ID,
	}))
	snapshot := *entry
	return &snapshot, nil
}

// StopTime closes the actor's active entry
func (s *taskServiceImpl) StopTime(ctx context.Context, id string, actor task.Actor, description string) (*task.TimeEntry, error) {
	var entry *task.TimeEntry
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		var err error
		entry, err = t.StopTimer(actor, description, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.New(event.TypeTimeStopped, t.ID, without(t.Stakeholders(), actor.ID), map[string]any{
		"entry_id":         entry.ID,
		"actor_id":         actor.ID,
		"duration_minutes": *entry.DurationMinutes,
	}))
	snapshot := *entry
	return &snapshot, nil
}

// RecordManualTime appends an already-finished work session
func (s *taskServiceImpl) RecordManualTime(ctx context.Context, id string, actor task.Actor, in task.ManualTimeInput) (*task.TimeEntry, error) {
	var entry *task.TimeEntry
	t, err := s.withTask(ctx, id, func(t *task.Task) error {
		var err error
		entry, err = t.RecordManual(actor, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, event.New(event.TypeTimeRecorded, t.ID, without(t.Stakeholders(), actor.ID), map[string]any{
		"entry_id":         entry.ID,
		"actor_id":         actor.ID,
		"duration_minutes": *entry.DurationMinutes,
	}))
	snapshot := *entry
	return &snapshot, nil
}

// UpdateTimeEntry modifies an entry under the ledger's ownership rule
func (s *taskServiceImpl) UpdateTimeEntry(ctx context.Context, id, entryID string, actor task.Actor, in task.EntryUpdateInput) (*task.TimeEntry, error) {
	var entry *task.TimeEntry
	_, err := s.withTask(ctx, id, func(t *task.Task) error {
		var err error
		entry, err = t.UpdateEntry(entryID, actor, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	snapshot := *entry
	return &snapshot, nil
}

// DeleteTimeEntry removes an entry under the ledger's ownership rule
func (s *taskServiceImpl) DeleteTimeEntry(ctx context.Context, id, entryID string, actor task.Actor) error {
	_, err := s.withTask(ctx, id, func(t *task.Task) error {
		return t.DeleteEntry(entryID, actor)
	})
	return err
}

// ListOverdue returns open tasks past their due date within the scope
func (s *taskServiceImpl) ListOverdue(ctx context.Context, filter port.TaskFilter) ([]*task.Task, error) {
	tasks, err := s.taskRepo.ListOverdue(ctx, filter, s.now())
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	return tasks, nil
}

// withTask runs one command as an atomic read-modify-write unit against
// the task document. The per-task lock serializes commands in this
// process; the version-conditional write catches writers elsewhere.
func (s *taskServiceImpl) withTask(ctx context.Context, id string, fn func(t *task.Task) error) (*task.Task, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t == nil {
		return nil, task.NewNotFoundError("task %s not found", id)
	}

	if err := fn(t); err != nil {
		return nil, err
	}

	t.UpdatedAt = s.now()
	if err := s.taskRepo.Update(ctx, t); err != nil {
		if errors.Is(err, port.ErrVersionConflict) {
			return nil, task.NewConflictError("task %s was modified concurrently", id)
		}
		s.logger.Error("Failed to persist task", "error", err, "task_id", id)
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (s *taskServiceImpl) checkMembership(ctx context.Context, userID, departmentID string) error {
	ok, err := s.directory.IsMemberOfDepartment(ctx, userID, departmentID)
	if err != nil {
		return fmt.Errorf("check department membership: %w", err)
	}
	if !ok {
		return task.NewValidationError("assignee %s does not belong to department %s", userID, departmentID)
	}
	return nil
}

func (s *taskServiceImpl) checkClientCapability(ctx context.Context, clientID string) error {
	ok, err := s.directory.HasClientCapability(ctx, clientID)
	if err != nil {
		return fmt.Errorf("check client capability: %w", err)
	}
	if !ok {
		return task.NewValidationError("%s cannot be referenced as a client", clientID)
	}
	return nil
}

func (s *taskServiceImpl) emitStatusChanged(ctx context.Context, t *task.Task, previous task.Status, actor task.Actor, reason string) {
	payload := map[string]any{
		"previous_status": previous.String(),
		"new_status":      t.Status.String(),
		"changed_by":      actor.ID,
	}
	if reason != "" {
		payload["reason"] = reason
	}
	s.emit(ctx, event.New(event.TypeStatusChanged, t.ID, t.Stakeholders(), payload))
}

// emit hands the event to the dispatcher without waiting. Delivery
// failures are the notifier's problem, never the command's.
func (s *taskServiceImpl) emit(ctx context.Context, evt *event.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, evt)
}

// without filters one ID out of a recipient list
func without(recipients []string, id string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r != id {
			out = append(out, r)
		}
	}
	return out
}
