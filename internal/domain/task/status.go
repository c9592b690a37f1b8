package task

import (
	"time"

	"github.com/brightframe/studioops/internal/domain/lifecycle"
)

// Status represents a task's lifecycle state
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusReview:     true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the defined lifecycle states
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed from s
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// Trigger represents a command that drives a status transition
type Trigger string

const (
	TriggerStart        Trigger = "start"
	TriggerSubmitReview Trigger = "submit_review"
	TriggerReopen       Trigger = "reopen"
	TriggerComplete     Trigger = "complete"
	TriggerCancel       Trigger = "cancel"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// newStatusMachine builds the task lifecycle machine positioned at the
// given status:
//
//	pending     -> in_progress, cancelled
//	in_progress -> review, completed, cancelled
//	review      -> in_progress, completed, cancelled
//	completed   -> (terminal)
//	cancelled   -> (terminal)
func newStatusMachine(current Status) *lifecycle.Machine[Status, Trigger] {
	builder := lifecycle.NewBuilder[Status, Trigger]()

	builder.Configure(StatusPending).
		Permit(TriggerStart, StatusInProgress).
		Permit(TriggerCancel, StatusCancelled)

	builder.Configure(StatusInProgress).
		Permit(TriggerSubmitReview, StatusReview).
		Permit(TriggerComplete, StatusCompleted).
		Permit(TriggerCancel, StatusCancelled)

	builder.Configure(StatusReview).
		Permit(TriggerReopen, StatusInProgress).
		Permit(TriggerComplete, StatusCompleted).
		Permit(TriggerCancel, StatusCancelled)

	return builder.Build(current)
}

// triggerFor maps a desired target status to the trigger that reaches it
// from the given current status. The bool result is false when no trigger
// leads to the target.
func triggerFor(from, to Status) (Trigger, bool) {
	switch to {
	case StatusInProgress:
		if from == StatusReview {
			return TriggerReopen, true
		}
		return TriggerStart, true
	case StatusReview:
		return TriggerSubmitReview, true
	case StatusCompleted:
		return TriggerComplete, true
	case StatusCancelled:
		return TriggerCancel, true
	default:
		return "", false
	}
}

// StatusRecord is one append-only audit entry for a status change
type StatusRecord struct {
	Previous  Status    `json:"previous_status"`
	New       Status    `json:"new_status"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// ChangeStatus performs an explicit status transition, validated against
// the lifecycle table. Exactly one StatusRecord is appended on success.
// Entry into completed closes every active time entry and stamps
// CompletedDate; entry into in_progress stamps StartDate once.
func (t *Task) ChangeStatus(actor Actor, to Status, reason string, now time.Time) error {
	if !to.IsValid() {
		return NewValidationError("unknown status %q", to)
	}
	if to == t.Status {
		return NewConflictError("task already has status %s", to)
	}

	trigger, ok := triggerFor(t.Status, to)
	if !ok {
		return NewConflictError("invalid transition from %s to %s", t.Status, to)
	}

	machine := newStatusMachine(t.Status)
	if err := machine.Fire(trigger); err != nil {
		return NewConflictError("invalid transition from %s to %s", t.Status, to)
	}
	if machine.State() != to {
		return NewConflictError("invalid transition from %s to %s", t.Status, to)
	}

	t.applyTransition(actor, to, reason, now)
	return nil
}

// applyTransition moves the task to the new status, appends the audit
// record and runs the entry side effects. Callers must have validated the
// edge (explicit path) or derived it from the progress rules (implicit
// path, which encodes the same edges by construction).
func (t *Task) applyTransition(actor Actor, to Status, reason string, now time.Time) {
	previous := t.Status
	t.Status = to
	t.StatusHistory = append(t.StatusHistory, StatusRecord{
		Previous:  previous,
		New:       to,
		ActorID:   actor.ID,
		Timestamp: now,
		Reason:    reason,
	})

	switch to {
	case StatusInProgress:
		// StartDate is set exactly once, on first entry into active work
		if t.StartDate == nil {
			start := now
			t.StartDate = &start
		}
	case StatusCompleted:
		if t.CompletedDate == nil {
			completed := now
			t.CompletedDate = &completed
		}
		t.Progress.Percentage = 100
		t.closeActiveEntries(now)
	case StatusCancelled:
		// A cancelled task can never be stopped later, so close running
		// timers here too
		t.closeActiveEntries(now)
	case StatusPending:
		t.Progress.Percentage = 0
	}
}
