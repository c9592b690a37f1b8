// Package task contains the task aggregate: the lifecycle state machine,
// the time-tracking ledger, the progress tracker and the derived metrics.
// The aggregate is the unit of consistency; every mutation goes through a
// method on Task so the ledger exclusivity, audit-trail and derived-value
// invariants hold after each committed command.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority constants
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var validPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

// MinEstimatedHours is the lower bound for the estimated effort of a task
const MinEstimatedHours = 0.1

// Billing holds the billing flags for a task. Invoice arithmetic happens
// outside the core; only the references live here.
type Billing struct {
	Rate       float64 `json:"rate"`
	Billable   bool    `json:"billable"`
	Invoiced   bool    `json:"invoiced"`
	InvoiceRef string  `json:"invoice_ref,omitempty"`
}

// Progress holds the completion percentage and the free-text notes
type Progress struct {
	Percentage int            `json:"percentage"`
	Notes      []ProgressNote `json:"notes"`
}

// ProgressNote is a timestamped free-text note on a task
type ProgressNote struct {
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is the aggregate root. One persisted document per task; departments,
// users and clients are referenced by opaque identifier, never embedded.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TaskType    string   `json:"task_type"`
	Tags        []string `json:"tags,omitempty"`
	IsUrgent    bool     `json:"is_urgent"`
	Priority    string   `json:"priority"`

	DepartmentID string `json:"department_id"`
	AssignedTo   string `json:"assigned_to,omitempty"`
	CreatedBy    string `json:"created_by"`
	ClientID     string `json:"client_id,omitempty"`

	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	DueDate        time.Time  `json:"due_date"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	CompletedDate  *time.Time `json:"completed_date,omitempty"`

	Status        Status         `json:"status"`
	Progress      Progress       `json:"progress"`
	TimeEntries   []TimeEntry    `json:"time_entries"`
	StatusHistory []StatusRecord `json:"status_history"`
	Billing       Billing        `json:"billing"`
	Attachments   []string       `json:"attachments,omitempty"`

	// Version supports the conditional write at the storage layer
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the fields accepted at task creation
type CreateInput struct {
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	TaskType       string    `json:"task_type"`
	Tags           []string  `json:"tags"`
	IsUrgent       bool      `json:"is_urgent"`
	Priority       string    `json:"priority"`
	DepartmentID   string    `json:"department_id"`
	AssignedTo     string    `json:"assigned_to"`
	ClientID       string    `json:"client_id"`
	EstimatedHours float64   `json:"estimated_hours"`
	DueDate        time.Time `json:"due_date"`
	BillingRate    float64   `json:"billing_rate"`
	Billable       bool      `json:"billable"`
}

// New creates a task with status pending, zero progress and an empty
// ledger. The initial status does not produce a StatusHistory record.
// Cross-reference checks (assignee department membership, client
// capability) are the calling service's responsibility.
func New(in CreateInput, actor Actor, now time.Time) (*Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, NewValidationError("description is required")
	}
	if strings.TrimSpace(in.TaskType) == "" {
		return nil, NewValidationError("task type is required")
	}
	if strings.TrimSpace(in.DepartmentID) == "" {
		return nil, NewValidationError("department is required")
	}
	if in.DueDate.IsZero() {
		return nil, NewValidationError("due date is required")
	}

	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !validPriorities[priority] {
		return nil, NewValidationError("unknown priority %q", priority)
	}

	estimated := in.EstimatedHours
	if estimated == 0 {
		estimated = 1
	}
	if estimated <= MinEstimatedHours {
		return nil, NewValidationError("estimated hours must be greater than %.1f", MinEstimatedHours)
	}

	return &Task{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		TaskType:       in.TaskType,
		Tags:           dedupeTags(in.Tags),
		IsUrgent:       in.IsUrgent,
		Priority:       priority,
		DepartmentID:   in.DepartmentID,
		AssignedTo:     in.AssignedTo,
		CreatedBy:      actor.ID,
		ClientID:       in.ClientID,
		EstimatedHours: estimated,
		DueDate:        in.DueDate,
		Status:         StatusPending,
		Progress:       Progress{Percentage: 0, Notes: []ProgressNote{}},
		TimeEntries:    []TimeEntry{},
		StatusHistory:  []StatusRecord{},
		Billing:        Billing{Rate: in.BillingRate, Billable: in.Billable},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// UpdateInput carries a partial update: nil fields are left untouched.
// Status, progress and the ledger are deliberately absent; those mutate
// through their own commands only.
type UpdateInput struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	TaskType       *string    `json:"task_type,omitempty"`
	Tags           *[]string  `json:"tags,omitempty"`
	IsUrgent       *bool      `json:"is_urgent,omitempty"`
	Priority       *string    `json:"priority,omitempty"`
	AssignedTo     *string    `json:"assigned_to,omitempty"`
	ClientID       *string    `json:"client_id,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	BillingRate    *float64   `json:"billing_rate,omitempty"`
	Billable       *bool      `json:"billable,omitempty"`
	Invoiced       *bool      `json:"invoiced,omitempty"`
	InvoiceRef     *string    `json:"invoice_ref,omitempty"`
}

// Apply writes the fields present in the input onto the task. Field-level
// validation happens here; cross-reference checks stay in the service.
func (t *Task) Apply(in UpdateInput, now time.Time) error {
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return NewValidationError("title cannot be empty")
		}
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return NewValidationError("description cannot be empty")
		}
		t.Description = *in.Description
	}
	if in.TaskType != nil {
		if strings.TrimSpace(*in.TaskType) == "" {
			return NewValidationError("task type cannot be empty")
		}
		t.TaskType = *in.TaskType
	}
	if in.Tags != nil {
		t.Tags = dedupeTags(*in.Tags)
	}
	if in.IsUrgent != nil {
		t.IsUrgent = *in.IsUrgent
	}
	if in.Priority != nil {
		if !validPriorities[*in.Priority] {
			return NewValidationError("unknown priority %q", *in.Priority)
		}
		t.Priority = *in.Priority
	}
	if in.AssignedTo != nil {
		t.AssignedTo = *in.AssignedTo
	}
	if in.ClientID != nil {
		t.ClientID = *in.ClientID
	}
	if in.EstimatedHours != nil {
		if *in.EstimatedHours <= MinEstimatedHours {
			return NewValidationError("estimated hours must be greater than %.1f", MinEstimatedHours)
		}
		t.EstimatedHours = *in.EstimatedHours
	}
	if in.DueDate != nil {
		if in.DueDate.IsZero() {
			return NewValidationError("due date cannot be empty")
		}
		t.DueDate = *in.DueDate
	}
	if in.BillingRate != nil {
		t.Billing.Rate = *in.BillingRate
	}
	if in.Billable != nil {
		t.Billing.Billable = *in.Billable
	}
	if in.Invoiced != nil {
		t.Billing.Invoiced = *in.Invoiced
	}
	if in.InvoiceRef != nil {
		t.Billing.InvoiceRef = *in.InvoiceRef
	}
	t.UpdatedAt = now
	return nil
}

// Stakeholders returns the identifiers interested in lifecycle events:
// the creator and, when set, the assignee.
func (t *Task) Stakeholders() []string {
	out := []string{t.CreatedBy}
	if t.AssignedTo != "" && t.AssignedTo != t.CreatedBy {
		out = append(out, t.AssignedTo)
	}
	return out
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
