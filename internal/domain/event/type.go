package event

// Type identifies the type of domain event
type Type string

const (
	TypeTaskCreated         Type = "task.created"
	TypeTaskAssigned        Type = "task.assigned"
	TypeStatusChanged       Type = "task.status_changed"
	TypeProgressUpdated     Type = "task.progress_updated"
	TypeNoteAdded           Type = "task.note_added"
	TypeTimeStarted         Type = "time.started"
	TypeTimeStopped         Type = "time.stopped"
	TypeTimeRecorded        Type = "time.recorded"
	TypeTaskOverdue         Type = "task.overdue"
	TypeDeadlineApproaching Type = "task.deadline_approaching"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTaskCreated,
		TypeTaskAssigned,
		TypeStatusChanged,
		TypeProgressUpdated,
		TypeNoteAdded,
		TypeTimeStarted,
		TypeTimeStopped,
		TypeTimeRecorded,
		TypeTaskOverdue,
		TypeDeadlineApproaching:
		return true
	default:
		return false
	}
}
