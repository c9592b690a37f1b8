package task

import (
	"math"
	"time"
)

// IsOverdue reports whether the task is past its due date and still open
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate.Before(now) && !t.Status.IsTerminal()
}

// DaysRemaining returns the whole days until the due date, rounded up.
// Negative values signal how many days overdue the task is. Terminal
// tasks have no remaining time, signalled by nil.
func (t *Task) DaysRemaining(now time.Time) *int {
	if t.Status.IsTerminal() {
		return nil
	}
	days := int(math.Ceil(t.DueDate.Sub(now).Hours() / 24))
	return &days
}
