package task

import (
	"strings"
	"time"
)

// Progress thresholds for the derived status transitions
const (
	reviewThreshold   = 75
	completeThreshold = 100
)

// SetPercentage updates the completion percentage and derives the status
// transition it implies. The derived edges mirror the lifecycle table by
// construction, so they bypass the explicit validation:
//
//	0        -> pending stays pending; otherwise back to pending
//	1..74    -> in_progress (StartDate stamped once)
//	75..99   -> review, unless already completed
//	100      -> completed (CompletedDate stamped, timers closed)
//
// A non-empty note is appended whether or not the percentage changed.
// Terminal tasks reject percentage updates.
func (t *Task) SetPercentage(actor Actor, value int, note string, now time.Time) error {
	if value < 0 || value > completeThreshold {
		return NewValidationError("percentage must be between 0 and 100, got %d", value)
	}
	if t.Status.IsTerminal() {
		return NewConflictError("task %s is %s", t.ID, t.Status)
	}

	if strings.TrimSpace(note) != "" {
		t.Progress.Notes = append(t.Progress.Notes, ProgressNote{
			Text:      note,
			AuthorID:  actor.ID,
			Timestamp: now,
		})
	}

	t.Progress.Percentage = value

	switch {
	case value == 0:
		// Resetting to zero moves a started task back to pending. The
		// reverse edge is not in the explicit table; it exists only for
		// this reset path.
		if t.Status != StatusPending {
			t.applyTransition(actor, StatusPending, "progress reset to 0%", now)
		}
	case value < reviewThreshold:
		if t.Status != StatusInProgress {
			t.applyTransition(actor, StatusInProgress, "", now)
		}
	case value < completeThreshold:
		if t.Status != StatusReview {
			t.applyTransition(actor, StatusReview, "", now)
		}
	default:
		t.applyTransition(actor, StatusCompleted, "", now)
	}
	return nil
}

// AddNote appends a free-text note. Percentage and status are untouched.
func (t *Task) AddNote(actor Actor, text string, now time.Time) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("note text cannot be empty")
	}
	t.Progress.Notes = append(t.Progress.Notes, ProgressNote{
		Text:      text,
		AuthorID:  actor.ID,
		Timestamp: now,
	})
	return nil
}
