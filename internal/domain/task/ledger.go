package task

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// TimeEntry is one unit of tracked work. An entry is active while it has
// no end time; closing it computes DurationMinutes.
type TimeEntry struct {
	ID              string     `json:"id"`
	ActorID         string     `json:"actor_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Description     string     `json:"description,omitempty"`
	IsActive        bool       `json:"is_active"`
}

// ManualTimeInput describes an already-finished work session. Either
// EndTime or DurationMinutes must be present.
type ManualTimeInput struct {
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Description     string     `json:"description,omitempty"`
}

// EntryUpdateInput is a partial update of a time entry
type EntryUpdateInput struct {
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Description     *string    `json:"description,omitempty"`
}

// StartTimer opens a live time entry for the actor. At most one active
// entry per actor may exist on a task.
func (t *Task) StartTimer(actor Actor, description string, now time.Time) (*TimeEntry, error) {
	if t.Status.IsTerminal() {
		return nil, NewConflictError("task %s is %s", t.ID, t.Status)
	}
	if existing := t.activeEntryFor(actor.ID); existing != nil {
		return nil, NewConflictError("active time entry exists")
	}

	entry := TimeEntry{
		ID:          uuid.NewString(),
		ActorID:     actor.ID,
		StartTime:   now,
		Description: description,
		IsActive:    true,
	}
	t.TimeEntries = append(t.TimeEntries, entry)
	t.recomputeActualHours()
	return &t.TimeEntries[len(t.TimeEntries)-1], nil
}

// StopTimer closes the actor's active entry. A sub-minute session yields
// a duration of zero, which is valid.
func (t *Task) StopTimer(actor Actor, description string, now time.Time) (*TimeEntry, error) {
	entry := t.activeEntryFor(actor.ID)
	if entry == nil {
		return nil, NewNotFoundError("no active time entry for actor %s", actor.ID)
	}

	end := now
	minutes := minutesBetween(entry.StartTime, end)
	entry.EndTime = &end
	entry.DurationMinutes = &minutes
	entry.IsActive = false
	if description != "" {
		entry.Description = description
	}
	t.recomputeActualHours()
	return entry, nil
}

// RecordManual appends an entry that is created already closed. The
// duration is taken from the explicit end time when given, otherwise from
// the explicit duration; it must be positive.
func (t *Task) RecordManual(actor Actor, in ManualTimeInput) (*TimeEntry, error) {
	if in.StartTime.IsZero() {
		return nil, NewValidationError("start time is required")
	}
	if in.EndTime == nil && in.DurationMinutes == nil {
		return nil, NewValidationError("either end time or duration is required")
	}

	var end time.Time
	var minutes int
	if in.EndTime != nil {
		end = *in.EndTime
		minutes = minutesBetween(in.StartTime, end)
	} else {
		minutes = *in.DurationMinutes
		end = in.StartTime.Add(time.Duration(minutes) * time.Minute)
	}
	if minutes <= 0 {
		return nil, NewValidationError("duration must be positive")
	}

	entry := TimeEntry{
		ID:              uuid.NewString(),
		ActorID:         actor.ID,
		StartTime:       in.StartTime,
		EndTime:         &end,
		DurationMinutes: &minutes,
		Description:     in.Description,
		IsActive:        false,
	}
	t.TimeEntries = append(t.TimeEntries, entry)
	t.recomputeActualHours()
	return &t.TimeEntries[len(t.TimeEntries)-1], nil
}

// UpdateEntry modifies an entry. Only the entry's original actor or an
// elevated role may do so; durations are recomputed whenever start, end
// or duration fields change.
func (t *Task) UpdateEntry(entryID string, actor Actor, in EntryUpdateInput) (*TimeEntry, error) {
	entry := t.entryByID(entryID)
	if entry == nil {
		return nil, NewNotFoundError("time entry %s not found", entryID)
	}
	if entry.ActorID != actor.ID && !actor.Elevated() {
		return nil, NewAuthorizationError("actor %s may not modify this time entry", actor.ID)
	}

	if in.StartTime != nil {
		entry.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		entry.EndTime = in.EndTime
	}
	if in.DurationMinutes != nil && in.EndTime == nil {
		// Duration without a new end: derive the end from the start
		end := entry.StartTime.Add(time.Duration(*in.DurationMinutes) * time.Minute)
		entry.EndTime = &end
	}

	timingChanged := in.StartTime != nil || in.EndTime != nil || in.DurationMinutes != nil
	if timingChanged && entry.EndTime != nil {
		minutes := minutesBetween(entry.StartTime, *entry.EndTime)
		if minutes < 0 {
			return nil, NewValidationError("end time precedes start time")
		}
		entry.DurationMinutes = &minutes
		entry.IsActive = false
	}
	if in.Description != nil {
		entry.Description = *in.Description
	}
	t.recomputeActualHours()
	return entry, nil
}

// DeleteEntry removes an entry under the same authorization rule as
// UpdateEntry
func (t *Task) DeleteEntry(entryID string, actor Actor) error {
	for i := range t.TimeEntries {
		if t.TimeEntries[i].ID != entryID {
			continue
		}
		if t.TimeEntries[i].ActorID != actor.ID && !actor.Elevated() {
			return NewAuthorizationError("actor %s may not delete this time entry", actor.ID)
		}
		t.TimeEntries = append(t.TimeEntries[:i], t.TimeEntries[i+1:]...)
		t.recomputeActualHours()
		return nil
	}
	return NewNotFoundError("time entry %s not found", entryID)
}

// Entry returns the entry with the given ID, or nil
func (t *Task) Entry(entryID string) *TimeEntry {
	return t.entryByID(entryID)
}

func (t *Task) entryByID(entryID string) *TimeEntry {
	for i := range t.TimeEntries {
		if t.TimeEntries[i].ID == entryID {
			return &t.TimeEntries[i]
		}
	}
	return nil
}

func (t *Task) activeEntryFor(actorID string) *TimeEntry {
	for i := range t.TimeEntries {
		if t.TimeEntries[i].IsActive && t.TimeEntries[i].ActorID == actorID {
			return &t.TimeEntries[i]
		}
	}
	return nil
}

// closeActiveEntries ends every running entry. Required side effect of
// entering completed; also applied on cancellation so terminal tasks
// never carry running timers.
func (t *Task) closeActiveEntries(now time.Time) {
	for i := range t.TimeEntries {
		entry := &t.TimeEntries[i]
		if !entry.IsActive {
			continue
		}
		end := now
		minutes := minutesBetween(entry.StartTime, end)
		entry.EndTime = &end
		entry.DurationMinutes = &minutes
		entry.IsActive = false
	}
	t.recomputeActualHours()
}

// recomputeActualHours rebuilds ActualHours from the ledger. Active
// entries contribute nothing until closed.
func (t *Task) recomputeActualHours() {
	total := 0
	for i := range t.TimeEntries {
		if t.TimeEntries[i].DurationMinutes != nil {
			total += *t.TimeEntries[i].DurationMinutes
		}
	}
	t.ActualHours = float64(total) / 60
}

// minutesBetween rounds the elapsed time to whole minutes
func minutesBetween(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}
