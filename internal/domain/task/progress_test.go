package task

import (
	"testing"
	"time"
)

func TestSetPercentage_DerivedTransitions(t *testing.T) {
	tests := []struct {
		name       string
		value      int
		wantStatus Status
	}{
		{"zero keeps pending", 0, StatusPending},
		{"one starts work", 1, StatusInProgress},
		{"mid range stays in progress", 50, StatusInProgress},
		{"just below review threshold", 74, StatusInProgress},
		{"review threshold", 75, StatusReview},
		{"just below completion", 99, StatusReview},
		{"completion", 100, StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTestTask(t)

			if err := tk.SetPercentage(testActor, tt.value, "", testNow); err != nil {
				t.Fatalf("SetPercentage() unexpected error: %v", err)
			}
			if tk.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", tk.Status, tt.wantStatus)
			}
			if tk.Progress.Percentage != tt.value {
				t.Errorf("Percentage = %d, want %d", tk.Progress.Percentage, tt.value)
			}
		})
	}
}

func TestSetPercentage_RangeValidation(t *testing.T) {
	tk := newTestTask(t)

	for _, v := range []int{-1, 101, 500} {
		if err := tk.SetPercentage(testActor, v, "", testNow); !IsValidation(err) {
			t.Errorf("SetPercentage(%d): expected validation error, got %v", v, err)
		}
	}
	if tk.Status != StatusPending || len(tk.StatusHistory) != 0 {
		t.Error("rejected update must not change state")
	}
}

func TestSetPercentage_NoTransitionWhenStatusMatches(t *testing.T) {
	tk := newTestTask(t)
	tk.SetPercentage(testActor, 30, "", testNow)

	before := len(tk.StatusHistory)
	if err := tk.SetPercentage(testActor, 60, "", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("SetPercentage() unexpected error: %v", err)
	}

	if tk.Status != StatusInProgress {
		t.Errorf("Status = %v, want in_progress", tk.Status)
	}
	if len(tk.StatusHistory) != before {
		t.Error("percentage change within the same band must not append history")
	}
}

func TestSetPercentage_ResetToZero(t *testing.T) {
	tk := newTestTask(t)
	tk.SetPercentage(testActor, 80, "", testNow)

	if err := tk.SetPercentage(testActor, 0, "", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("SetPercentage() unexpected error: %v", err)
	}

	if tk.Status != StatusPending {
		t.Errorf("Status = %v, want pending", tk.Status)
	}
	last := tk.StatusHistory[len(tk.StatusHistory)-1]
	if last.Previous != StatusReview || last.New != StatusPending {
		t.Errorf("record = %s -> %s, want review -> pending", last.Previous, last.New)
	}
	if last.Reason != "progress reset to 0%" {
		t.Errorf("Reason = %q", last.Reason)
	}
}

func TestSetPercentage_Completion(t *testing.T) {
	tk := newTestTask(t)
	tk.SetPercentage(testActor, 20, "", testNow)
	tk.StartTimer(testActor, "", testNow)

	done := testNow.Add(3 * time.Hour)
	if err := tk.SetPercentage(testActor, 100, "shipped", done); err != nil {
		t.Fatalf("SetPercentage() unexpected error: %v", err)
	}

	if tk.Status != StatusCompleted {
		t.Errorf("Status = %v, want completed", tk.Status)
	}
	if tk.CompletedDate == nil || !tk.CompletedDate.Equal(done) {
		t.Errorf("CompletedDate = %v, want %v", tk.CompletedDate, done)
	}
	for _, entry := range tk.TimeEntries {
		if entry.IsActive {
			t.Error("completion must close active time entries")
		}
	}
}

func TestSetPercentage_TerminalRejected(t *testing.T) {
	tk := newTestTask(t)
	tk.SetPercentage(testActor, 100, "", testNow)

	if err := tk.SetPercentage(testActor, 50, "", testNow.Add(time.Hour)); !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if tk.Progress.Percentage != 100 {
		t.Errorf("Percentage = %d, want 100", tk.Progress.Percentage)
	}
}

func TestSetPercentage_StampsStartDateOnce(t *testing.T) {
	tk := newTestTask(t)
	first := testNow.Add(time.Hour)

	tk.SetPercentage(testActor, 10, "", first)
	if tk.StartDate == nil || !tk.StartDate.Equal(first) {
		t.Fatalf("StartDate = %v, want %v", tk.StartDate, first)
	}

	tk.SetPercentage(testActor, 0, "", first.Add(time.Hour))
	tk.SetPercentage(testActor, 10, "", first.Add(2*time.Hour))

	if !tk.StartDate.Equal(first) {
		t.Errorf("StartDate changed on restart: %v", tk.StartDate)
	}
}

func TestSetPercentage_NoteAppended(t *testing.T) {
	tk := newTestTask(t)

	// Note recorded even when the percentage does not change
	if err := tk.SetPercentage(testActor, 0, "still blocked on assets", testNow); err != nil {
		t.Fatalf("SetPercentage() unexpected error: %v", err)
	}
	if len(tk.Progress.Notes) != 1 {
		t.Fatalf("notes length = %d, want 1", len(tk.Progress.Notes))
	}
	if tk.Progress.Notes[0].AuthorID != testActor.ID {
		t.Errorf("AuthorID = %v, want %v", tk.Progress.Notes[0].AuthorID, testActor.ID)
	}

	// Blank note is not recorded
	tk.SetPercentage(testActor, 10, "   ", testNow)
	if len(tk.Progress.Notes) != 1 {
		t.Errorf("blank note must not be appended, got %d notes", len(tk.Progress.Notes))
	}
}

func TestAddNote(t *testing.T) {
	t.Run("appends without touching status", func(t *testing.T) {
		tk := newTestTask(t)

		if err := tk.AddNote(testActor, "waiting on client", testNow); err != nil {
			t.Fatalf("AddNote() unexpected error: %v", err)
		}
		if len(tk.Progress.Notes) != 1 {
			t.Fatalf("notes length = %d, want 1", len(tk.Progress.Notes))
		}
		if tk.Status != StatusPending || tk.Progress.Percentage != 0 {
			t.Error("AddNote must not change status or percentage")
		}
	})

	t.Run("rejects blank text", func(t *testing.T) {
		tk := newTestTask(t)
		if err := tk.AddNote(testActor, "  ", testNow); !IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}
