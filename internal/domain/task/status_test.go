package task

import (
	"testing"
	"time"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		expected bool
	}{
		{StatusPending, false},
		{StatusInProgress, false},
		{StatusReview, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStatus_IsValid(t *testing.T) {
	valid := []Status{StatusPending, StatusInProgress, StatusReview, StatusCompleted, StatusCancelled}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("archived").IsValid() || Status("").IsValid() {
		t.Error("expected unknown statuses to be invalid")
	}
}

func TestChangeStatus_AllowedTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []Status
	}{
		{"pending to in_progress", []Status{StatusInProgress}},
		{"full forward path", []Status{StatusInProgress, StatusReview, StatusCompleted}},
		{"review reopened", []Status{StatusInProgress, StatusReview, StatusInProgress}},
		{"complete without review", []Status{StatusInProgress, StatusCompleted}},
		{"cancel from pending", []Status{StatusCancelled}},
		{"cancel from in_progress", []Status{StatusInProgress, StatusCancelled}},
		{"cancel from review", []Status{StatusInProgress, StatusReview, StatusCancelled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTestTask(t)
			now := testNow
			for _, to := range tt.path {
				now = now.Add(time.Minute)
				if err := tk.ChangeStatus(testActor, to, "", now); err != nil {
					t.Fatalf("ChangeStatus(%s) unexpected error: %v", to, err)
				}
			}
			if tk.Status != tt.path[len(tt.path)-1] {
				t.Errorf("Status = %v, want %v", tk.Status, tt.path[len(tt.path)-1])
			}
			if len(tk.StatusHistory) != len(tt.path) {
				t.Errorf("history length = %d, want %d", len(tk.StatusHistory), len(tt.path))
			}
		})
	}
}

func TestChangeStatus_RejectedTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup []Status
		to    Status
	}{
		{"pending to review", nil, StatusReview},
		{"pending to completed", nil, StatusCompleted},
		{"completed is terminal", []Status{StatusInProgress, StatusCompleted}, StatusInProgress},
		{"cancelled is terminal", []Status{StatusCancelled}, StatusInProgress},
		{"in_progress back to pending", []Status{StatusInProgress}, StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTestTask(t)
			for _, to := range tt.setup {
				if err := tk.ChangeStatus(testActor, to, "", testNow); err != nil {
					t.Fatalf("setup transition to %s failed: %v", to, err)
				}
			}
			before := len(tk.StatusHistory)

			err := tk.ChangeStatus(testActor, tt.to, "", testNow)
			if !IsConflict(err) {
				t.Fatalf("expected conflict error, got %v", err)
			}
			if len(tk.StatusHistory) != before {
				t.Error("rejected transition must not append a history record")
			}
		})
	}
}

func TestChangeStatus_Validation(t *testing.T) {
	tk := newTestTask(t)

	if err := tk.ChangeStatus(testActor, Status("archived"), "", testNow); !IsValidation(err) {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
	if err := tk.ChangeStatus(testActor, StatusPending, "", testNow); !IsConflict(err) {
		t.Errorf("expected conflict error for same-status change, got %v", err)
	}
}

func TestChangeStatus_AuditRecord(t *testing.T) {
	tk := newTestTask(t)
	later := testNow.Add(time.Hour)

	if err := tk.ChangeStatus(testActor, StatusInProgress, "kickoff", later); err != nil {
		t.Fatalf("ChangeStatus() unexpected error: %v", err)
	}

	if len(tk.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(tk.StatusHistory))
	}
	rec := tk.StatusHistory[0]
	if rec.Previous != StatusPending || rec.New != StatusInProgress {
		t.Errorf("record = %s -> %s, want pending -> in_progress", rec.Previous, rec.New)
	}
	if rec.ActorID != testActor.ID {
		t.Errorf("ActorID = %v, want %v", rec.ActorID, testActor.ID)
	}
	if rec.Reason != "kickoff" {
		t.Errorf("Reason = %q, want kickoff", rec.Reason)
	}
	if !rec.Timestamp.Equal(later) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, later)
	}
}

func TestChangeStatus_SideEffects(t *testing.T) {
	t.Run("start date stamped once", func(t *testing.T) {
		tk := newTestTask(t)
		first := testNow.Add(time.Hour)

		if err := tk.ChangeStatus(testActor, StatusInProgress, "", first); err != nil {
			t.Fatalf("ChangeStatus() unexpected error: %v", err)
		}
		if tk.StartDate == nil || !tk.StartDate.Equal(first) {
			t.Fatalf("StartDate = %v, want %v", tk.StartDate, first)
		}

		// Round trip through review; StartDate must survive
		tk.ChangeStatus(testActor, StatusReview, "", first.Add(time.Hour))
		tk.ChangeStatus(testActor, StatusInProgress, "", first.Add(2*time.Hour))

		if !tk.StartDate.Equal(first) {
			t.Errorf("StartDate changed on re-entry: %v", tk.StartDate)
		}
	})

	t.Run("completion stamps date, forces percentage and closes timers", func(t *testing.T) {
		tk := newTestTask(t)
		tk.ChangeStatus(testActor, StatusInProgress, "", testNow)
		if _, err := tk.StartTimer(testActor, "", testNow); err != nil {
			t.Fatalf("StartTimer() unexpected error: %v", err)
		}

		done := testNow.Add(2 * time.Hour)
		if err := tk.ChangeStatus(testActor, StatusCompleted, "", done); err != nil {
			t.Fatalf("ChangeStatus() unexpected error: %v", err)
		}

		if tk.CompletedDate == nil || !tk.CompletedDate.Equal(done) {
			t.Errorf("CompletedDate = %v, want %v", tk.CompletedDate, done)
		}
		if tk.Progress.Percentage != 100 {
			t.Errorf("Percentage = %d, want 100", tk.Progress.Percentage)
		}
		for _, entry := range tk.TimeEntries {
			if entry.IsActive {
				t.Error("completed task must not carry active time entries")
			}
		}
		if tk.ActualHours != 2 {
			t.Errorf("ActualHours = %v, want 2", tk.ActualHours)
		}
	})

	t.Run("cancellation closes timers", func(t *testing.T) {
		tk := newTestTask(t)
		tk.ChangeStatus(testActor, StatusInProgress, "", testNow)
		tk.StartTimer(testActor, "", testNow)

		if err := tk.ChangeStatus(testActor, StatusCancelled, "scope cut", testNow.Add(30*time.Minute)); err != nil {
			t.Fatalf("ChangeStatus() unexpected error: %v", err)
		}
		for _, entry := range tk.TimeEntries {
			if entry.IsActive {
				t.Error("cancelled task must not carry active time entries")
			}
		}
	})
}
