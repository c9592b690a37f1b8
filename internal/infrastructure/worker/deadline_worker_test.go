package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/dispatcher"
	"github.com/brightframe/studioops/internal/application/port"
	"github.com/brightframe/studioops/internal/domain/event"
	"github.com/brightframe/studioops/internal/domain/task"
)

var sweepNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// stubRepo serves fixed task lists to the sweep
type stubRepo struct {
	overdue   []*task.Task
	dueWithin []*task.Task
}

func (r *stubRepo) Create(context.Context, *task.Task) error          { return nil }
func (r *stubRepo) GetByID(context.Context, string) (*task.Task, error) { return nil, nil }
func (r *stubRepo) Update(context.Context, *task.Task) error          { return nil }

func (r *stubRepo) List(context.Context, port.TaskFilter) ([]*task.Task, error) {
	return nil, nil
}

func (r *stubRepo) ListOverdue(context.Context, port.TaskFilter, time.Time) ([]*task.Task, error) {
	return r.overdue, nil
}

func (r *stubRepo) ListDueWithin(context.Context, time.Duration, time.Time) ([]*task.Task, error) {
	return r.dueWithin, nil
}

// recordingDispatcher captures dispatched events
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, dispatcher.Handler)              {}
func (d *recordingDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}
func (d *recordingDispatcher) Unsubscribe(event.Type, string)                        {}
func (d *recordingDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo      { return nil }
func (d *recordingDispatcher) Close() error                                          { return nil }

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) byType(t event.Type) []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*event.Event{}
	for _, evt := range d.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func sweepTask(id string, due time.Time) *task.Task {
	return &task.Task{
		ID:        id,
		Title:     "Task " + id,
		CreatedBy: "user-1",
		DueDate:   due,
		Status:    task.StatusInProgress,
	}
}

func TestSweep(t *testing.T) {
	t.Run("emits overdue and approaching events", func(t *testing.T) {
		repo := &stubRepo{
			overdue:   []*task.Task{sweepTask("t1", sweepNow.Add(-time.Hour))},
			dueWithin: []*task.Task{sweepTask("t2", sweepNow.Add(6*time.Hour))},
		}
		disp := &recordingDispatcher{}
		w := NewDeadlineWorker(DefaultDeadlineWorkerConfig(), repo, disp, zap.NewNop())

		w.Sweep(context.Background(), sweepNow)

		overdue := disp.byType(event.TypeTaskOverdue)
		require.Len(t, overdue, 1)
		assert.Equal(t, "t1", overdue[0].TaskID)
		assert.Equal(t, []string{"user-1"}, overdue[0].Recipients)

		approaching := disp.byType(event.TypeDeadlineApproaching)
		require.Len(t, approaching, 1)
		assert.Equal(t, "t2", approaching[0].TaskID)
	})

	t.Run("notifies once per task until due date changes", func(t *testing.T) {
		due := sweepNow.Add(-time.Hour)
		repo := &stubRepo{overdue: []*task.Task{sweepTask("t1", due)}}
		disp := &recordingDispatcher{}
		w := NewDeadlineWorker(DefaultDeadlineWorkerConfig(), repo, disp, zap.NewNop())

		w.Sweep(context.Background(), sweepNow)
		w.Sweep(context.Background(), sweepNow.Add(time.Hour))

		assert.Len(t, disp.byType(event.TypeTaskOverdue), 1)

		// Moving the due date re-arms the notification
		repo.overdue[0].DueDate = sweepNow.Add(30 * time.Minute)
		w.Sweep(context.Background(), sweepNow.Add(2*time.Hour))

		assert.Len(t, disp.byType(event.TypeTaskOverdue), 2)
	})
}

func TestStartStop(t *testing.T) {
	repo := &stubRepo{}
	disp := &recordingDispatcher{}
	w := NewDeadlineWorker(DeadlineWorkerConfig{
		SweepInterval:     time.Hour,
		ApproachingWindow: 24 * time.Hour,
	}, repo, disp, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start must fail")

	w.Stop()

	// Stop again is a no-op
	w.Stop()
}
