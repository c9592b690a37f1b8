// Package worker hosts the background sweep that emits overdue and
// deadline-approaching events. The sweep only reads task state and emits
// events; it never mutates aggregates.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/dispatcher"
	"github.com/brightframe/studioops/internal/application/port"
	"github.com/brightframe/studioops/internal/domain/event"
)

// DeadlineWorkerConfig holds configuration for the deadline sweep
type DeadlineWorkerConfig struct {
	SweepInterval     time.Duration
	ApproachingWindow time.Duration
}

// DefaultDeadlineWorkerConfig returns default configuration
func DefaultDeadlineWorkerConfig() DeadlineWorkerConfig {
	return DeadlineWorkerConfig{
		SweepInterval:     15 * time.Minute,
		ApproachingWindow: 24 * time.Hour,
	}
}

// DeadlineWorker periodically scans for overdue and soon-due tasks and
// emits the matching lifecycle events. Each task is notified once per
// category until its due date changes.
type DeadlineWorker struct {
	config     DeadlineWorkerConfig
	taskRepo   port.TaskRepository
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool

	// due date at last notification, keyed by task ID
	notifiedOverdue     map[string]time.Time
	notifiedApproaching map[string]time.Time
}

// NewDeadlineWorker creates a new deadline worker
func NewDeadlineWorker(
	config DeadlineWorkerConfig,
	taskRepo port.TaskRepository,
	disp dispatcher.Dispatcher,
	logger *zap.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		config:              config,
		taskRepo:            taskRepo,
		dispatcher:          disp,
		logger:              logger,
		notifiedOverdue:     make(map[string]time.Time),
		notifiedApproaching: make(map[string]time.Time),
	}
}

// Start begins the sweep loop
func (w *DeadlineWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("deadline worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	go w.run(ctx)

	w.logger.Info("Deadline worker started",
		zap.Duration("sweep_interval", w.config.SweepInterval),
		zap.Duration("approaching_window", w.config.ApproachingWindow))
	return nil
}

// Stop cancels the sweep loop and waits for it to finish
func (w *DeadlineWorker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	w.isRunning = false
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("Deadline worker stopped")
}

func (w *DeadlineWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Sweep once at startup so restarts do not delay notifications
	w.Sweep(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs one scan. Exported so tests can drive it directly.
func (w *DeadlineWorker) Sweep(ctx context.Context, now time.Time) {
	overdue, err := w.taskRepo.ListOverdue(ctx, port.TaskFilter{}, now)
	if err != nil {
		w.logger.Error("Overdue sweep failed", zap.Error(err))
	} else {
		for _, t := range overdue {
			if w.alreadyNotified(w.notifiedOverdue, t.ID, t.DueDate) {
				continue
			}
			w.notifiedOverdue[t.ID] = t.DueDate
			w.dispatcher.DispatchAsync(ctx, event.New(event.TypeTaskOverdue, t.ID, t.Stakeholders(), map[string]any{
				"title":    t.Title,
				"due_date": t.DueDate,
			}))
		}
	}

	approaching, err := w.taskRepo.ListDueWithin(ctx, w.config.ApproachingWindow, now)
	if err != nil {
		w.logger.Error("Deadline sweep failed", zap.Error(err))
		return
	}
	for _, t := range approaching {
		if w.alreadyNotified(w.notifiedApproaching, t.ID, t.DueDate) {
			continue
		}
		w.notifiedApproaching[t.ID] = t.DueDate
		w.dispatcher.DispatchAsync(ctx, event.New(event.TypeDeadlineApproaching, t.ID, t.Stakeholders(), map[string]any{
			"title":    t.Title,
			"due_date": t.DueDate,
		}))
	}
}

func (w *DeadlineWorker) alreadyNotified(seen map[string]time.Time, taskID string, dueDate time.Time) bool {
	last, ok := seen[taskID]
	return ok && last.Equal(dueDate)
}
