// Package notifier forwards lifecycle events to the stakeholder
// notification channel. Delivery is best effort: failures are logged and
// never surface as command failures.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brightframe/studioops/internal/application/dispatcher"
	"github.com/brightframe/studioops/internal/domain/event"
)

// subscribed is the set of event types forwarded to stakeholders
var subscribed = []event.Type{
	event.TypeTaskAssigned,
	event.TypeStatusChanged,
	event.TypeProgressUpdated,
	event.TypeNoteAdded,
	event.TypeTaskOverdue,
	event.TypeDeadlineApproaching,
}

// WebhookNotifier posts lifecycle events as JSON to a configured endpoint
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// New creates a webhook notifier. An empty URL yields a log-only
// notifier, useful in development.
func New(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Register subscribes the notifier to the stakeholder-facing event types
func (n *WebhookNotifier) Register(d dispatcher.Dispatcher) {
	for _, t := range subscribed {
		d.SubscribeNamed(t, "webhook-notifier", n.Handle)
	}
}

// Handle delivers one event. Events without recipients are skipped.
func (n *WebhookNotifier) Handle(ctx context.Context, evt *event.Event) error {
	if len(evt.Recipients) == 0 {
		return nil
	}

	if n.url == "" {
		n.logger.Info("Notification (log only)",
			zap.String("type", evt.Type.String()),
			zap.String("task_id", evt.TaskID),
			zap.Strings("recipients", evt.Recipients))
		return nil
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("Notification delivery failed",
			zap.String("type", evt.Type.String()),
			zap.String("task_id", evt.TaskID),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Error("Notification endpoint rejected event",
			zap.String("type", evt.Type.String()),
			zap.String("task_id", evt.TaskID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
