// Package event defines the lifecycle events the core emits toward the
// stakeholder notifier. The core only produces events; delivery is an
// external, best-effort concern.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is one lifecycle notification. Recipients carry the resolved
// stakeholder identifiers; the notifier decides how to reach them.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	TaskID     string         `json:"task_id"`
	Recipients []string       `json:"recipients,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// New creates a lifecycle event with a generated ID and current timestamp
func New(eventType Type, taskID string, recipients []string, payload map[string]any) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TaskID:     taskID,
		Recipients: recipients,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// WithPayload returns a copy of the event with one payload key added
func (e *Event) WithPayload(key string, value any) *Event {
	payload := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	clone := *e
	clone.Payload = payload
	return &clone
}

// PayloadString retrieves a string value from the payload
func (e *Event) PayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PayloadInt retrieves an integer value from the payload
func (e *Event) PayloadInt(key string) int {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
