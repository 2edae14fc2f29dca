package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskRequestEvent asks for a background task to be created. Emitters (the
// inactivity timers, the recovery sweep) describe the work by type and
// payload only, so they never import the task package.
type TaskRequestEvent struct {
	// ID uniquely identifies this event.
	ID uuid.UUID `json:"id"`

	// Type names the task kind the handler should build.
	Type string `json:"type"`

	// Payload carries the task-specific data as JSON.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was emitted.
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent builds an event of the given type, serializing payload
// to JSON.
func NewTaskRequestEvent(eventType string, payload interface{}) (*TaskRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler consumes events.
type EventHandler interface {
	// HandleEvent processes the event. An error means the event was not
	// handled successfully.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter publishes events to whatever handlers are registered, keeping
// emitters decoupled from consumers.
type EventEmitter interface {
	// EmitEvent delivers the event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
