package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/events"
)

// FinalizeEventHandler implements the events.EventHandler interface,
// turning finalize-request events into tasks on the queue.
type FinalizeEventHandler struct {
	factory *SessionFinalizeTaskFactory
	queue   TaskQueueWriter
	logger  *slog.Logger
}

// NewFinalizeEventHandler creates an event handler that uses the given
// factory to create finalize tasks and enqueues them for the worker pool.
func NewFinalizeEventHandler(
	factory *SessionFinalizeTaskFactory,
	queue TaskQueueWriter,
	logger *slog.Logger,
) *FinalizeEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FinalizeEventHandler{
		factory: factory,
		queue:   queue,
		logger:  logger.With(slog.String("component", "finalize_event_handler")),
	}
}

// HandleEvent processes finalize-request events. Events of other types are
// ignored so the handler can share an emitter with future handlers.
func (h *FinalizeEventHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	if event.Type != TaskTypeSessionFinalize {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload sessionFinalizePayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		h.logger.Error("invalid session ID in payload",
			"error", err,
			"session_id", payload.SessionID,
			"event_id", event.ID)
		return fmt.Errorf("invalid session ID: %w", err)
	}

	finalizeTask, err := h.factory.CreateTask(sessionID)
	if err != nil {
		h.logger.Error("failed to create finalize task",
			"error", err,
			"session_id", sessionID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.queue.Enqueue(finalizeTask); err != nil {
		h.logger.Error("failed to enqueue finalize task",
			"error", err,
			"task_id", finalizeTask.ID(),
			"session_id", sessionID,
			"event_id", event.ID)
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	h.logger.Debug("finalize task enqueued",
		"task_id", finalizeTask.ID(),
		"session_id", sessionID,
		"event_id", event.ID)
	return nil
}

// Ensure FinalizeEventHandler implements events.EventHandler
var _ events.EventHandler = (*FinalizeEventHandler)(nil)
