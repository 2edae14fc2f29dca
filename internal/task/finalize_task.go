package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
)

// SessionFinalizer is the narrow slice of the session service the finalize
// task needs. Satisfied by service.SessionService.
type SessionFinalizer interface {
	FinalizeStale(ctx context.Context, sessionID uuid.UUID) error
}

// sessionFinalizePayload is the task's serialized payload shape.
type sessionFinalizePayload struct {
	SessionID string `json:"session_id"`
}

// SessionFinalizeTask finalizes one idle exam session. Execution is
// idempotent: a session that was finalized (or deleted) between sweep and
// execution is left alone.
type SessionFinalizeTask struct {
	id        uuid.UUID
	sessionID uuid.UUID
	finalizer SessionFinalizer
	logger    *slog.Logger

	mu     sync.Mutex
	status TaskStatus
}

// NewSessionFinalizeTask creates a task that finalizes the given session.
func NewSessionFinalizeTask(
	sessionID uuid.UUID,
	finalizer SessionFinalizer,
	logger *slog.Logger,
) (*SessionFinalizeTask, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("%w: session ID cannot be nil", domain.ErrValidation)
	}
	if finalizer == nil {
		return nil, fmt.Errorf("%w: finalizer cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionFinalizeTask{
		id:        uuid.New(),
		sessionID: sessionID,
		finalizer: finalizer,
		logger:    logger.With(slog.String("component", "session_finalize_task")),
		status:    TaskStatusPending,
	}, nil
}

// ID implements Task.ID
func (t *SessionFinalizeTask) ID() uuid.UUID {
	return t.id
}

// Type implements Task.Type
func (t *SessionFinalizeTask) Type() string {
	return TaskTypeSessionFinalize
}

// Payload implements Task.Payload
func (t *SessionFinalizeTask) Payload() []byte {
	data, err := json.Marshal(sessionFinalizePayload{SessionID: t.sessionID.String()})
	if err != nil {
		return nil
	}
	return data
}

// Status implements Task.Status
func (t *SessionFinalizeTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *SessionFinalizeTask) setStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// Execute implements Task.Execute
func (t *SessionFinalizeTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)

	if err := t.finalizer.FinalizeStale(ctx, t.sessionID); err != nil {
		t.setStatus(TaskStatusFailed)
		return fmt.Errorf("failed to finalize session %s: %w", t.sessionID, err)
	}

	t.setStatus(TaskStatusCompleted)
	return nil
}

// SessionFinalizeTaskFactory creates finalize tasks bound to the session
// service and logger.
type SessionFinalizeTaskFactory struct {
	finalizer SessionFinalizer
	logger    *slog.Logger
}

// NewSessionFinalizeTaskFactory creates a new factory.
func NewSessionFinalizeTaskFactory(
	finalizer SessionFinalizer,
	logger *slog.Logger,
) (*SessionFinalizeTaskFactory, error) {
	if finalizer == nil {
		return nil, fmt.Errorf("%w: finalizer cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionFinalizeTaskFactory{
		finalizer: finalizer,
		logger:    logger,
	}, nil
}

// CreateTask builds a finalize task for the given session.
func (f *SessionFinalizeTaskFactory) CreateTask(sessionID uuid.UUID) (Task, error) {
	return NewSessionFinalizeTask(sessionID, f.finalizer, f.logger)
}
