package task

import (
	"context"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskTypeSessionFinalize is the task type for finalizing idle exam sessions.
const TaskTypeSessionFinalize = "session_finalize"

// Task is one unit of background work.
type Task interface {
	// ID returns the task's unique identifier.
	ID() uuid.UUID

	// Type names the task kind.
	Type() string

	// Payload returns the serialized task data.
	Payload() []byte

	// Status reports the task's current lifecycle state.
	Status() TaskStatus

	// Execute runs the task.
	Execute(ctx context.Context) error
}

// TaskQueueReader is the consumer side of the queue, held by workers.
type TaskQueueReader interface {
	// GetChannel returns a read-only channel of tasks to execute.
	GetChannel() <-chan Task
}

// TaskQueueWriter is the producer side of the queue, held by event handlers.
type TaskQueueWriter interface {
	// Enqueue submits a task. It fails when the queue is full or closed.
	Enqueue(task Task) error

	// Close stops further submissions.
	Close()
}
