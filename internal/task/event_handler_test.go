package task

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examkit/practice-api/internal/events"
)

func newHandlerFixture(t *testing.T) (*FinalizeEventHandler, *TaskQueue, *stubFinalizer) {
	t.Helper()

	finalizer := &stubFinalizer{}
	factory, err := NewSessionFinalizeTaskFactory(finalizer, slog.Default())
	require.NoError(t, err)

	queue := NewTaskQueue(4, slog.Default())
	t.Cleanup(queue.Close)

	return NewFinalizeEventHandler(factory, queue, slog.Default()), queue, finalizer
}

func TestFinalizeEventHandler_EnqueuesTask(t *testing.T) {
	t.Parallel()

	handler, queue, _ := newHandlerFixture(t)
	sessionID := uuid.New()

	event, err := events.NewTaskRequestEvent(TaskTypeSessionFinalize,
		sessionFinalizePayload{SessionID: sessionID.String()})
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))

	select {
	case enqueued := <-queue.GetChannel():
		assert.Equal(t, TaskTypeSessionFinalize, enqueued.Type())
	default:
		t.Fatal("expected a task on the queue")
	}
}

func TestFinalizeEventHandler_IgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()

	handler, queue, _ := newHandlerFixture(t)

	event, err := events.NewTaskRequestEvent("unrelated_type", map[string]string{"k": "v"})
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))

	select {
	case <-queue.GetChannel():
		t.Fatal("unrelated event must not enqueue a task")
	default:
	}
}

func TestFinalizeEventHandler_RejectsBadSessionID(t *testing.T) {
	t.Parallel()

	handler, queue, _ := newHandlerFixture(t)

	event, err := events.NewTaskRequestEvent(TaskTypeSessionFinalize,
		sessionFinalizePayload{SessionID: "not-a-uuid"})
	require.NoError(t, err)

	require.Error(t, handler.HandleEvent(context.Background(), event))

	select {
	case <-queue.GetChannel():
		t.Fatal("invalid event must not enqueue a task")
	default:
	}
}
