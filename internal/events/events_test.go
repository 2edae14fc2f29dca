package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finalizePayload struct {
	SessionID string `json:"session_id"`
}

func TestNewTaskRequestEvent(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	event, err := NewTaskRequestEvent("session_finalize", finalizePayload{SessionID: sessionID.String()})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "session_finalize", event.Type)
	assert.WithinDuration(t, time.Now().UTC(), event.CreatedAt, 2*time.Second)

	var decoded finalizePayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, sessionID.String(), decoded.SessionID)
}

func TestNewTaskRequestEvent_UnserializablePayload(t *testing.T) {
	t.Parallel()

	_, err := NewTaskRequestEvent("session_finalize", func() {})
	assert.Error(t, err)
}

func TestUnmarshalPayload_Mismatch(t *testing.T) {
	t.Parallel()

	event, err := NewTaskRequestEvent("session_finalize", finalizePayload{SessionID: "abc"})
	require.NoError(t, err)

	var wrong []int
	assert.Error(t, event.UnmarshalPayload(&wrong))
}

// countingHandler records deliveries and can be told to fail.
type countingHandler struct {
	lastEvent *TaskRequestEvent
	failWith  error
	handled   int
}

func (h *countingHandler) HandleEvent(ctx context.Context, event *TaskRequestEvent) error {
	h.lastEvent = event
	h.handled++
	return h.failWith
}
