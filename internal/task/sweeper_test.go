package task

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/events"
	"github.com/examkit/practice-api/internal/mocks"
)

// recordingHandler captures emitted events for assertions.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) received() []*events.TaskRequestEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*events.TaskRequestEvent(nil), h.events...)
}

func seedStaleSession(
	t *testing.T,
	sessions *mocks.MemorySessionStore,
	idleFor time.Duration,
) *domain.ExamSession {
	t.Helper()

	session, err := domain.NewExamSession(uuid.New(), "cisa", []string{"item-1"}, nil)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-idleFor)
	require.NoError(t, session.Begin(past))
	session.LastActivityAt = past

	require.NoError(t, sessions.Create(context.Background(), session))
	return session
}

func newSweeperFixture(
	t *testing.T,
	timeout time.Duration,
) (*StaleSessionSweeper, *mocks.MemorySessionStore, *recordingHandler) {
	t.Helper()

	sessions := mocks.NewMemorySessionStore()
	handler := &recordingHandler{}
	emitter := events.NewInMemoryEventEmitter(slog.Default())
	emitter.RegisterHandler(handler)

	sweeper, err := NewStaleSessionSweeper(sessions, emitter, StaleSessionSweeperConfig{
		InactivityTimeout: timeout,
		Interval:          time.Hour,
	}, slog.Default())
	require.NoError(t, err)

	return sweeper, sessions, handler
}

func TestSweep_EmitsFinalizeEventsForStaleSessions(t *testing.T) {
	t.Parallel()

	sweeper, sessions, handler := newSweeperFixture(t, 30*time.Minute)

	stale := seedStaleSession(t, sessions, 2*time.Hour)
	seedStaleSession(t, sessions, time.Minute) // still active

	emitted := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, emitted)

	received := handler.received()
	require.Len(t, received, 1)
	assert.Equal(t, TaskTypeSessionFinalize, received[0].Type)

	var payload sessionFinalizePayload
	require.NoError(t, received[0].UnmarshalPayload(&payload))
	assert.Equal(t, stale.ID.String(), payload.SessionID)
}

func TestSweep_IncludesComposedButNeverStartedSessions(t *testing.T) {
	t.Parallel()

	sweeper, sessions, handler := newSweeperFixture(t, 30*time.Minute)

	// Composed but never answered: the session is still in the created
	// state, as after a restart that lost its inactivity timer.
	session, err := domain.NewExamSession(uuid.New(), "cisa", []string{"item-1"}, nil)
	require.NoError(t, err)
	require.Equal(t, domain.SessionStateCreated, session.State)
	session.LastActivityAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, sessions.Create(context.Background(), session))

	emitted := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, emitted)

	received := handler.received()
	require.Len(t, received, 1)

	var payload sessionFinalizePayload
	require.NoError(t, received[0].UnmarshalPayload(&payload))
	assert.Equal(t, session.ID.String(), payload.SessionID)
}

func TestSweep_NoStaleSessions(t *testing.T) {
	t.Parallel()

	sweeper, _, handler := newSweeperFixture(t, 30*time.Minute)

	assert.Equal(t, 0, sweeper.Sweep(context.Background()))
	assert.Empty(t, handler.received())
}

func TestSweeper_StartRunsRecoverySweep(t *testing.T) {
	t.Parallel()

	sweeper, sessions, handler := newSweeperFixture(t, 30*time.Minute)
	seedStaleSession(t, sessions, 2*time.Hour)

	sweeper.Start()
	defer sweeper.Stop()

	// The startup sweep runs asynchronously; wait for its event.
	assert.Eventually(t, func() bool {
		return len(handler.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewStaleSessionSweeper_Validation(t *testing.T) {
	t.Parallel()

	emitter := events.NewInMemoryEventEmitter(slog.Default())

	_, err := NewStaleSessionSweeper(nil, emitter, StaleSessionSweeperConfig{
		InactivityTimeout: time.Minute,
	}, slog.Default())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewStaleSessionSweeper(mocks.NewMemorySessionStore(), emitter,
		StaleSessionSweeperConfig{}, slog.Default())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
