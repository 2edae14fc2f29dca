package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/events"
)

// FinalizeTimerSet schedules one cancellable deferred finalization per
// in-progress session. Reset arms (or re-arms) a session's timer for the full
// inactivity timeout; when it fires, a finalize-request event is emitted into
// the task pipeline. Explicit finalization cancels the timer.
//
// Timers live in process memory. Sessions whose timers are lost to a restart
// are picked up by the StaleSessionSweeper's recovery sweep.
type FinalizeTimerSet struct {
	emitter events.EventEmitter
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewFinalizeTimerSet creates a timer set that emits finalize-request events
// after timeout of inactivity.
func NewFinalizeTimerSet(
	emitter events.EventEmitter,
	timeout time.Duration,
	logger *slog.Logger,
) (*FinalizeTimerSet, error) {
	if emitter == nil {
		return nil, fmt.Errorf("%w: event emitter cannot be nil", domain.ErrValidation)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: inactivity timeout must be positive", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FinalizeTimerSet{
		emitter: emitter,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "finalize_timer_set")),
		timers:  make(map[uuid.UUID]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Reset arms the session's inactivity timer for the full timeout, replacing
// any timer already running for it. Called on session start and on every
// recorded response.
func (f *FinalizeTimerSet) Reset(sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctx.Err() != nil {
		return
	}
	if timer, ok := f.timers[sessionID]; ok {
		timer.Stop()
	}
	f.timers[sessionID] = time.AfterFunc(f.timeout, func() {
		f.fire(sessionID)
	})
}

// Cancel stops and discards the session's timer, if any. Called on explicit
// finalization.
func (f *FinalizeTimerSet) Cancel(sessionID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if timer, ok := f.timers[sessionID]; ok {
		timer.Stop()
		delete(f.timers, sessionID)
	}
}

// Stop cancels all pending timers. The set accepts no new Resets afterwards.
func (f *FinalizeTimerSet) Stop() {
	f.cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, timer := range f.timers {
		timer.Stop()
		delete(f.timers, id)
	}
}

// fire emits the finalize-request event for an expired timer. The event
// handler and session service treat already-finalized sessions as no-ops, so
// a timer racing an explicit finalize is harmless.
func (f *FinalizeTimerSet) fire(sessionID uuid.UUID) {
	f.mu.Lock()
	delete(f.timers, sessionID)
	f.mu.Unlock()

	if f.ctx.Err() != nil {
		return
	}

	event, err := events.NewTaskRequestEvent(TaskTypeSessionFinalize,
		sessionFinalizePayload{SessionID: sessionID.String()})
	if err != nil {
		f.logger.Error("failed to build finalize event",
			"error", err,
			"session_id", sessionID)
		return
	}

	if err := f.emitter.EmitEvent(f.ctx, event); err != nil {
		f.logger.Error("failed to emit finalize event",
			"error", err,
			"session_id", sessionID)
		return
	}

	f.logger.Info("inactivity timer expired",
		"session_id", sessionID,
		"timeout", f.timeout)
}
