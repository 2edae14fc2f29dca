package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/events"
	"github.com/examkit/practice-api/internal/store"
)

// StaleSessionSweeperConfig holds configuration for the sweeper
type StaleSessionSweeperConfig struct {
	// InactivityTimeout is how long a session may sit idle before it is
	// swept into finalization.
	InactivityTimeout time.Duration

	// Interval is how often the sweep runs. If zero, defaults to one minute.
	Interval time.Duration
}

// StaleSessionSweeper is the recovery backstop behind the per-session
// inactivity timers: those live in process memory, so sessions that went
// idle while the process was down have no timer to fire. The sweeper scans
// for in-progress sessions past the inactivity timeout and emits a
// finalize-request event for each, once at startup and then on a slow
// interval.
type StaleSessionSweeper struct {
	sessions store.ExamSessionStore
	emitter  events.EventEmitter
	config   StaleSessionSweeperConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStaleSessionSweeper creates a new sweeper.
func NewStaleSessionSweeper(
	sessions store.ExamSessionStore,
	emitter events.EventEmitter,
	config StaleSessionSweeperConfig,
	logger *slog.Logger,
) (*StaleSessionSweeper, error) {
	if sessions == nil {
		return nil, fmt.Errorf("%w: session store cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, fmt.Errorf("%w: event emitter cannot be nil", domain.ErrValidation)
	}
	if config.InactivityTimeout <= 0 {
		return nil, fmt.Errorf("%w: inactivity timeout must be positive", domain.ErrValidation)
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &StaleSessionSweeper{
		sessions: sessions,
		emitter:  emitter,
		config:   config,
		logger:   logger.With(slog.String("component", "stale_session_sweeper")),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start runs an immediate recovery sweep, then sweeps on the configured
// interval until Stop is called.
func (s *StaleSessionSweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the sweep loop and waits for it to exit.
func (s *StaleSessionSweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *StaleSessionSweeper) run() {
	defer s.wg.Done()

	// Recovery sweep: sessions that went idle during downtime get picked up
	// before the first tick.
	s.Sweep(s.ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep finds sessions idle past the timeout and emits a finalize-request
// event for each. It returns the number of events emitted; errors are logged
// rather than propagated so one bad sweep never stops the loop.
func (s *StaleSessionSweeper) Sweep(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.config.InactivityTimeout)

	stale, err := s.sessions.ListStale(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to list stale sessions", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	s.logger.Info("sweeping stale sessions", "count", len(stale))

	emitted := 0
	for _, session := range stale {
		event, err := events.NewTaskRequestEvent(TaskTypeSessionFinalize,
			sessionFinalizePayload{SessionID: session.ID.String()})
		if err != nil {
			s.logger.Error("failed to build finalize event",
				"error", err,
				"session_id", session.ID)
			continue
		}

		if err := s.emitter.EmitEvent(ctx, event); err != nil {
			s.logger.Error("failed to emit finalize event",
				"error", err,
				"session_id", session.ID)
			continue
		}
		emitted++
	}

	return emitted
}
