package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
)

// ExamSessionStore defines the interface for exam session persistence.
type ExamSessionStore interface {
	// Create saves a new exam session together with its item order.
	// Returns ErrDuplicate if a session with the same ID already exists.
	Create(ctx context.Context, session *domain.ExamSession) error

	// Get retrieves a session with its responses by ID.
	// Returns ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.ExamSession, error)

	// AppendResponse records a response and the session's state change in one
	// write. The (session, item) pair is unique; a second insert for the same
	// pair returns ErrDuplicate so the caller can replay the stored ack.
	AppendResponse(ctx context.Context, session *domain.ExamSession, resp *domain.Response) error

	// UpdateState persists a session state transition.
	// Returns ErrSessionNotFound if the session does not exist.
	UpdateState(ctx context.Context, id uuid.UUID, state domain.SessionState, now time.Time) error

	// SaveReport stores the finalized score report for a session.
	SaveReport(ctx context.Context, report *domain.ScoreReport) error

	// GetReport retrieves the stored score report for a session.
	// Returns ErrScoreReportNotFound if the session has not been scored.
	GetReport(ctx context.Context, sessionID uuid.UUID) (*domain.ScoreReport, error)

	// ListStale returns created and in-progress sessions whose last activity
	// is older than the cutoff. The finalizer task uses this at startup to
	// recover timers for sessions that were live when the process last
	// stopped, including sessions composed but never answered.
	ListStale(ctx context.Context, cutoff time.Time) ([]*domain.ExamSession, error)

	// WithTx returns a new ExamSessionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ExamSessionStore
}
