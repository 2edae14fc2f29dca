package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// PostgresExamSessionStore implements the store.ExamSessionStore interface
// using a PostgreSQL database as the storage backend.
//
// Sessions are stored across three tables: exam_sessions holds the composed
// session and its item order (item_ids and degraded_cells as JSONB),
// session_responses holds one row per answered item with a primary key on
// (session_id, item_id), and score_reports holds the finalized report as
// JSONB.
type PostgresExamSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresExamSessionStore creates a new PostgreSQL implementation of the
// ExamSessionStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresExamSessionStore(db store.DBTX, logger *slog.Logger) *PostgresExamSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresExamSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "exam_session_store")),
	}
}

// Ensure PostgresExamSessionStore implements store.ExamSessionStore interface
var _ store.ExamSessionStore = (*PostgresExamSessionStore)(nil)

// WithTx implements store.ExamSessionStore.WithTx
func (s *PostgresExamSessionStore) WithTx(tx *sql.Tx) store.ExamSessionStore {
	return &PostgresExamSessionStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.ExamSessionStore.Create
func (s *PostgresExamSessionStore) Create(ctx context.Context, session *domain.ExamSession) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	itemIDs, err := json.Marshal(session.ItemIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal item IDs: %w", err)
	}
	degradedCells, err := json.Marshal(session.DegradedCells)
	if err != nil {
		return fmt.Errorf("failed to marshal degraded cells: %w", err)
	}

	query := `
		INSERT INTO exam_sessions
			(id, learner_id, course_id, item_ids, state, degraded, degraded_cells,
			 created_at, last_activity_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		session.LearnerID,
		session.CourseID,
		itemIDs,
		session.State,
		session.Degraded,
		degradedCells,
		session.CreatedAt,
		session.LastActivityAt,
		session.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create exam session",
			slog.String("session_id", session.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// Get implements store.ExamSessionStore.Get
func (s *PostgresExamSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.ExamSession, error) {
	query := `
		SELECT id, learner_id, course_id, item_ids, state, degraded, degraded_cells,
		       created_at, last_activity_at, updated_at
		FROM exam_sessions
		WHERE id = $1
	`

	var session domain.ExamSession
	var itemIDs, degradedCells []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.LearnerID,
		&session.CourseID,
		&itemIDs,
		&session.State,
		&session.Degraded,
		&degradedCells,
		&session.CreatedAt,
		&session.LastActivityAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, MapError(err)
	}

	if err := json.Unmarshal(itemIDs, &session.ItemIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item IDs: %w", err)
	}
	if len(degradedCells) > 0 {
		if err := json.Unmarshal(degradedCells, &session.DegradedCells); err != nil {
			return nil, fmt.Errorf("failed to unmarshal degraded cells: %w", err)
		}
	}

	responses, err := s.loadResponses(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Responses = responses

	return &session, nil
}

// loadResponses reads a session's responses ordered by submission time.
func (s *PostgresExamSessionStore) loadResponses(ctx context.Context, sessionID uuid.UUID) ([]domain.Response, error) {
	query := `
		SELECT session_id, item_id, selected_option_index, correct,
		       client_timestamp, server_timestamp
		FROM session_responses
		WHERE session_id = $1
		ORDER BY server_timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var responses []domain.Response
	for rows.Next() {
		var resp domain.Response
		err := rows.Scan(
			&resp.SessionID,
			&resp.ItemID,
			&resp.SelectedOptionIndex,
			&resp.Correct,
			&resp.ClientTimestamp,
			&resp.ServerTimestamp,
		)
		if err != nil {
			return nil, MapError(err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return responses, nil
}

// AppendResponse implements store.ExamSessionStore.AppendResponse
func (s *PostgresExamSessionStore) AppendResponse(
	ctx context.Context,
	session *domain.ExamSession,
	resp *domain.Response,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// The (session_id, item_id) primary key is the idempotency guard: the
	// second insert for the same pair fails as a unique violation, which
	// MapError turns into ErrDuplicate for the caller to replay.
	insertQuery := `
		INSERT INTO session_responses
			(session_id, item_id, selected_option_index, correct,
			 client_timestamp, server_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, insertQuery,
		resp.SessionID,
		resp.ItemID,
		resp.SelectedOptionIndex,
		resp.Correct,
		resp.ClientTimestamp,
		resp.ServerTimestamp,
	)
	if err != nil {
		if !IsUniqueViolation(err) {
			log.Error("failed to insert response",
				slog.String("session_id", resp.SessionID.String()),
				slog.String("item_id", resp.ItemID),
				slog.String("error", err.Error()))
		}
		return MapError(err)
	}

	updateQuery := `
		UPDATE exam_sessions
		SET state = $1, last_activity_at = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, updateQuery,
		session.State,
		session.LastActivityAt,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, "exam session")
}

// UpdateState implements store.ExamSessionStore.UpdateState
func (s *PostgresExamSessionStore) UpdateState(
	ctx context.Context,
	id uuid.UUID,
	state domain.SessionState,
	now time.Time,
) error {
	query := `
		UPDATE exam_sessions
		SET state = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, state, now, id)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "exam session"); err != nil {
		if IsNotFoundError(err) {
			return store.ErrSessionNotFound
		}
		return err
	}
	return nil
}

// SaveReport implements store.ExamSessionStore.SaveReport
func (s *PostgresExamSessionStore) SaveReport(ctx context.Context, report *domain.ScoreReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal score report: %w", err)
	}

	// Reports are immutable once written; a conflicting insert keeps the
	// first report so repeated finalization stays idempotent.
	query := `
		INSERT INTO score_reports (session_id, report, finalized_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err = s.db.ExecContext(ctx, query, report.SessionID, payload, report.FinalizedAt)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// GetReport implements store.ExamSessionStore.GetReport
func (s *PostgresExamSessionStore) GetReport(ctx context.Context, sessionID uuid.UUID) (*domain.ScoreReport, error) {
	query := `
		SELECT report
		FROM score_reports
		WHERE session_id = $1
	`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrScoreReportNotFound
		}
		return nil, MapError(err)
	}

	var report domain.ScoreReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal score report: %w", err)
	}
	return &report, nil
}

// ListStale implements store.ExamSessionStore.ListStale
func (s *PostgresExamSessionStore) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.ExamSession, error) {
	// Created sessions are included so a session composed but never answered
	// is still finalized after a restart loses its inactivity timer.
	query := `
		SELECT id
		FROM exam_sessions
		WHERE state IN ($1, $2) AND last_activity_at < $3
	`

	rows, err := s.db.QueryContext(ctx, query,
		domain.SessionStateCreated, domain.SessionStateInProgress, cutoff)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	sessions := make([]*domain.ExamSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err != nil {
			// A session finalized between the scan and the read is no longer
			// stale; skip it.
			if errors.Is(err, store.ErrSessionNotFound) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}
