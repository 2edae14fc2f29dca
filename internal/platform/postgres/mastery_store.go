package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// PostgresMasteryStore implements the store.MasteryStore interface
// using a PostgreSQL database as the storage backend.
//
// Mastery updates use optimistic concurrency: the UPDATE is guarded by the
// version the caller read, and zero affected rows means another writer got
// there first.
type PostgresMasteryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMasteryStore creates a new PostgreSQL implementation of the
// MasteryStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresMasteryStore(db store.DBTX, logger *slog.Logger) *PostgresMasteryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMasteryStore{
		db:     db,
		logger: logger.With(slog.String("component", "mastery_store")),
	}
}

// Ensure PostgresMasteryStore implements store.MasteryStore interface
var _ store.MasteryStore = (*PostgresMasteryStore)(nil)

// WithTx implements store.MasteryStore.WithTx
func (s *PostgresMasteryStore) WithTx(tx *sql.Tx) store.MasteryStore {
	return &PostgresMasteryStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.MasteryStore.Create
func (s *PostgresMasteryStore) Create(ctx context.Context, record *domain.MasteryRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO mastery_records
			(learner_id, item_id, course_id, topic, attempts, correct_streak,
			 ease_factor, interval_days, due_at, last_seen_at, version,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.LearnerID,
		record.ItemID,
		record.CourseID,
		record.Topic,
		record.Attempts,
		record.CorrectStreak,
		record.EaseFactor,
		record.IntervalDays,
		record.DueAt,
		record.LastSeenAt,
		record.Version,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if !IsUniqueViolation(err) {
			log.Error("failed to create mastery record",
				slog.String("learner_id", record.LearnerID.String()),
				slog.String("item_id", record.ItemID),
				slog.String("error", err.Error()))
		}
		return MapError(err)
	}

	return nil
}

// Get implements store.MasteryStore.Get
func (s *PostgresMasteryStore) Get(
	ctx context.Context,
	learnerID uuid.UUID,
	itemID string,
) (*domain.MasteryRecord, error) {
	query := `
		SELECT learner_id, item_id, course_id, topic, attempts, correct_streak,
		       ease_factor, interval_days, due_at, last_seen_at, version,
		       created_at, updated_at
		FROM mastery_records
		WHERE learner_id = $1 AND item_id = $2
	`

	record, err := scanMasteryRecord(s.db.QueryRowContext(ctx, query, learnerID, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMasteryRecordNotFound
		}
		return nil, MapError(err)
	}
	return record, nil
}

// Update implements store.MasteryStore.Update
//
// The WHERE clause carries the expected version; zero affected rows with an
// existing record means a concurrent writer won, reported as
// ErrConcurrentUpdateConflict.
func (s *PostgresMasteryStore) Update(
	ctx context.Context,
	record *domain.MasteryRecord,
	expectedVersion int64,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE mastery_records
		SET topic = $1, attempts = $2, correct_streak = $3, ease_factor = $4,
		    interval_days = $5, due_at = $6, last_seen_at = $7, version = $8,
		    updated_at = $9
		WHERE learner_id = $10 AND item_id = $11 AND version = $12
	`

	result, err := s.db.ExecContext(ctx, query,
		record.Topic,
		record.Attempts,
		record.CorrectStreak,
		record.EaseFactor,
		record.IntervalDays,
		record.DueAt,
		record.LastSeenAt,
		record.Version,
		record.UpdatedAt,
		record.LearnerID,
		record.ItemID,
		expectedVersion,
	)
	if err != nil {
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Distinguish a version conflict from a missing record.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM mastery_records WHERE learner_id = $1 AND item_id = $2)`,
		record.LearnerID, record.ItemID,
	).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrMasteryRecordNotFound
	}

	log.Debug("mastery update version conflict",
		slog.String("learner_id", record.LearnerID.String()),
		slog.String("item_id", record.ItemID),
		slog.Int64("expected_version", expectedVersion))
	return store.ErrConcurrentUpdateConflict
}

// ListDue implements store.MasteryStore.ListDue
func (s *PostgresMasteryStore) ListDue(
	ctx context.Context,
	learnerID uuid.UUID,
	asOf time.Time,
) ([]*domain.MasteryRecord, error) {
	query := `
		SELECT learner_id, item_id, course_id, topic, attempts, correct_streak,
		       ease_factor, interval_days, due_at, last_seen_at, version,
		       created_at, updated_at
		FROM mastery_records
		WHERE learner_id = $1 AND due_at <= $2
		ORDER BY due_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID, asOf)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*domain.MasteryRecord
	for rows.Next() {
		record, err := scanMasteryRecord(rows)
		if err != nil {
			return nil, MapError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return records, nil
}

// UpsertTopic implements store.MasteryStore.UpsertTopic
func (s *PostgresMasteryStore) UpsertTopic(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID, topic string,
	correct bool,
	now time.Time,
) error {
	correctDelta := 0
	if correct {
		correctDelta = 1
	}

	query := `
		INSERT INTO topic_mastery
			(learner_id, course_id, topic, attempts, correct, version, updated_at)
		VALUES ($1, $2, $3, 1, $4, 1, $5)
		ON CONFLICT (learner_id, course_id, topic) DO UPDATE
		SET attempts = topic_mastery.attempts + 1,
		    correct = topic_mastery.correct + $4,
		    version = topic_mastery.version + 1,
		    updated_at = $5
	`

	_, err := s.db.ExecContext(ctx, query, learnerID, courseID, topic, correctDelta, now)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// GetTopic implements store.MasteryStore.GetTopic
func (s *PostgresMasteryStore) GetTopic(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID, topic string,
) (*domain.TopicMastery, error) {
	query := `
		SELECT learner_id, course_id, topic, attempts, correct, version, updated_at
		FROM topic_mastery
		WHERE learner_id = $1 AND course_id = $2 AND topic = $3
	`

	var rollup domain.TopicMastery
	err := s.db.QueryRowContext(ctx, query, learnerID, courseID, topic).Scan(
		&rollup.LearnerID,
		&rollup.CourseID,
		&rollup.Topic,
		&rollup.Attempts,
		&rollup.Correct,
		&rollup.Version,
		&rollup.UpdatedAt,
	)
	if err != nil {
		return nil, MapError(err)
	}
	return &rollup, nil
}

// ListTopics implements store.MasteryStore.ListTopics
func (s *PostgresMasteryStore) ListTopics(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID string,
) ([]*domain.TopicMastery, error) {
	query := `
		SELECT learner_id, course_id, topic, attempts, correct, version, updated_at
		FROM topic_mastery
		WHERE learner_id = $1 AND course_id = $2
		ORDER BY topic ASC
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID, courseID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var rollups []*domain.TopicMastery
	for rows.Next() {
		var rollup domain.TopicMastery
		err := rows.Scan(
			&rollup.LearnerID,
			&rollup.CourseID,
			&rollup.Topic,
			&rollup.Attempts,
			&rollup.Correct,
			&rollup.Version,
			&rollup.UpdatedAt,
		)
		if err != nil {
			return nil, MapError(err)
		}
		rollups = append(rollups, &rollup)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return rollups, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMasteryRecord(row rowScanner) (*domain.MasteryRecord, error) {
	var record domain.MasteryRecord
	err := row.Scan(
		&record.LearnerID,
		&record.ItemID,
		&record.CourseID,
		&record.Topic,
		&record.Attempts,
		&record.CorrectStreak,
		&record.EaseFactor,
		&record.IntervalDays,
		&record.DueAt,
		&record.LastSeenAt,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
