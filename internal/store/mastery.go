package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
)

// MasteryStore defines the interface for mastery record persistence.
//
// Updates use optimistic concurrency: the caller passes the record with the
// version it expects to replace, and the store refuses the write with
// ErrConcurrentUpdateConflict when the stored version differs. There is no
// row locking; conflicting writers fail fast and retry.
type MasteryStore interface {
	// Create saves a first-encounter mastery record.
	// Returns ErrDuplicate if a record for (learner, item) already exists,
	// which a concurrent first-review race produces; the caller re-reads.
	Create(ctx context.Context, record *domain.MasteryRecord) error

	// Get retrieves the mastery record for (learner, item).
	// Returns ErrMasteryRecordNotFound if no record exists.
	Get(ctx context.Context, learnerID uuid.UUID, itemID string) (*domain.MasteryRecord, error)

	// Update replaces a record, guarded by expectedVersion. The record's own
	// Version field holds the new (incremented) version to write.
	// Returns ErrConcurrentUpdateConflict when the stored version is not
	// expectedVersion, and ErrMasteryRecordNotFound when no record exists.
	Update(ctx context.Context, record *domain.MasteryRecord, expectedVersion int64) error

	// ListDue returns all of a learner's records with DueAt <= asOf,
	// ordered by DueAt ascending.
	ListDue(ctx context.Context, learnerID uuid.UUID, asOf time.Time) ([]*domain.MasteryRecord, error)

	// UpsertTopic folds one response into the (learner, course, topic) rollup.
	// The rollup is created on first touch.
	UpsertTopic(ctx context.Context, learnerID uuid.UUID, courseID, topic string, correct bool, now time.Time) error

	// GetTopic retrieves the rollup for (learner, course, topic), or
	// ErrNotFound when the learner has never touched the topic in the course.
	GetTopic(ctx context.Context, learnerID uuid.UUID, courseID, topic string) (*domain.TopicMastery, error)

	// ListTopics returns all topic rollups for a learner in a course.
	ListTopics(ctx context.Context, learnerID uuid.UUID, courseID string) ([]*domain.TopicMastery, error)

	// WithTx returns a new MasteryStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) MasteryStore
}
