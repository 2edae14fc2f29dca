package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/domain/srs"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// maxMasteryUpdateRetries bounds the optimistic-concurrency retry loop. Each
// retry re-reads the record, so a retry only repeats work when another writer
// actually won the race in between.
const maxMasteryUpdateRetries = 3

// defaultWeaknessThreshold is the accuracy below which a topic is reported
// as weak when no threshold is configured.
const defaultWeaknessThreshold = 0.70

// MasteryServiceError is a custom error type for mastery service errors.
type MasteryServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for MasteryServiceError.
func (e *MasteryServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mastery service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("mastery service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *MasteryServiceError) Unwrap() error {
	return e.Err
}

// NewMasteryServiceError creates a new MasteryServiceError.
func NewMasteryServiceError(operation, message string, err error) *MasteryServiceError {
	return &MasteryServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// TopicSummary is one topic's line in a learner's readiness summary.
type TopicSummary struct {
	Topic    string  `json:"topic"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// LearnerSummary aggregates a learner's standing in one course: per-topic
// accuracy, which topics fall below the weakness threshold, how many items
// are waiting for review, and an overall readiness fraction (correct answers
// over all attempts).
type LearnerSummary struct {
	CourseID   string         `json:"course_id"`
	Topics     []TopicSummary `json:"topics"`
	WeakTopics []string       `json:"weak_topics"`
	DueCount   int            `json:"due_count"`
	Readiness  float64        `json:"readiness"`
}

// MasteryService provides mastery-related operations
type MasteryService interface {
	// ApplyReview folds one graded answer into the learner's mastery state
	// for the item: the per-item spaced-repetition record and the per-topic
	// rollup. Creates the record on first encounter. Version conflicts are
	// retried internally; ErrMasteryRetriesExhausted is returned when every
	// attempt loses the race.
	ApplyReview(
		ctx context.Context,
		learnerID uuid.UUID,
		item *domain.Item,
		correct bool,
		now time.Time,
	) (*domain.MasteryRecord, error)

	// Summary computes the learner's readiness summary for a course.
	Summary(ctx context.Context, learnerID uuid.UUID, courseID string, asOf time.Time) (*LearnerSummary, error)
}

// masteryServiceImpl implements the MasteryService interface
type masteryServiceImpl struct {
	mastery           store.MasteryStore
	srs               srs.Service
	weaknessThreshold float64
	logger            *slog.Logger
}

// NewMasteryService creates a new MasteryService. Topics with accuracy below
// weaknessThreshold are reported as weak in summaries; a non-positive value
// selects the default threshold.
// It returns an error if any of the required dependencies are nil.
func NewMasteryService(
	mastery store.MasteryStore,
	srsService srs.Service,
	weaknessThreshold float64,
	logger *slog.Logger,
) (MasteryService, error) {
	if mastery == nil {
		return nil, fmt.Errorf("%w: mastery store cannot be nil", domain.ErrValidation)
	}
	if srsService == nil {
		return nil, fmt.Errorf("%w: srs service cannot be nil", domain.ErrValidation)
	}
	if weaknessThreshold <= 0 {
		weaknessThreshold = defaultWeaknessThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &masteryServiceImpl{
		mastery:           mastery,
		srs:               srsService,
		weaknessThreshold: weaknessThreshold,
		logger:            logger.With(slog.String("component", "mastery_service")),
	}, nil
}

// ApplyReview implements MasteryService.ApplyReview
func (s *masteryServiceImpl) ApplyReview(
	ctx context.Context,
	learnerID uuid.UUID,
	item *domain.Item,
	correct bool,
	now time.Time,
) (*domain.MasteryRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if item == nil {
		return nil, NewMasteryServiceError("apply_review", "item cannot be nil", domain.ErrValidation)
	}

	var updated *domain.MasteryRecord
	for attempt := 0; attempt < maxMasteryUpdateRetries; attempt++ {
		record, err := s.loadOrCreateRecord(ctx, learnerID, item, now)
		if err != nil {
			return nil, err
		}

		updated, err = s.srs.ApplyOutcome(record, correct, now)
		if err != nil {
			return nil, NewMasteryServiceError("apply_review", "failed to compute next record", err)
		}

		err = s.mastery.Update(ctx, updated, record.Version)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrConcurrentUpdateConflict) {
			log.Debug("mastery update lost version race, retrying",
				slog.String("learner_id", learnerID.String()),
				slog.String("item_id", item.ID),
				slog.Int("attempt", attempt+1))
			updated = nil
			continue
		}
		return nil, NewMasteryServiceError("apply_review", "failed to update mastery record", err)
	}

	if updated == nil {
		log.Warn("mastery update retries exhausted",
			slog.String("learner_id", learnerID.String()),
			slog.String("item_id", item.ID))
		return nil, NewMasteryServiceError("apply_review", "concurrent updates kept winning",
			ErrMasteryRetriesExhausted)
	}

	if err := s.mastery.UpsertTopic(ctx, learnerID, item.CourseID, item.Topic, correct, now); err != nil {
		return nil, NewMasteryServiceError("apply_review", "failed to update topic rollup", err)
	}

	log.Debug("applied review outcome",
		slog.String("learner_id", learnerID.String()),
		slog.String("item_id", item.ID),
		slog.Bool("correct", correct),
		slog.Int("interval_days", updated.IntervalDays),
		slog.Int64("version", updated.Version))

	return updated, nil
}

// loadOrCreateRecord reads the (learner, item) record, creating a
// first-encounter record when none exists. A concurrent first review can
// make the create race too; the loser re-reads the winner's record.
func (s *masteryServiceImpl) loadOrCreateRecord(
	ctx context.Context,
	learnerID uuid.UUID,
	item *domain.Item,
	now time.Time,
) (*domain.MasteryRecord, error) {
	record, err := s.mastery.Get(ctx, learnerID, item.ID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, store.ErrMasteryRecordNotFound) {
		return nil, NewMasteryServiceError("apply_review", "failed to load mastery record", err)
	}

	record, err = domain.NewMasteryRecord(learnerID, item.ID, item.CourseID, item.Topic, now)
	if err != nil {
		return nil, NewMasteryServiceError("apply_review", "failed to create mastery record", err)
	}

	err = s.mastery.Create(ctx, record)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, store.ErrDuplicate) {
		record, err = s.mastery.Get(ctx, learnerID, item.ID)
		if err != nil {
			return nil, NewMasteryServiceError("apply_review", "failed to re-read record after create race", err)
		}
		return record, nil
	}
	return nil, NewMasteryServiceError("apply_review", "failed to save mastery record", err)
}

// Summary implements MasteryService.Summary
func (s *masteryServiceImpl) Summary(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID string,
	asOf time.Time,
) (*LearnerSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if courseID == "" {
		return nil, NewMasteryServiceError("summary", "course ID cannot be empty", domain.ErrValidation)
	}

	rollups, err := s.mastery.ListTopics(ctx, learnerID, courseID)
	if err != nil {
		return nil, NewMasteryServiceError("summary", "failed to list topic rollups", err)
	}

	due, err := s.mastery.ListDue(ctx, learnerID, asOf)
	if err != nil {
		return nil, NewMasteryServiceError("summary", "failed to list due records", err)
	}

	dueCount := 0
	for _, record := range due {
		if record.CourseID == courseID {
			dueCount++
		}
	}

	summary := &LearnerSummary{
		CourseID:   courseID,
		Topics:     make([]TopicSummary, 0, len(rollups)),
		WeakTopics: make([]string, 0),
		DueCount:   dueCount,
	}

	var totalAttempts, totalCorrect int
	for _, rollup := range rollups {
		summary.Topics = append(summary.Topics, TopicSummary{
			Topic:    rollup.Topic,
			Attempts: rollup.Attempts,
			Correct:  rollup.Correct,
			Accuracy: rollup.Accuracy(),
		})
		if rollup.Attempts > 0 && rollup.Accuracy() < s.weaknessThreshold {
			summary.WeakTopics = append(summary.WeakTopics, rollup.Topic)
		}
		totalAttempts += rollup.Attempts
		totalCorrect += rollup.Correct
	}
	if totalAttempts > 0 {
		summary.Readiness = float64(totalCorrect) / float64(totalAttempts)
	}

	log.Debug("computed learner summary",
		slog.String("learner_id", learnerID.String()),
		slog.String("course_id", courseID),
		slog.Int("topic_count", len(summary.Topics)),
		slog.Int("due_count", summary.DueCount))

	return summary, nil
}
