package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Spaced-repetition bounds. The scheduler's interval growth is driven by the
// ease factor, which never leaves [MinEaseFactor, MaxEaseFactor].
const (
	MinEaseFactor     = 1.3
	MaxEaseFactor     = 2.8
	DefaultEaseFactor = 2.5

	// MinIntervalDays is the floor an incorrect answer resets the interval to.
	MinIntervalDays = 1
)

// Common validation errors for MasteryRecord
var (
	ErrEmptyMasteryLearnerID = errors.New("mastery record learner ID cannot be empty")
	ErrEmptyMasteryItemID    = errors.New("mastery record item ID cannot be empty")
	ErrEmptyMasteryCourseID  = errors.New("mastery record course ID cannot be empty")
	ErrInvalidIntervalDays   = errors.New("interval days must be greater than or equal to 0")
	ErrInvalidEaseFactor     = errors.New("ease factor must be at least the configured minimum")
	ErrInvalidMasteryVersion = errors.New("mastery record version must be greater than 0")
)

// MasteryRecord tracks a learner's spaced-repetition state for a single item.
// It implements an SM-2 derivative with binary outcomes: answers are only
// correct or incorrect, never graded on a quality scale.
//
// Records carry a version for optimistic concurrency: every successful store
// update increments it, and writers must present the version they read.
// Records are never deleted; stale knowledge decays through scheduling, not
// through removal.
type MasteryRecord struct {
	LearnerID     uuid.UUID `json:"learner_id"`
	ItemID        string    `json:"item_id"`
	CourseID      string    `json:"course_id"`
	Topic         string    `json:"topic"`
	Attempts      int       `json:"attempts"`
	CorrectStreak int       `json:"correct_streak"`
	EaseFactor    float64   `json:"ease_factor"`
	IntervalDays  int       `json:"interval_days"`
	DueAt         time.Time `json:"due_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewMasteryRecord creates a record for a learner's first encounter with an
// item. The item is due immediately so it enters the review queue as soon as
// it is answered once.
func NewMasteryRecord(learnerID uuid.UUID, itemID, courseID, topic string, now time.Time) (*MasteryRecord, error) {
	record := &MasteryRecord{
		LearnerID:     learnerID,
		ItemID:        itemID,
		CourseID:      courseID,
		Topic:         topic,
		Attempts:      0,
		CorrectStreak: 0,
		EaseFactor:    DefaultEaseFactor,
		IntervalDays:  0,
		DueAt:         now,
		LastSeenAt:    time.Time{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the MasteryRecord has valid data.
// Returns an error if any field fails validation.
func (r *MasteryRecord) Validate() error {
	if r.LearnerID == uuid.Nil {
		return ErrEmptyMasteryLearnerID
	}

	if r.ItemID == "" {
		return ErrEmptyMasteryItemID
	}

	if r.CourseID == "" {
		return ErrEmptyMasteryCourseID
	}

	if r.IntervalDays < 0 {
		return ErrInvalidIntervalDays
	}

	if r.EaseFactor < MinEaseFactor {
		return ErrInvalidEaseFactor
	}

	if r.Version < 1 {
		return ErrInvalidMasteryVersion
	}

	return nil
}

// TopicMastery rolls item-level records up to (learner, course, topic) so the
// review scheduler can weight overdue items from weak topics more heavily.
// Topics with the same name in different courses roll up separately.
type TopicMastery struct {
	LearnerID uuid.UUID `json:"learner_id"`
	CourseID  string    `json:"course_id"`
	Topic     string    `json:"topic"`
	Attempts  int       `json:"attempts"`
	Correct   int       `json:"correct"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Accuracy returns the topic's correct/attempted ratio, or 0 when unseen.
func (t *TopicMastery) Accuracy() float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Attempts)
}

// WeaknessScore converts topic accuracy into a 0-1 weakness signal for
// review ranking. Unseen topics score 0.5: unknown, not known-bad.
func (t *TopicMastery) WeaknessScore() float64 {
	if t == nil || t.Attempts == 0 {
		return 0.5
	}
	return 1 - t.Accuracy()
}

// ReviewQueueEntry is a derived, unstored view of a due mastery record,
// carrying the blended priority used to rank the review queue.
type ReviewQueueEntry struct {
	ItemID             string    `json:"item_id"`
	DueAt              time.Time `json:"due_at"`
	OverdueDays        float64   `json:"overdue_days"`
	TopicWeaknessScore float64   `json:"topic_weakness_score"`
	Priority           float64   `json:"priority"`
}
