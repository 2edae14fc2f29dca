// Package scheduler ranks a learner's due mastery records into a review
// queue. It is a pure read over stored state; nothing here writes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// Weights blends the two ranking signals. Overdue-ness favors items the
// learner is about to forget; topic weakness favors items from domains the
// learner keeps missing.
type Weights struct {
	Overdue  float64
	Weakness float64
}

// DefaultWeights returns the standard 0.6/0.4 blend.
func DefaultWeights() Weights {
	return Weights{Overdue: 0.6, Weakness: 0.4}
}

// Scheduler produces due-for-review item lists from mastery state.
type Scheduler struct {
	mastery store.MasteryStore
	weights Weights
	logger  *slog.Logger
}

// New creates a Scheduler with the given ranking weights.
func New(mastery store.MasteryStore, weights Weights, log *slog.Logger) *Scheduler {
	if mastery == nil {
		panic("mastery store cannot be nil")
	}
	if weights.Overdue <= 0 && weights.Weakness <= 0 {
		weights = DefaultWeights()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Scheduler{
		mastery: mastery,
		weights: weights,
		logger:  log.With(slog.String("component", "review_scheduler")),
	}
}

// DueItems returns up to limit review queue entries for the learner, ranked
// by blended priority descending. An item is due when its DueAt is at or
// before asOf.
func (s *Scheduler) DueItems(
	ctx context.Context,
	learnerID uuid.UUID,
	asOf time.Time,
	limit int,
) ([]domain.ReviewQueueEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrValidation)
	}

	records, err := s.mastery.ListDue(ctx, learnerID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due records: %w", err)
	}

	// One weakness lookup per distinct (course, topic), not per record.
	type weaknessKey struct {
		courseID string
		topic    string
	}
	weakness := make(map[weaknessKey]float64)
	entries := make([]domain.ReviewQueueEntry, 0, len(records))
	for _, record := range records {
		key := weaknessKey{record.CourseID, record.Topic}
		score, ok := weakness[key]
		if !ok {
			score, err = s.topicWeakness(ctx, learnerID, record.CourseID, record.Topic)
			if err != nil {
				return nil, err
			}
			weakness[key] = score
		}

		overdueDays := asOf.Sub(record.DueAt).Hours() / 24
		if overdueDays < 0 {
			overdueDays = 0
		}

		entries = append(entries, domain.ReviewQueueEntry{
			ItemID:             record.ItemID,
			DueAt:              record.DueAt,
			OverdueDays:        overdueDays,
			TopicWeaknessScore: score,
			Priority:           overdueDays*s.weights.Overdue + score*s.weights.Weakness,
		})
	}

	// Rank by priority descending; earlier due date breaks ties so the
	// ordering is stable across runs.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].DueAt.Before(entries[j].DueAt)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	log.Debug("review queue computed",
		slog.String("learner_id", learnerID.String()),
		slog.Int("due_count", len(records)),
		slog.Int("returned", len(entries)))

	return entries, nil
}

// topicWeakness reads the learner's rollup for a topic in a course, treating
// an absent rollup as neutral (0.5).
func (s *Scheduler) topicWeakness(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID, topic string,
) (float64, error) {
	rollup, err := s.mastery.GetTopic(ctx, learnerID, courseID, topic)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return (*domain.TopicMastery)(nil).WeaknessScore(), nil
		}
		return 0, fmt.Errorf("failed to get topic mastery for %q: %w", topic, err)
	}
	return rollup.WeaknessScore(), nil
}
