package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/domain/srs"
	"github.com/examkit/practice-api/internal/mocks"
	"github.com/examkit/practice-api/internal/service"
	"github.com/examkit/practice-api/internal/store"
)

func testItem(id, topic string) *domain.Item {
	return &domain.Item{
		ID:                 id,
		CourseID:           "cisa",
		Domain:             "D1",
		BlueprintArea:      "D1",
		Difficulty:         domain.DifficultyMedium,
		Topic:              topic,
		Question:           "Which control is preventive?",
		Options:            []string{"Review logs", "Require approval", "Investigate incidents"},
		CorrectOptionIndex: 1,
		Explanation:        "Approval gates stop the action before it happens.",
	}
}

func courseItem(id, courseID, topic string) *domain.Item {
	item := testItem(id, topic)
	item.CourseID = courseID
	return item
}

func newMasteryService(t *testing.T, masteryStore store.MasteryStore) service.MasteryService {
	t.Helper()

	svc, err := service.NewMasteryService(masteryStore, srs.NewDefaultService(), 0, nil)
	require.NoError(t, err)
	return svc
}

func TestApplyReview_FirstEncounterCreatesRecord(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()
	svc := newMasteryService(t, masteryStore)

	record, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.NoError(t, err)

	assert.Equal(t, 1, record.Attempts)
	assert.Equal(t, 1, record.CorrectStreak)
	assert.Equal(t, 1, record.IntervalDays)
	assert.InDelta(t, 2.6, record.EaseFactor, 1e-9)
	assert.Equal(t, int64(2), record.Version)
	assert.Equal(t, now.AddDate(0, 0, 1), record.DueAt)

	// The store holds the updated record, not the first-encounter one.
	stored, err := masteryStore.Get(context.Background(), learnerID, "item-1")
	require.NoError(t, err)
	assert.Equal(t, record.Version, stored.Version)
}

func TestApplyReview_IncorrectResetsIntervalAndStreak(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()
	svc := newMasteryService(t, masteryStore)

	// Two correct reviews, then a miss.
	_, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now.AddDate(0, 0, 1))
	require.NoError(t, err)

	record, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), false, now.AddDate(0, 0, 4))
	require.NoError(t, err)

	assert.Equal(t, 3, record.Attempts)
	assert.Equal(t, 0, record.CorrectStreak)
	assert.Equal(t, 1, record.IntervalDays)
	assert.InDelta(t, 2.5, record.EaseFactor, 1e-9) // 2.7 - 0.2
}

func TestApplyReview_UpdatesTopicRollup(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()
	svc := newMasteryService(t, masteryStore)

	_, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, testItem("item-2", "governance"), false, now)
	require.NoError(t, err)

	rollup, err := masteryStore.GetTopic(context.Background(), learnerID, "cisa", "governance")
	require.NoError(t, err)
	assert.Equal(t, 2, rollup.Attempts)
	assert.Equal(t, 1, rollup.Correct)
	assert.InDelta(t, 0.5, rollup.Accuracy(), 1e-9)
}

func TestApplyReview_TopicRollupsScopedToCourse(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()
	svc := newMasteryService(t, masteryStore)

	// The same topic name in two courses must not share a rollup.
	_, err := svc.ApplyReview(context.Background(), learnerID, courseItem("cisa-1", "cisa", "governance"), true, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, courseItem("cgeit-1", "cgeit", "governance"), false, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, courseItem("cgeit-2", "cgeit", "governance"), false, now)
	require.NoError(t, err)

	cisa, err := masteryStore.GetTopic(context.Background(), learnerID, "cisa", "governance")
	require.NoError(t, err)
	assert.Equal(t, 1, cisa.Attempts)
	assert.Equal(t, 1, cisa.Correct)

	cgeit, err := masteryStore.GetTopic(context.Background(), learnerID, "cgeit", "governance")
	require.NoError(t, err)
	assert.Equal(t, 2, cgeit.Attempts)
	assert.Equal(t, 0, cgeit.Correct)

	// The other course's misses do not drag this course's summary down, and
	// its due records do not inflate this course's due count.
	summary, err := svc.Summary(context.Background(), learnerID, "cisa", now.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, summary.Readiness, 1e-9)
	assert.Empty(t, summary.WeakTopics)
	assert.Equal(t, 1, summary.DueCount)
}

func TestApplyReview_RetriesOnVersionConflict(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()
	svc := newMasteryService(t, masteryStore)

	// Seed a record, then make the first update attempt lose the race.
	_, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.NoError(t, err)
	masteryStore.UpdateErr = store.ErrConcurrentUpdateConflict

	record, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, record.Attempts)
	assert.Equal(t, int64(3), record.Version)
}

func TestApplyReview_ExhaustedRetriesSurface(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := &alwaysConflictingStore{MemoryMasteryStore: mocks.NewMemoryMasteryStore()}
	svc := newMasteryService(t, masteryStore)

	_, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrMasteryRetriesExhausted)

	var svcErr *service.MasteryServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "apply_review", svcErr.Operation)
}

func TestApplyReview_NilItem(t *testing.T) {
	t.Parallel()

	svc := newMasteryService(t, mocks.NewMemoryMasteryStore())

	_, err := svc.ApplyReview(context.Background(), uuid.New(), nil, true, time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSummary_AggregatesTopicsAndDueCount(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()
	svc := newMasteryService(t, masteryStore)

	_, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, testItem("item-2", "governance"), false, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, testItem("item-3", "acquisition"), true, now)
	require.NoError(t, err)

	// item-2 was missed, so its interval reset to 1 day; look a day ahead to
	// make every record due.
	summary, err := svc.Summary(context.Background(), learnerID, "cisa", now.AddDate(0, 0, 2))
	require.NoError(t, err)

	assert.Equal(t, "cisa", summary.CourseID)
	require.Len(t, summary.Topics, 2)
	assert.Equal(t, "acquisition", summary.Topics[0].Topic)
	assert.Equal(t, "governance", summary.Topics[1].Topic)
	assert.InDelta(t, 0.5, summary.Topics[1].Accuracy, 1e-9)
	assert.Equal(t, 3, summary.DueCount)
	assert.InDelta(t, 2.0/3.0, summary.Readiness, 1e-9)

	// governance sits at 50% accuracy, below the default 0.70 threshold.
	assert.Equal(t, []string{"governance"}, summary.WeakTopics)
}

func TestSummary_WeakTopicsHonorConfiguredThreshold(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	masteryStore := mocks.NewMemoryMasteryStore()

	// governance: 1/2 correct (0.5), acquisition: 1/1 correct (1.0).
	svc := newMasteryService(t, masteryStore)
	_, err := svc.ApplyReview(context.Background(), learnerID, testItem("item-1", "governance"), true, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, testItem("item-2", "governance"), false, now)
	require.NoError(t, err)
	_, err = svc.ApplyReview(context.Background(), learnerID, testItem("item-3", "acquisition"), true, now)
	require.NoError(t, err)

	// A threshold below governance's accuracy reports no weak topics.
	lenient, err := service.NewMasteryService(masteryStore, srs.NewDefaultService(), 0.4, nil)
	require.NoError(t, err)
	summary, err := lenient.Summary(context.Background(), learnerID, "cisa", now)
	require.NoError(t, err)
	assert.Empty(t, summary.WeakTopics)

	// A threshold above every topic's accuracy reports them all.
	strict, err := service.NewMasteryService(masteryStore, srs.NewDefaultService(), 0.99, nil)
	require.NoError(t, err)
	summary, err = strict.Summary(context.Background(), learnerID, "cisa", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"acquisition", "governance"}, summary.WeakTopics)
}

func TestSummary_UnattemptedTopicsAreNotWeak(t *testing.T) {
	t.Parallel()

	svc := newMasteryService(t, mocks.NewMemoryMasteryStore())

	summary, err := svc.Summary(context.Background(), uuid.New(), "cisa", time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, summary.Topics)
	assert.Empty(t, summary.WeakTopics)
	assert.Zero(t, summary.Readiness)
}

func TestSummary_EmptyCourseID(t *testing.T) {
	t.Parallel()

	svc := newMasteryService(t, mocks.NewMemoryMasteryStore())

	_, err := svc.Summary(context.Background(), uuid.New(), "", time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// alwaysConflictingStore rejects every Update with a version conflict.
type alwaysConflictingStore struct {
	*mocks.MemoryMasteryStore
}

func (s *alwaysConflictingStore) Update(
	ctx context.Context,
	record *domain.MasteryRecord,
	expectedVersion int64,
) error {
	return store.ErrConcurrentUpdateConflict
}
