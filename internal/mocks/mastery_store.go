package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/store"
)

type masteryKey struct {
	learnerID uuid.UUID
	itemID    string
}

type topicKey struct {
	learnerID uuid.UUID
	courseID  string
	topic     string
}

// MemoryMasteryStore implements store.MasteryStore in memory, including the
// version-checked update contract.
type MemoryMasteryStore struct {
	mu      sync.Mutex
	records map[masteryKey]*domain.MasteryRecord
	topics  map[topicKey]*domain.TopicMastery

	// UpdateErr, when set, is returned by the next Update call and then
	// cleared. Tests use it to force a single conflict.
	UpdateErr error
}

// NewMemoryMasteryStore creates an empty in-memory mastery store.
func NewMemoryMasteryStore() *MemoryMasteryStore {
	return &MemoryMasteryStore{
		records: make(map[masteryKey]*domain.MasteryRecord),
		topics:  make(map[topicKey]*domain.TopicMastery),
	}
}

// Ensure MemoryMasteryStore implements store.MasteryStore
var _ store.MasteryStore = (*MemoryMasteryStore)(nil)

func (s *MemoryMasteryStore) Create(ctx context.Context, record *domain.MasteryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := masteryKey{record.LearnerID, record.ItemID}
	if _, exists := s.records[key]; exists {
		return store.ErrDuplicate
	}
	clone := *record
	s.records[key] = &clone
	return nil
}

func (s *MemoryMasteryStore) Get(
	ctx context.Context,
	learnerID uuid.UUID,
	itemID string,
) (*domain.MasteryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[masteryKey{learnerID, itemID}]
	if !ok {
		return nil, store.ErrMasteryRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryMasteryStore) Update(
	ctx context.Context,
	record *domain.MasteryRecord,
	expectedVersion int64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		err := s.UpdateErr
		s.UpdateErr = nil
		return err
	}

	key := masteryKey{record.LearnerID, record.ItemID}
	stored, ok := s.records[key]
	if !ok {
		return store.ErrMasteryRecordNotFound
	}
	if stored.Version != expectedVersion {
		return store.ErrConcurrentUpdateConflict
	}
	clone := *record
	s.records[key] = &clone
	return nil
}

func (s *MemoryMasteryStore) ListDue(
	ctx context.Context,
	learnerID uuid.UUID,
	asOf time.Time,
) ([]*domain.MasteryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*domain.MasteryRecord
	for key, record := range s.records {
		if key.learnerID == learnerID && !record.DueAt.After(asOf) {
			clone := *record
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due, nil
}

func (s *MemoryMasteryStore) UpsertTopic(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID, topic string,
	correct bool,
	now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := topicKey{learnerID, courseID, topic}
	rollup, ok := s.topics[key]
	if !ok {
		rollup = &domain.TopicMastery{
			LearnerID: learnerID,
			CourseID:  courseID,
			Topic:     topic,
			Version:   0,
		}
		s.topics[key] = rollup
	}
	rollup.Attempts++
	if correct {
		rollup.Correct++
	}
	rollup.Version++
	rollup.UpdatedAt = now
	return nil
}

func (s *MemoryMasteryStore) GetTopic(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID, topic string,
) (*domain.TopicMastery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rollup, ok := s.topics[topicKey{learnerID, courseID, topic}]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *rollup
	return &clone, nil
}

func (s *MemoryMasteryStore) ListTopics(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID string,
) ([]*domain.TopicMastery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rollups []*domain.TopicMastery
	for key, rollup := range s.topics {
		if key.learnerID == learnerID && key.courseID == courseID {
			clone := *rollup
			rollups = append(rollups, &clone)
		}
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].Topic < rollups[j].Topic })
	return rollups, nil
}

func (s *MemoryMasteryStore) WithTx(tx *sql.Tx) store.MasteryStore { return s }
