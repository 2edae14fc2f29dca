package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/store"
)

// MemoryExposureStore implements store.ExposureStore in memory.
type MemoryExposureStore struct {
	mu        sync.Mutex
	exposures []store.ItemExposure
}

// NewMemoryExposureStore creates an empty in-memory exposure store.
func NewMemoryExposureStore() *MemoryExposureStore {
	return &MemoryExposureStore{}
}

// Ensure MemoryExposureStore implements store.ExposureStore
var _ store.ExposureStore = (*MemoryExposureStore)(nil)

func (s *MemoryExposureStore) Record(ctx context.Context, exposures []store.ItemExposure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exposures = append(s.exposures, exposures...)
	return nil
}

func (s *MemoryExposureStore) RecentlySeen(
	ctx context.Context,
	learnerID uuid.UUID,
	since time.Time,
) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, exposure := range s.exposures {
		if exposure.LearnerID == learnerID && !exposure.SeenAt.Before(since) {
			seen[exposure.ItemID] = struct{}{}
		}
	}
	return seen, nil
}

// All returns a copy of every recorded exposure, for test assertions.
func (s *MemoryExposureStore) All() []store.ItemExposure {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]store.ItemExposure(nil), s.exposures...)
}

func (s *MemoryExposureStore) WithTx(tx *sql.Tx) store.ExposureStore { return s }
