package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ItemExposure records that an item was served to a learner, whether or not
// it was answered. Skipped items count here too, which is what keeps the
// cooldown filter honest about what the learner has recently seen.
type ItemExposure struct {
	LearnerID uuid.UUID `json:"learner_id"`
	ItemID    string    `json:"item_id"`
	SessionID uuid.UUID `json:"session_id"`
	Kind      string    `json:"kind"` // "answered" or "skipped"
	SeenAt    time.Time `json:"seen_at"`
}

// Exposure kinds
const (
	ExposureAnswered = "answered"
	ExposureSkipped  = "skipped"
)

// ExposureStore defines the interface for item exposure persistence,
// backing the composer's cooldown filter.
type ExposureStore interface {
	// Record saves exposures for a learner. Re-recording the same
	// (learner, item, session) is an upsert, not an error.
	Record(ctx context.Context, exposures []ItemExposure) error

	// RecentlySeen returns the IDs of items the learner has been exposed to
	// since the given time.
	RecentlySeen(ctx context.Context, learnerID uuid.UUID, since time.Time) (map[string]struct{}, error)

	// WithTx returns a new ExposureStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ExposureStore
}
