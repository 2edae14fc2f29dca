package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// PostgresExposureStore implements the store.ExposureStore interface
// using a PostgreSQL database as the storage backend.
type PostgresExposureStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresExposureStore creates a new PostgreSQL implementation of the
// ExposureStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresExposureStore(db store.DBTX, logger *slog.Logger) *PostgresExposureStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresExposureStore{
		db:     db,
		logger: logger.With(slog.String("component", "exposure_store")),
	}
}

// Ensure PostgresExposureStore implements store.ExposureStore interface
var _ store.ExposureStore = (*PostgresExposureStore)(nil)

// WithTx implements store.ExposureStore.WithTx
func (s *PostgresExposureStore) WithTx(tx *sql.Tx) store.ExposureStore {
	return &PostgresExposureStore{
		db:     tx,
		logger: s.logger,
	}
}

// Record implements store.ExposureStore.Record
//
// Re-recording the same (learner, item, session) refreshes seen_at rather
// than failing, so retried submissions stay idempotent.
func (s *PostgresExposureStore) Record(ctx context.Context, exposures []store.ItemExposure) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(exposures) == 0 {
		return nil
	}

	query := `
		INSERT INTO item_exposures (learner_id, item_id, session_id, kind, seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id, item_id, session_id) DO UPDATE
		SET kind = EXCLUDED.kind, seen_at = EXCLUDED.seen_at
	`

	for _, exposure := range exposures {
		_, err := s.db.ExecContext(ctx, query,
			exposure.LearnerID,
			exposure.ItemID,
			exposure.SessionID,
			exposure.Kind,
			exposure.SeenAt,
		)
		if err != nil {
			log.Error("failed to record exposure",
				slog.String("learner_id", exposure.LearnerID.String()),
				slog.String("item_id", exposure.ItemID),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}

	return nil
}

// RecentlySeen implements store.ExposureStore.RecentlySeen
func (s *PostgresExposureStore) RecentlySeen(
	ctx context.Context,
	learnerID uuid.UUID,
	since time.Time,
) (map[string]struct{}, error) {
	query := `
		SELECT DISTINCT item_id
		FROM item_exposures
		WHERE learner_id = $1 AND seen_at >= $2
	`

	rows, err := s.db.QueryContext(ctx, query, learnerID, since)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	seen := make(map[string]struct{})
	for rows.Next() {
		var itemID string
		if err := rows.Scan(&itemID); err != nil {
			return nil, MapError(err)
		}
		seen[itemID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return seen, nil
}
