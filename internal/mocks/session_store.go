package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/store"
)

// MemorySessionStore implements store.ExamSessionStore in memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.ExamSession
	reports  map[uuid.UUID]*domain.ScoreReport
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[uuid.UUID]*domain.ExamSession),
		reports:  make(map[uuid.UUID]*domain.ScoreReport),
	}
}

// Ensure MemorySessionStore implements store.ExamSessionStore
var _ store.ExamSessionStore = (*MemorySessionStore)(nil)

func (s *MemorySessionStore) Create(ctx context.Context, session *domain.ExamSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return store.ErrDuplicate
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *MemorySessionStore) AppendResponse(
	ctx context.Context,
	session *domain.ExamSession,
	resp *domain.Response,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[session.ID]
	if !ok {
		return store.ErrSessionNotFound
	}
	for _, existing := range stored.Responses {
		if existing.ItemID == resp.ItemID {
			return store.ErrDuplicate
		}
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) UpdateState(
	ctx context.Context,
	id uuid.UUID,
	state domain.SessionState,
	now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return store.ErrSessionNotFound
	}
	session.State = state
	session.UpdatedAt = now
	return nil
}

func (s *MemorySessionStore) SaveReport(ctx context.Context, report *domain.ScoreReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *report
	s.reports[report.SessionID] = &clone
	return nil
}

func (s *MemorySessionStore) GetReport(ctx context.Context, sessionID uuid.UUID) (*domain.ScoreReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[sessionID]
	if !ok {
		return nil, store.ErrScoreReportNotFound
	}
	clone := *report
	return &clone, nil
}

func (s *MemorySessionStore) ListStale(ctx context.Context, cutoff time.Time) ([]*domain.ExamSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []*domain.ExamSession
	for _, session := range s.sessions {
		active := session.State == domain.SessionStateCreated ||
			session.State == domain.SessionStateInProgress
		if active && session.LastActivityAt.Before(cutoff) {
			stale = append(stale, cloneSession(session))
		}
	}
	return stale, nil
}

func (s *MemorySessionStore) WithTx(tx *sql.Tx) store.ExamSessionStore { return s }

func cloneSession(session *domain.ExamSession) *domain.ExamSession {
	clone := *session
	clone.ItemIDs = append([]string(nil), session.ItemIDs...)
	clone.Responses = append([]domain.Response(nil), session.Responses...)
	clone.DegradedCells = append([]domain.DegradedCell(nil), session.DegradedCells...)
	return &clone
}
