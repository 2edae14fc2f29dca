package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/composer"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/store"
)

// SessionServiceError is a custom error type for session service errors.
type SessionServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for SessionServiceError.
func (e *SessionServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("session service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SessionServiceError) Unwrap() error {
	return e.Err
}

// NewSessionServiceError creates a new SessionServiceError.
func NewSessionServiceError(operation, message string, err error) *SessionServiceError {
	return &SessionServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// ExamComposer defines the composition interface the service layer depends
// on. Satisfied by *composer.Composer.
type ExamComposer interface {
	Compose(ctx context.Context, req composer.Request) (*domain.ExamSession, error)
}

// FinalizeTimers schedules deferred inactivity finalization, one cancellable
// timer per session. Satisfied by *task.FinalizeTimerSet.
type FinalizeTimers interface {
	// Reset arms the session's timer for the full inactivity timeout.
	Reset(sessionID uuid.UUID)

	// Cancel discards the session's timer after explicit finalization.
	Cancel(sessionID uuid.UUID)
}

// StartRequest carries the parameters for composing a new exam session.
// Blueprint and DifficultyMix may be nil to use the course preset.
type StartRequest struct {
	LearnerID     uuid.UUID
	CourseID      string
	TotalItems    int
	Blueprint     *domain.ExamBlueprint
	DifficultyMix domain.DifficultyMix
}

// SubmitResult is the acknowledgement for a recorded response. Replayed is
// true when the (session, item) pair had already been answered and the stored
// response was returned unchanged.
type SubmitResult struct {
	Response    domain.Response
	Replayed    bool
	Explanation string
}

// SessionServiceConfig holds the tunable policy values for session handling.
type SessionServiceConfig struct {
	// DefaultTotalItems is used when a start request omits the exam size.
	DefaultTotalItems int

	// PassCutoff is the overall fraction required to pass (0-1).
	PassCutoff float64

	// CooldownWindow is how far back composition looks when excluding
	// recently seen items.
	CooldownWindow time.Duration

	// BlueprintEpsilon is the tolerated deviation of weight sums from 1.0.
	BlueprintEpsilon float64
}

// SessionService provides exam session lifecycle operations
type SessionService interface {
	// Start composes and persists a new exam session for the learner.
	Start(ctx context.Context, req StartRequest) (*domain.ExamSession, error)

	// GetSession retrieves a session, enforcing learner ownership.
	GetSession(ctx context.Context, learnerID, sessionID uuid.UUID) (*domain.ExamSession, error)

	// Submit grades and records one response. Resubmitting the same
	// (session, item) pair replays the stored response instead of failing,
	// so clients can safely retry.
	Submit(
		ctx context.Context,
		learnerID, sessionID uuid.UUID,
		itemID string,
		selectedOptionIndex int,
		clientTimestamp time.Time,
	) (*SubmitResult, error)

	// Finalize closes the session and computes its score report. Repeated
	// calls return the stored report unchanged. Unanswered items are marked
	// skipped; they score as nothing but still count as exposure.
	Finalize(ctx context.Context, learnerID, sessionID uuid.UUID) (*domain.ScoreReport, error)

	// FinalizeStale finalizes an idle session on behalf of the inactivity
	// sweeper. Already-finalized sessions are left alone without error.
	FinalizeStale(ctx context.Context, sessionID uuid.UUID) error
}

// sessionServiceImpl implements the SessionService interface
type sessionServiceImpl struct {
	sessions  store.ExamSessionStore
	exposures store.ExposureStore
	mastery   MasteryService
	composer  ExamComposer
	bank      *itembank.Bank
	db        *sql.DB
	timers    FinalizeTimers
	cfg       SessionServiceConfig
	logger    *slog.Logger
}

// NewSessionService creates a new SessionService.
// It returns an error if any of the required dependencies are nil.
// db may be nil, in which case finalization writes run outside a transaction;
// tests with in-memory stores use that mode. timers may be nil to disable
// inactivity timers, leaving stale sessions to the recovery sweep alone.
func NewSessionService(
	sessions store.ExamSessionStore,
	exposures store.ExposureStore,
	mastery MasteryService,
	examComposer ExamComposer,
	bank *itembank.Bank,
	db *sql.DB,
	timers FinalizeTimers,
	cfg SessionServiceConfig,
	logger *slog.Logger,
) (SessionService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("%w: session store cannot be nil", domain.ErrValidation)
	}
	if exposures == nil {
		return nil, fmt.Errorf("%w: exposure store cannot be nil", domain.ErrValidation)
	}
	if mastery == nil {
		return nil, fmt.Errorf("%w: mastery service cannot be nil", domain.ErrValidation)
	}
	if examComposer == nil {
		return nil, fmt.Errorf("%w: composer cannot be nil", domain.ErrValidation)
	}
	if bank == nil {
		return nil, fmt.Errorf("%w: item bank cannot be nil", domain.ErrValidation)
	}
	if cfg.PassCutoff <= 0 || cfg.PassCutoff > 1 {
		return nil, fmt.Errorf("%w: pass cutoff must be in (0, 1]", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &sessionServiceImpl{
		sessions:  sessions,
		exposures: exposures,
		mastery:   mastery,
		composer:  examComposer,
		bank:      bank,
		db:        db,
		timers:    timers,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "session_service")),
	}, nil
}

// Start implements SessionService.Start
func (s *sessionServiceImpl) Start(ctx context.Context, req StartRequest) (*domain.ExamSession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	totalItems := req.TotalItems
	if totalItems == 0 {
		totalItems = s.cfg.DefaultTotalItems
	}

	session, err := s.composer.Compose(ctx, composer.Request{
		LearnerID:      req.LearnerID,
		CourseID:       req.CourseID,
		TotalItems:     totalItems,
		Blueprint:      req.Blueprint,
		DifficultyMix:  req.DifficultyMix,
		CooldownWindow: s.cfg.CooldownWindow,
		Epsilon:        s.cfg.BlueprintEpsilon,
	})
	if err != nil {
		// Composition errors carry their own taxonomy (invalid blueprint,
		// insufficient pool); pass them through unwrapped.
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, NewSessionServiceError("start", "failed to save session", err)
	}

	s.resetTimer(session.ID)

	log.Info("exam session started",
		slog.String("session_id", session.ID.String()),
		slog.String("learner_id", req.LearnerID.String()),
		slog.String("course_id", req.CourseID),
		slog.Int("item_count", len(session.ItemIDs)),
		slog.Bool("degraded", session.Degraded))

	return session, nil
}

// GetSession implements SessionService.GetSession
func (s *sessionServiceImpl) GetSession(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
) (*domain.ExamSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, NewSessionServiceError("get_session", "session not found", store.ErrSessionNotFound)
		}
		return nil, NewSessionServiceError("get_session", "failed to load session", err)
	}
	if session.LearnerID != learnerID {
		return nil, NewSessionServiceError("get_session", "session belongs to another learner", ErrNotOwned)
	}
	return session, nil
}

// Submit implements SessionService.Submit
func (s *sessionServiceImpl) Submit(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
	itemID string,
	selectedOptionIndex int,
	clientTimestamp time.Time,
) (*SubmitResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := time.Now().UTC()

	session, err := s.GetSession(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.ContainsItem(itemID) {
		return nil, NewSessionServiceError("submit", "item not in session",
			fmt.Errorf("%w: %s", domain.ErrItemNotInSession, itemID))
	}

	item := s.bank.Get(itemID)
	if item == nil {
		// The session references an item the bank no longer carries, which
		// means the content catalog changed under a live session.
		return nil, NewSessionServiceError("submit", "item missing from content catalog",
			fmt.Errorf("item %s not found", itemID))
	}

	// Idempotent replay: a retried submission gets the stored response back.
	if existing, ok := session.ResponseFor(itemID); ok {
		log.Debug("replaying stored response",
			slog.String("session_id", sessionID.String()),
			slog.String("item_id", itemID))
		return &SubmitResult{Response: *existing, Replayed: true, Explanation: item.Explanation}, nil
	}

	if session.IsFinalized() {
		return nil, NewSessionServiceError("submit", "session already finalized",
			domain.ErrSessionAlreadyFinalized)
	}

	if selectedOptionIndex < 0 || selectedOptionIndex >= len(item.Options) {
		return nil, NewSessionServiceError("submit", "selected option index out of range",
			domain.ErrValidation)
	}

	resp := domain.Response{
		SessionID:           sessionID,
		ItemID:              itemID,
		SelectedOptionIndex: selectedOptionIndex,
		Correct:             item.IsCorrect(selectedOptionIndex),
		ClientTimestamp:     clientTimestamp,
		ServerTimestamp:     now,
	}

	if err := session.RecordResponse(resp, now); err != nil {
		return nil, NewSessionServiceError("submit", "failed to record response", err)
	}

	if err := s.sessions.AppendResponse(ctx, session, &resp); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent submission for the same pair won; replay it.
			return s.replayStored(ctx, learnerID, sessionID, itemID, item)
		}
		return nil, NewSessionServiceError("submit", "failed to save response", err)
	}

	exposure := store.ItemExposure{
		LearnerID: learnerID,
		ItemID:    itemID,
		SessionID: sessionID,
		Kind:      store.ExposureAnswered,
		SeenAt:    now,
	}
	if err := s.exposures.Record(ctx, []store.ItemExposure{exposure}); err != nil {
		return nil, NewSessionServiceError("submit", "failed to record exposure", err)
	}

	if _, err := s.mastery.ApplyReview(ctx, learnerID, item, resp.Correct, now); err != nil {
		return nil, err
	}

	// Activity re-arms the inactivity timer for the full window.
	s.resetTimer(sessionID)

	log.Debug("response recorded",
		slog.String("session_id", sessionID.String()),
		slog.String("item_id", itemID),
		slog.Bool("correct", resp.Correct))

	return &SubmitResult{Response: resp, Replayed: false, Explanation: item.Explanation}, nil
}

// replayStored re-reads the session and returns the stored response for the
// item. Used when AppendResponse reports the pair already exists.
func (s *sessionServiceImpl) replayStored(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
	itemID string,
	item *domain.Item,
) (*SubmitResult, error) {
	session, err := s.GetSession(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	existing, ok := session.ResponseFor(itemID)
	if !ok {
		return nil, NewSessionServiceError("submit", "duplicate response reported but not found",
			store.ErrDuplicate)
	}
	return &SubmitResult{Response: *existing, Replayed: true, Explanation: item.Explanation}, nil
}

// Finalize implements SessionService.Finalize
func (s *sessionServiceImpl) Finalize(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
) (*domain.ScoreReport, error) {
	session, err := s.GetSession(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, session)
}

// FinalizeStale implements SessionService.FinalizeStale
func (s *sessionServiceImpl) FinalizeStale(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil
		}
		return NewSessionServiceError("finalize_stale", "failed to load session", err)
	}
	if session.IsFinalized() {
		return nil
	}

	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Info("finalizing idle session",
		slog.String("session_id", sessionID.String()),
		slog.String("learner_id", session.LearnerID.String()))

	_, err = s.finalize(ctx, session)
	return err
}

// finalize computes and stores the score report, idempotently. Finalized
// sessions return the stored report; Completed sessions missing a report
// (a crash between state change and report write) recompute it.
func (s *sessionServiceImpl) finalize(
	ctx context.Context,
	session *domain.ExamSession,
) (*domain.ScoreReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := time.Now().UTC()

	if session.State == domain.SessionStateScored {
		report, err := s.sessions.GetReport(ctx, session.ID)
		if err != nil {
			return nil, NewSessionServiceError("finalize", "failed to load stored report", err)
		}
		return report, nil
	}

	report := s.buildReport(session, now)

	err := s.runWrites(ctx, func(ctx context.Context, sessions store.ExamSessionStore, exposures store.ExposureStore) error {
		if session.State != domain.SessionStateCompleted {
			if err := session.Complete(now); err != nil {
				return err
			}
			if err := sessions.UpdateState(ctx, session.ID, domain.SessionStateCompleted, now); err != nil {
				return err
			}
		}

		if err := sessions.SaveReport(ctx, report); err != nil {
			return err
		}

		// Skipped items still count as exposure so the cooldown filter knows
		// the learner has seen them.
		if len(report.SkippedItems) > 0 {
			skipped := make([]store.ItemExposure, 0, len(report.SkippedItems))
			for _, itemID := range report.SkippedItems {
				skipped = append(skipped, store.ItemExposure{
					LearnerID: session.LearnerID,
					ItemID:    itemID,
					SessionID: session.ID,
					Kind:      store.ExposureSkipped,
					SeenAt:    now,
				})
			}
			if err := exposures.Record(ctx, skipped); err != nil {
				return err
			}
		}

		if err := session.MarkScored(now); err != nil {
			return err
		}
		return sessions.UpdateState(ctx, session.ID, domain.SessionStateScored, now)
	})
	if err != nil {
		return nil, NewSessionServiceError("finalize", "failed to store report", err)
	}

	s.cancelTimer(session.ID)

	log.Info("session finalized",
		slog.String("session_id", session.ID.String()),
		slog.Float64("overall_pct", report.OverallPct),
		slog.Bool("pass", report.Pass),
		slog.Int("skipped", len(report.SkippedItems)))

	return report, nil
}

func (s *sessionServiceImpl) resetTimer(sessionID uuid.UUID) {
	if s.timers != nil {
		s.timers.Reset(sessionID)
	}
}

func (s *sessionServiceImpl) cancelTimer(sessionID uuid.UUID) {
	if s.timers != nil {
		s.timers.Cancel(sessionID)
	}
}

// runWrites executes the finalization writes, in a single transaction when a
// database handle is present.
func (s *sessionServiceImpl) runWrites(
	ctx context.Context,
	fn func(ctx context.Context, sessions store.ExamSessionStore, exposures store.ExposureStore) error,
) error {
	if s.db == nil {
		return fn(ctx, s.sessions, s.exposures)
	}
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.sessions.WithTx(tx), s.exposures.WithTx(tx))
	})
}

// buildReport scores the session: per-domain tallies over answered items,
// overall percentage over answered items only, missed items with their
// authored explanations, and the list of skipped (never answered) items.
func (s *sessionServiceImpl) buildReport(session *domain.ExamSession, now time.Time) *domain.ScoreReport {
	type tally struct {
		answered int
		correct  int
	}
	perDomain := make(map[string]*tally)
	var missed []domain.MissedItem
	var answered, correct int

	for _, resp := range session.Responses {
		item := s.bank.Get(resp.ItemID)
		if item == nil {
			continue
		}
		t := perDomain[item.Domain]
		if t == nil {
			t = &tally{}
			perDomain[item.Domain] = t
		}
		t.answered++
		answered++
		if resp.Correct {
			t.correct++
			correct++
		} else {
			missed = append(missed, domain.MissedItem{
				ItemID:      item.ID,
				Explanation: item.Explanation,
			})
		}
	}

	var skipped []string
	seen := make(map[string]struct{}, len(session.Responses))
	for _, resp := range session.Responses {
		seen[resp.ItemID] = struct{}{}
	}
	for _, itemID := range session.ItemIDs {
		if _, ok := seen[itemID]; !ok {
			skipped = append(skipped, itemID)
			seen[itemID] = struct{}{}
		}
	}

	report := &domain.ScoreReport{
		SessionID:    session.ID,
		PerDomain:    make([]domain.DomainScore, 0, len(perDomain)),
		PassCutoff:   s.cfg.PassCutoff,
		Missed:       missed,
		SkippedItems: skipped,
		FinalizedAt:  now,
	}

	domains := make([]string, 0, len(perDomain))
	for d := range perDomain {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		t := perDomain[d]
		report.PerDomain = append(report.PerDomain, domain.DomainScore{
			Domain:   d,
			Answered: t.answered,
			Correct:  t.correct,
			Pct:      float64(t.correct) / float64(t.answered),
		})
	}

	if answered > 0 {
		report.OverallPct = float64(correct) / float64(answered)
	}
	report.Pass = answered > 0 && report.OverallPct >= s.cfg.PassCutoff

	return report
}
