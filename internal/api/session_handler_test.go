package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examkit/practice-api/internal/api"
	"github.com/examkit/practice-api/internal/api/shared"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/service"
	"github.com/examkit/practice-api/internal/store"
)

// stubSessionService lets each test script the service layer's behavior.
type stubSessionService struct {
	startFn    func(ctx context.Context, req service.StartRequest) (*domain.ExamSession, error)
	getFn      func(ctx context.Context, learnerID, sessionID uuid.UUID) (*domain.ExamSession, error)
	submitFn   func(ctx context.Context, learnerID, sessionID uuid.UUID, itemID string, selected int, ts time.Time) (*service.SubmitResult, error)
	finalizeFn func(ctx context.Context, learnerID, sessionID uuid.UUID) (*domain.ScoreReport, error)
}

var _ service.SessionService = (*stubSessionService)(nil)

func (s *stubSessionService) Start(
	ctx context.Context,
	req service.StartRequest,
) (*domain.ExamSession, error) {
	return s.startFn(ctx, req)
}

func (s *stubSessionService) GetSession(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
) (*domain.ExamSession, error) {
	return s.getFn(ctx, learnerID, sessionID)
}

func (s *stubSessionService) Submit(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
	itemID string,
	selectedOptionIndex int,
	clientTimestamp time.Time,
) (*service.SubmitResult, error) {
	return s.submitFn(ctx, learnerID, sessionID, itemID, selectedOptionIndex, clientTimestamp)
}

func (s *stubSessionService) Finalize(
	ctx context.Context,
	learnerID, sessionID uuid.UUID,
) (*domain.ScoreReport, error) {
	return s.finalizeFn(ctx, learnerID, sessionID)
}

func (s *stubSessionService) FinalizeStale(ctx context.Context, sessionID uuid.UUID) error {
	return nil
}

// newSessionRouter wires the handler under a chi router with the learner ID
// injected the way the auth middleware would.
func newSessionRouter(svc service.SessionService, learnerID uuid.UUID) http.Handler {
	handler := api.NewSessionHandler(svc, slog.Default())

	r := chi.NewRouter()
	if learnerID != uuid.Nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := context.WithValue(req.Context(), shared.LearnerIDContextKey, learnerID)
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	r.Post("/sessions", handler.StartSession)
	r.Get("/sessions/{id}", handler.GetSession)
	r.Post("/sessions/{id}/responses", handler.SubmitResponse)
	r.Post("/sessions/{id}/finalize", handler.FinalizeSession)
	return r
}

func testSession(learnerID uuid.UUID) *domain.ExamSession {
	session, err := domain.NewExamSession(learnerID, "cisa", []string{"item-1", "item-2"}, nil)
	if err != nil {
		panic(err)
	}
	return session
}

func TestStartSession_Success(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	var captured service.StartRequest
	svc := &stubSessionService{
		startFn: func(ctx context.Context, req service.StartRequest) (*domain.ExamSession, error) {
			captured = req
			return testSession(learnerID), nil
		},
	}
	router := newSessionRouter(svc, learnerID)

	body, err := json.Marshal(map[string]interface{}{
		"course_id":   "cisa",
		"total_items": 2,
		"blueprint":   map[string]float64{"d1": 0.5, "d2": 0.5},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, learnerID, captured.LearnerID)
	assert.Equal(t, "cisa", captured.CourseID)
	assert.Equal(t, 2, captured.TotalItems)
	require.NotNil(t, captured.Blueprint)
	assert.Equal(t, 0.5, captured.Blueprint.Weights["d1"])

	var resp api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cisa", resp.CourseID)
	assert.Equal(t, []string{"item-1", "item-2"}, resp.ItemIDs)
	assert.Equal(t, string(domain.SessionStateCreated), resp.State)
}

func TestStartSession_InvalidJSON(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(&stubSessionService{}, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte("{not json"))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartSession_MissingCourseID(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(&stubSessionService{}, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{"total_items":5}`))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "CourseID")
}

func TestStartSession_InvalidDifficulty(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(&stubSessionService{}, uuid.New())

	body := []byte(`{"course_id":"cisa","difficulty_mix":{"impossible":1.0}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartSession_InsufficientPool(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{
		startFn: func(ctx context.Context, req service.StartRequest) (*domain.ExamSession, error) {
			return nil, &itembank.InsufficientPoolError{
				CourseID:   "cisa",
				Domain:     "d1",
				Difficulty: domain.DifficultyHard,
				Needed:     10,
				Available:  3,
			}
		},
	}
	router := newSessionRouter(svc, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{"course_id":"cisa"}`))))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient item pool")
}

func TestStartSession_Unauthenticated(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(&stubSessionService{}, uuid.Nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{"course_id":"cisa"}`))))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{
		getFn: func(ctx context.Context, learnerID, sessionID uuid.UUID) (*domain.ExamSession, error) {
			return nil, store.ErrSessionNotFound
		},
	}
	router := newSessionRouter(svc, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/sessions/"+uuid.New().String(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession_WrongOwner(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{
		getFn: func(ctx context.Context, learnerID, sessionID uuid.UUID) (*domain.ExamSession, error) {
			return nil, service.ErrNotOwned
		},
	}
	router := newSessionRouter(svc, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/sessions/"+uuid.New().String(), nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetSession_MalformedID(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(&stubSessionService{}, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitResponse_Success(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	sessionID := uuid.New()
	now := time.Now().UTC()
	svc := &stubSessionService{
		submitFn: func(ctx context.Context, gotLearner, gotSession uuid.UUID, itemID string, selected int, ts time.Time) (*service.SubmitResult, error) {
			assert.Equal(t, learnerID, gotLearner)
			assert.Equal(t, sessionID, gotSession)
			assert.Equal(t, "item-1", itemID)
			assert.Equal(t, 0, selected)
			return &service.SubmitResult{
				Response: domain.Response{
					SessionID:           gotSession,
					ItemID:              itemID,
					SelectedOptionIndex: selected,
					Correct:             true,
					ServerTimestamp:     now,
				},
				Explanation: "because",
			}, nil
		},
	}
	router := newSessionRouter(svc, learnerID)

	// Option index 0 must survive the required validation.
	body := []byte(`{"item_id":"item-1","selected_option_index":0}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/sessions/"+sessionID.String()+"/responses", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SubmitResponseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Correct)
	assert.False(t, resp.Replayed)
	assert.Equal(t, "because", resp.Explanation)
}

func TestSubmitResponse_MissingOptionIndex(t *testing.T) {
	t.Parallel()

	router := newSessionRouter(&stubSessionService{}, uuid.New())

	body := []byte(`{"item_id":"item-1"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/sessions/"+uuid.New().String()+"/responses", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitResponse_Replayed(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{
		submitFn: func(ctx context.Context, learnerID, sessionID uuid.UUID, itemID string, selected int, ts time.Time) (*service.SubmitResult, error) {
			return &service.SubmitResult{
				Response: domain.Response{ItemID: itemID, Correct: false},
				Replayed: true,
			}, nil
		},
	}
	router := newSessionRouter(svc, uuid.New())

	body := []byte(`{"item_id":"item-1","selected_option_index":2}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/sessions/"+uuid.New().String()+"/responses", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SubmitResponseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Replayed)
}

func TestSubmitResponse_SessionFinalized(t *testing.T) {
	t.Parallel()

	svc := &stubSessionService{
		submitFn: func(ctx context.Context, learnerID, sessionID uuid.UUID, itemID string, selected int, ts time.Time) (*service.SubmitResult, error) {
			return nil, domain.ErrSessionAlreadyFinalized
		},
	}
	router := newSessionRouter(svc, uuid.New())

	body := []byte(`{"item_id":"item-1","selected_option_index":1}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/sessions/"+uuid.New().String()+"/responses", bytes.NewReader(body)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFinalizeSession_ReturnsReport(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	svc := &stubSessionService{
		finalizeFn: func(ctx context.Context, learnerID, gotSession uuid.UUID) (*domain.ScoreReport, error) {
			return &domain.ScoreReport{
				SessionID:  gotSession,
				OverallPct: 0.8,
				Pass:       true,
				PassCutoff: 0.75,
				PerDomain: []domain.DomainScore{
					{Domain: "d1", Answered: 5, Correct: 4, Pct: 0.8},
				},
				FinalizedAt: time.Now().UTC(),
			}, nil
		},
	}
	router := newSessionRouter(svc, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/sessions/"+sessionID.String()+"/finalize", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.ScoreReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, sessionID, report.SessionID)
	assert.True(t, report.Pass)
	assert.InDelta(t, 0.8, report.OverallPct, 0.0001)
}
