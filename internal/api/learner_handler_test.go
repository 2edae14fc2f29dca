package api_test

import (
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
	"github.com/examkit/practice-api/internal/service"
)

// stubMasteryService scripts summary responses for handler tests.
type stubMasteryService struct {
	service.MasteryService

	summaryFn func(ctx context.Context, learnerID uuid.UUID, courseID string, asOf time.Time) (*service.LearnerSummary, error)
}

func (s *stubMasteryService) Summary(
	ctx context.Context,
	learnerID uuid.UUID,
	courseID string,
	asOf time.Time,
) (*service.LearnerSummary, error) {
	return s.summaryFn(ctx, learnerID, courseID, asOf)
}

func newLearnerRouter(svc service.MasteryService, learnerID uuid.UUID) http.Handler {
	handler := api.NewLearnerHandler(svc, slog.Default())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), shared.LearnerIDContextKey, learnerID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/learners/me/summary", handler.GetSummary)
	return r
}

func TestGetSummary_Success(t *testing.T) {
	t.Parallel()

	learnerID := uuid.New()
	svc := &stubMasteryService{
		summaryFn: func(ctx context.Context, gotLearner uuid.UUID, courseID string, asOf time.Time) (*service.LearnerSummary, error) {
			assert.Equal(t, learnerID, gotLearner)
			assert.Equal(t, "cisa", courseID)
			return &service.LearnerSummary{
				CourseID: courseID,
				Topics: []service.TopicSummary{
					{Topic: "governance", Attempts: 10, Correct: 7, Accuracy: 0.7},
					{Topic: "audit-process", Attempts: 5, Correct: 2, Accuracy: 0.4},
				},
				WeakTopics: []string{"audit-process"},
				DueCount:   4,
				Readiness:  0.6,
			}, nil
		},
	}
	router := newLearnerRouter(svc, learnerID)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/learners/me/summary?course=cisa", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var summary service.LearnerSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "cisa", summary.CourseID)
	assert.Equal(t, 4, summary.DueCount)
	require.Len(t, summary.Topics, 2)
	assert.InDelta(t, 0.7, summary.Topics[0].Accuracy, 0.0001)
	assert.Equal(t, []string{"audit-process"}, summary.WeakTopics)
}

func TestGetSummary_MissingCourse(t *testing.T) {
	t.Parallel()

	router := newLearnerRouter(&stubMasteryService{}, uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/learners/me/summary", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
