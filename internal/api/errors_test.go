package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/examkit/practice-api/internal/blueprint"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/service"
	"github.com/examkit/practice-api/internal/service/auth"
	"github.com/examkit/practice-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized},
		{"not owned", service.ErrNotOwned, http.StatusForbidden},
		{"session not found", store.ErrSessionNotFound, http.StatusNotFound},
		{"report not found", store.ErrScoreReportNotFound, http.StatusNotFound},
		{"mastery record not found", store.ErrMasteryRecordNotFound, http.StatusNotFound},
		{"unknown course", itembank.ErrUnknownCourse, http.StatusNotFound},
		{"item not in session", domain.ErrItemNotInSession, http.StatusNotFound},
		{
			"invalid blueprint",
			&blueprint.InvalidBlueprintError{CourseID: "cisa", WeightSum: 0.8, SumDeviation: 0.2},
			http.StatusUnprocessableEntity,
		},
		{
			"insufficient pool",
			&itembank.InsufficientPoolError{CourseID: "cisa", Domain: "d1", Needed: 5, Available: 2},
			http.StatusConflict,
		},
		{"already finalized", domain.ErrSessionAlreadyFinalized, http.StatusConflict},
		{"validation", fmt.Errorf("%w: bad input", domain.ErrValidation), http.StatusBadRequest},
		{"invalid id", domain.ErrInvalidID, http.StatusBadRequest},
		{"retries exhausted", service.ErrMasteryRetriesExhausted, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestMapErrorToStatusCode_WrappedErrors(t *testing.T) {
	t.Parallel()

	wrapped := service.NewSessionServiceError("submit", "failed", domain.ErrSessionAlreadyFinalized)
	assert.Equal(t, http.StatusConflict, MapErrorToStatusCode(wrapped))

	wrapped = service.NewSessionServiceError("get", "failed", store.ErrSessionNotFound)
	assert.Equal(t, http.StatusNotFound, MapErrorToStatusCode(wrapped))
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Session not found", GetSafeErrorMessage(store.ErrSessionNotFound))
	assert.Equal(t, "Session already finalized", GetSafeErrorMessage(domain.ErrSessionAlreadyFinalized))
	assert.Equal(t, "You do not own this session", GetSafeErrorMessage(service.ErrNotOwned))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))

	// Internal detail never leaks for unknown errors.
	leaky := errors.New("pq: connection refused host=10.0.0.5")
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(leaky))
}

func TestGetSafeErrorMessage_ValidationDetail(t *testing.T) {
	t.Parallel()

	err := domain.NewValidationError("limit", "must be positive", domain.ErrValidation)
	assert.Equal(t, "Invalid limit: must be positive", GetSafeErrorMessage(err))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	raw := errors.New(
		"Key: 'StartSessionRequest.CourseID' Error:Field validation for 'CourseID' failed on the 'required' tag",
	)
	assert.Equal(t, "Invalid CourseID: required field", SanitizeValidationError(raw))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
}
