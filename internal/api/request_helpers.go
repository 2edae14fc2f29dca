package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/examkit/practice-api/internal/api/shared"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/platform/logger"
)

// getLearnerIDFromContext extracts the authenticated learner's UUID from the
// request context. The learner ID is placed there by the auth middleware.
func getLearnerIDFromContext(r *http.Request) (uuid.UUID, bool) {
	learnerID, ok := r.Context().Value(shared.LearnerIDContextKey).(uuid.UUID)
	if !ok || learnerID == uuid.Nil {
		return uuid.Nil, false
	}
	return learnerID, true
}

// getPathUUID extracts a UUID from the URL path parameters, validating the
// format and reporting missing or malformed values as validation errors.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// handleLearnerIDAndPathUUID extracts both the learner ID from context and a
// UUID from the path parameters. It writes an error response and returns
// false if either extraction fails.
func handleLearnerIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	learnerID, ok := getLearnerIDFromContext(r)
	if !ok {
		log.Warn("learner ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "Learner ID not found or invalid")
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName,
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return learnerID, pathID, true
}
