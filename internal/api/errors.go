package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/examkit/practice-api/internal/api/shared"
	"github.com/examkit/practice-api/internal/blueprint"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/service"
	"github.com/examkit/practice-api/internal/service/auth"
	"github.com/examkit/practice-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var invalidBlueprint *blueprint.InvalidBlueprintError
	var insufficientPool *itembank.InsufficientPoolError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, itembank.ErrUnknownCourse),
		errors.Is(err, domain.ErrItemNotInSession):
		return http.StatusNotFound

	// A structurally valid blueprint that fails the weighting rules
	case errors.As(err, &invalidBlueprint):
		return http.StatusUnprocessableEntity

	// Conflict errors
	case errors.As(err, &insufficientPool),
		errors.Is(err, domain.ErrSessionAlreadyFinalized),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Contention the caller can retry later
	case errors.Is(err, service.ErrMasteryRetriesExhausted):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var invalidBlueprint *blueprint.InvalidBlueprintError
	var insufficientPool *itembank.InsufficientPoolError
	var validationErr *domain.ValidationError

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this session"

	// Not found errors
	case errors.Is(err, store.ErrSessionNotFound):
		return "Session not found"

	case errors.Is(err, store.ErrScoreReportNotFound):
		return "Score report not found"

	case errors.Is(err, store.ErrMasteryRecordNotFound):
		return "Mastery record not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, itembank.ErrUnknownCourse):
		return "Unknown course"

	case errors.Is(err, domain.ErrItemNotInSession):
		return "Item is not part of this session"

	// Blueprint and composition errors carry actionable detail for the
	// caller; their messages contain no internal state.
	case errors.As(err, &invalidBlueprint):
		return invalidBlueprint.Error()

	case errors.As(err, &insufficientPool):
		return insufficientPool.Error()

	// Conflict errors
	case errors.Is(err, domain.ErrSessionAlreadyFinalized):
		return "Session already finalized"

	// Bad request errors
	case errors.As(err, &validationErr):
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid identifier format"

	case errors.Is(err, service.ErrMasteryRetriesExhausted):
		return "Temporarily unable to record review, please retry"

	// Default case for unknown errors
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps the error to a status code and safe message and writes
// the response. When userMessage is non-empty it overrides the derived
// message; the raw error is only ever logged, never sent to the client.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Check if this is likely a validator package error message
	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'StartSessionRequest.CourseID' Error:Field validation for 'CourseID' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "value too small"
	case "max":
		return "value too large"
	case "gte":
		return "value too small"
	case "lte":
		return "value too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
