package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrSessionNotFound, ErrMasteryRecordNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second session with the same ID).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrConcurrentUpdateConflict is returned when a version-checked update
	// finds that the stored version differs from the one the caller read.
	// The caller should re-read the record and retry; nothing was written.
	ErrConcurrentUpdateConflict = errors.New("concurrent update conflict")

	// Entity-specific "not found" errors

	// ErrSessionNotFound indicates that the requested exam session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: exam session", ErrNotFound)

	// ErrMasteryRecordNotFound indicates that the requested mastery record does not exist.
	ErrMasteryRecordNotFound = fmt.Errorf("%w: mastery record", ErrNotFound)

	// ErrScoreReportNotFound indicates that a session has no stored score report yet.
	ErrScoreReportNotFound = fmt.Errorf("%w: score report", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// This includes the generic ErrNotFound and all entity-specific not found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "exam_session", "mastery_record")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
