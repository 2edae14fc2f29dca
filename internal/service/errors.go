package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrNotOwned indicates a resource is owned by a different learner than the one making the request.
	// This is typically returned when a learner references someone else's exam session.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another learner")

	// ErrMasteryRetriesExhausted indicates a mastery update lost the
	// optimistic-concurrency race on every attempt. The client may retry the
	// whole request. API layer should map this to HTTP 503 Service Unavailable.
	ErrMasteryRetriesExhausted = errors.New("mastery update retries exhausted")
)
