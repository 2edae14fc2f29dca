// Package service provides application-level services for composing exam
// sessions, recording responses, and maintaining mastery state.
//
// Services orchestrate across domain logic and stores. They own the
// cross-cutting policies the domain layer stays ignorant of: response
// idempotency, optimistic-concurrency retries on mastery updates, exposure
// recording, and score report finalization.
package service
