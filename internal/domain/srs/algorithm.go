package srs

import (
	"math"
	"time"

	"github.com/examkit/practice-api/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor based on whether the
// learner answered correctly.
//
// The ease factor represents how quickly the review interval grows - higher
// values mean the item is easier for this learner and reviews spread out
// faster. Correct answers nudge it up by params.CorrectEaseBonus, incorrect
// answers pull it down by params.IncorrectEasePenalty, and the result is
// always clamped to [params.MinEaseFactor, params.MaxEaseFactor].
func calculateNewEaseFactor(currentEF float64, correct bool, params *Params) float64 {
	var newEF float64
	if correct {
		newEF = currentEF + params.CorrectEaseBonus
	} else {
		newEF = currentEF - params.IncorrectEasePenalty
	}

	// Ensure ease factor stays within configured limits
	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	if newEF > params.MaxEaseFactor {
		newEF = params.MaxEaseFactor
	}

	return newEF
}

// calculateNewInterval determines the new interval in days.
//
// A correct answer multiplies the current interval by the ease factor the
// record carried *before* this review (so the growth rate reflects the state
// the learner was scheduled under), rounded to the nearest day and never
// below params.MinIntervalDays. This makes the interval monotonically
// non-decreasing across consecutive correct answers, since the ease factor
// never drops below 1.0.
//
// An incorrect answer resets the interval to the floor regardless of how
// long it had grown.
func calculateNewInterval(currentInterval int, currentEF float64, correct bool, params *Params) int {
	if !correct {
		return params.MinIntervalDays
	}

	interval := int(math.Round(float64(currentInterval) * currentEF))
	if interval < params.MinIntervalDays {
		interval = params.MinIntervalDays
	}

	return interval
}

// calculateNextRecord creates a new MasteryRecord with updated values based
// on the review outcome.
//
// It follows the immutable update pattern: the input record is copied, never
// modified, and the copy carries the incremented version so the store's
// optimistic concurrency check operates on the version the caller read.
func calculateNextRecord(
	record *domain.MasteryRecord,
	correct bool,
	now time.Time,
	params *Params,
) *domain.MasteryRecord {
	next := *record

	next.Attempts++
	next.LastSeenAt = now

	if correct {
		next.CorrectStreak++
	} else {
		next.CorrectStreak = 0
	}

	// Interval growth uses the pre-review ease factor; the adjusted ease
	// only affects the review after this one.
	next.IntervalDays = calculateNewInterval(record.IntervalDays, record.EaseFactor, correct, params)
	next.EaseFactor = calculateNewEaseFactor(record.EaseFactor, correct, params)

	next.DueAt = now.AddDate(0, 0, next.IntervalDays)
	next.Version = record.Version + 1
	next.UpdatedAt = now

	return &next
}
