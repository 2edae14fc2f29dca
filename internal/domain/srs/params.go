package srs

import "github.com/examkit/practice-api/internal/domain"

// Params defines all configurable parameters for the scheduling algorithm.
type Params struct {
	// Core limits
	MinEaseFactor float64
	MaxEaseFactor float64

	// Ease factor adjustments per outcome
	CorrectEaseBonus     float64
	IncorrectEasePenalty float64

	// MinIntervalDays is the interval floor; incorrect answers reset to it.
	MinIntervalDays int
}

// NewDefaultParams creates a new Params instance with default values.
//
// The defaults implement the product's SM-2 derivative: a correct answer
// multiplies the interval by the ease factor and nudges the ease up by 0.1
// (capped at 2.8); an incorrect answer resets the interval to one day and
// drops the ease by 0.2 (floored at 1.3).
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor:        domain.MinEaseFactor,
		MaxEaseFactor:        domain.MaxEaseFactor,
		CorrectEaseBonus:     0.1,
		IncorrectEasePenalty: 0.2,
		MinIntervalDays:      domain.MinIntervalDays,
	}
}
