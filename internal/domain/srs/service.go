package srs

import (
	"errors"
	"time"

	"github.com/examkit/practice-api/internal/domain"
)

// Common errors
var (
	ErrNilRecord = errors.New("mastery record cannot be nil")
)

// Service defines the interface for spaced-repetition scheduling operations.
type Service interface {
	// ApplyOutcome computes a new mastery record from a review outcome.
	// The returned record carries an incremented version; the input record
	// is never modified.
	ApplyOutcome(
		record *domain.MasteryRecord,
		correct bool,
		now time.Time,
	) (*domain.MasteryRecord, error)
}

// defaultService is the standard implementation of the Service interface.
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new scheduling service with default parameters.
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new scheduling service with custom parameters.
func NewServiceWithParams(params *Params) Service {
	return &defaultService{
		params: params,
	}
}

// ApplyOutcome implements the Service interface.
func (s *defaultService) ApplyOutcome(
	record *domain.MasteryRecord,
	correct bool,
	now time.Time,
) (*domain.MasteryRecord, error) {
	if record == nil {
		return nil, ErrNilRecord
	}

	return calculateNextRecord(record, correct, now, s.params), nil
}
