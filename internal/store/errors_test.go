package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("some error"),
			expected: false,
		},
		{
			name:     "wrapped generic error",
			err:      fmt.Errorf("failed to do something: %w", errors.New("some error")),
			expected: false,
		},
		{
			name:     "ErrNotFound",
			err:      ErrNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrNotFound",
			err:      fmt.Errorf("failed to do something: %w", ErrNotFound),
			expected: true,
		},
		{
			name:     "ErrSessionNotFound",
			err:      ErrSessionNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrSessionNotFound",
			err:      fmt.Errorf("failed to load session: %w", ErrSessionNotFound),
			expected: true,
		},
		{
			name:     "ErrMasteryRecordNotFound",
			err:      ErrMasteryRecordNotFound,
			expected: true,
		},
		{
			name:     "ErrScoreReportNotFound",
			err:      ErrScoreReportNotFound,
			expected: true,
		},
		{
			name:     "ErrConcurrentUpdateConflict is not a not-found error",
			err:      ErrConcurrentUpdateConflict,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.expected {
				t.Errorf("IsNotFoundError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	inner := ErrConcurrentUpdateConflict
	storeErr := NewStoreError("mastery_record", "update", "version check failed", inner)

	assert.Contains(t, storeErr.Error(), "update operation on mastery_record failed")
	assert.Contains(t, storeErr.Error(), "version check failed")
	assert.ErrorIs(t, storeErr, ErrConcurrentUpdateConflict)

	// Without a wrapped error the message stands alone.
	bare := NewStoreError("exam_session", "create", "marshal failed", nil)
	assert.Equal(t, "create operation on exam_session failed: marshal failed", bare.Error())
	assert.Nil(t, errors.Unwrap(bare))
}
