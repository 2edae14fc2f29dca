package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState tracks an exam session through its lifecycle.
type SessionState string

// Session lifecycle states. Transitions are strictly forward:
// Created -> InProgress -> Completed -> Scored.
const (
	SessionStateCreated    SessionState = "created"
	SessionStateInProgress SessionState = "in_progress"
	SessionStateCompleted  SessionState = "completed"
	SessionStateScored     SessionState = "scored"
)

// Session-specific errors
var (
	// ErrSessionIDEmpty is returned when a session ID is empty or nil.
	ErrSessionIDEmpty = errors.New("session ID cannot be empty")

	// ErrSessionLearnerIDEmpty is returned when a session's learner ID is empty or nil.
	ErrSessionLearnerIDEmpty = errors.New("session learner ID cannot be empty")

	// ErrSessionNoItems is returned when a session contains no items.
	ErrSessionNoItems = errors.New("session must contain at least one item")

	// ErrSessionDuplicateItem is returned when a session's item list contains
	// the same item ID twice. Degraded composition may repeat items, which is
	// why sessions composed with repeats record them in DegradedCells instead.
	ErrSessionDuplicateItem = errors.New("session contains duplicate item ID")

	// ErrSessionAlreadyFinalized is returned when a response arrives for a
	// session that has already been completed or scored.
	ErrSessionAlreadyFinalized = errors.New("session already finalized")

	// ErrSessionNotFinalized is returned when a score report is requested for
	// a session that is still accepting responses.
	ErrSessionNotFinalized = errors.New("session not finalized")

	// ErrItemNotInSession is returned when a response references an item ID
	// that is not part of the session.
	ErrItemNotInSession = errors.New("item is not part of this session")

	// ErrInvalidStateTransition is returned for any disallowed state change.
	ErrInvalidStateTransition = errors.New("invalid session state transition")
)

// DegradedCell identifies a (domain, difficulty) allocation cell for which
// the cooldown filter had to be relaxed during composition. Sessions carry
// these so content owners can see which pools are running thin.
type DegradedCell struct {
	Domain     string     `json:"domain"`
	Difficulty Difficulty `json:"difficulty"`
	Needed     int        `json:"needed"`
	Available  int        `json:"available"`
}

// Response records a learner's answer to one item within a session. The
// (SessionID, ItemID) pair doubles as the idempotency key: resubmitting the
// same pair returns the stored response unchanged.
type Response struct {
	SessionID           uuid.UUID `json:"session_id"`
	ItemID              string    `json:"item_id"`
	SelectedOptionIndex int       `json:"selected_option_index"`
	Correct             bool      `json:"correct"`
	ClientTimestamp     time.Time `json:"client_timestamp"`
	ServerTimestamp     time.Time `json:"server_timestamp"`
}

// ExamSession is one composed practice exam for one learner. It is created by
// the composer in the Created state, accumulates responses while InProgress,
// and becomes immutable once finalized.
type ExamSession struct {
	ID             uuid.UUID      `json:"id"`
	LearnerID      uuid.UUID      `json:"learner_id"`
	CourseID       string         `json:"course_id"`
	ItemIDs        []string       `json:"item_ids"`
	State          SessionState   `json:"state"`
	Degraded       bool           `json:"degraded"`
	DegradedCells  []DegradedCell `json:"degraded_cells,omitempty"`
	Responses      []Response     `json:"responses"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewExamSession creates a session in the Created state over the given item
// order. Duplicate item IDs are only legal when the composition degraded, in
// which case the repeated cells must be listed in degradedCells.
func NewExamSession(
	learnerID uuid.UUID,
	courseID string,
	itemIDs []string,
	degradedCells []DegradedCell,
) (*ExamSession, error) {
	now := time.Now().UTC()
	session := &ExamSession{
		ID:             uuid.New(),
		LearnerID:      learnerID,
		CourseID:       courseID,
		ItemIDs:        itemIDs,
		State:          SessionStateCreated,
		Degraded:       len(degradedCells) > 0,
		DegradedCells:  degradedCells,
		Responses:      nil,
		CreatedAt:      now,
		LastActivityAt: now,
		UpdatedAt:      now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks if the ExamSession has valid data.
// Returns an error if any field fails validation.
func (s *ExamSession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrSessionIDEmpty
	}

	if s.LearnerID == uuid.Nil {
		return ErrSessionLearnerIDEmpty
	}

	if s.CourseID == "" {
		return ErrBlueprintCourseIDEmpty
	}

	if len(s.ItemIDs) == 0 {
		return ErrSessionNoItems
	}

	// Duplicate item IDs are only permitted for degraded compositions.
	if !s.Degraded {
		seen := make(map[string]struct{}, len(s.ItemIDs))
		for _, id := range s.ItemIDs {
			if _, ok := seen[id]; ok {
				return fmt.Errorf("%w: %s", ErrSessionDuplicateItem, id)
			}
			seen[id] = struct{}{}
		}
	}

	return nil
}

// ContainsItem reports whether the given item ID is part of the session.
func (s *ExamSession) ContainsItem(itemID string) bool {
	for _, id := range s.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// ResponseFor returns the recorded response for the given item ID, if any.
func (s *ExamSession) ResponseFor(itemID string) (*Response, bool) {
	for idx := range s.Responses {
		if s.Responses[idx].ItemID == itemID {
			return &s.Responses[idx], true
		}
	}
	return nil, false
}

// IsFinalized reports whether the session no longer accepts responses.
func (s *ExamSession) IsFinalized() bool {
	return s.State == SessionStateCompleted || s.State == SessionStateScored
}

// Begin moves a Created session to InProgress. Called on the first response.
func (s *ExamSession) Begin(now time.Time) error {
	if s.State != SessionStateCreated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, s.State, SessionStateInProgress)
	}
	s.State = SessionStateInProgress
	s.LastActivityAt = now
	s.UpdatedAt = now
	return nil
}

// RecordResponse appends a response to the session, starting it if needed.
// The response must reference an item that belongs to the session, and the
// session must not be finalized.
func (s *ExamSession) RecordResponse(resp Response, now time.Time) error {
	if s.IsFinalized() {
		return ErrSessionAlreadyFinalized
	}

	if !s.ContainsItem(resp.ItemID) {
		return fmt.Errorf("%w: %s", ErrItemNotInSession, resp.ItemID)
	}

	if s.State == SessionStateCreated {
		if err := s.Begin(now); err != nil {
			return err
		}
	}

	s.Responses = append(s.Responses, resp)
	s.LastActivityAt = now
	s.UpdatedAt = now
	return nil
}

// Complete moves an InProgress (or never-started Created) session to
// Completed, after which no further responses are accepted.
func (s *ExamSession) Complete(now time.Time) error {
	if s.IsFinalized() {
		return ErrSessionAlreadyFinalized
	}
	s.State = SessionStateCompleted
	s.UpdatedAt = now
	return nil
}

// MarkScored moves a Completed session to Scored once its report is stored.
func (s *ExamSession) MarkScored(now time.Time) error {
	if s.State != SessionStateCompleted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, s.State, SessionStateScored)
	}
	s.State = SessionStateScored
	s.UpdatedAt = now
	return nil
}
