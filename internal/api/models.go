package api

import (
	"time"

	"github.com/examkit/practice-api/internal/domain"
)

// StartSessionRequest contains the data for composing a new exam session.
// Blueprint and DifficultyMix are optional; the course preset applies when
// they are omitted.
type StartSessionRequest struct {
	CourseID      string             `json:"course_id"      validate:"required"`
	TotalItems    int                `json:"total_items"    validate:"omitempty,gte=1,lte=500"`
	Blueprint     map[string]float64 `json:"blueprint"      validate:"omitempty,min=1"`
	DifficultyMix map[string]float64 `json:"difficulty_mix" validate:"omitempty,min=1"`
}

// SubmitResponseRequest contains one answer to one item in a session.
// SelectedOptionIndex is a pointer so that index 0 survives the required
// check. ClientTimestamp is optional and defaults to the server clock.
type SubmitResponseRequest struct {
	ItemID              string    `json:"item_id"               validate:"required"`
	SelectedOptionIndex *int      `json:"selected_option_index" validate:"required,gte=0"`
	ClientTimestamp     time.Time `json:"client_timestamp"`
}

// SessionResponse is the API representation of an exam session. Item IDs are
// returned in presentation order; correct answers are never included.
type SessionResponse struct {
	ID             string                `json:"id"`
	CourseID       string                `json:"course_id"`
	State          string                `json:"state"`
	ItemIDs        []string              `json:"item_ids"`
	Degraded       bool                  `json:"degraded"`
	DegradedCells  []domain.DegradedCell `json:"degraded_cells,omitempty"`
	AnsweredCount  int                   `json:"answered_count"`
	CreatedAt      time.Time             `json:"created_at"`
	LastActivityAt time.Time             `json:"last_activity_at"`
}

// NewSessionResponse converts a domain session to its API representation.
func NewSessionResponse(session *domain.ExamSession) SessionResponse {
	return SessionResponse{
		ID:             session.ID.String(),
		CourseID:       session.CourseID,
		State:          string(session.State),
		ItemIDs:        session.ItemIDs,
		Degraded:       session.Degraded,
		DegradedCells:  session.DegradedCells,
		AnsweredCount:  len(session.Responses),
		CreatedAt:      session.CreatedAt,
		LastActivityAt: session.LastActivityAt,
	}
}

// SubmitResponseResponse acknowledges a recorded answer. Replayed is true
// when the same (session, item) pair had been answered before; the original
// grading is returned unchanged in that case.
type SubmitResponseResponse struct {
	ItemID          string    `json:"item_id"`
	Correct         bool      `json:"correct"`
	Replayed        bool      `json:"replayed"`
	Explanation     string    `json:"explanation,omitempty"`
	ServerTimestamp time.Time `json:"server_timestamp"`
}

// ReviewQueueResponse is the ranked list of items due for review.
type ReviewQueueResponse struct {
	AsOf  time.Time                 `json:"as_of"`
	Items []domain.ReviewQueueEntry `json:"items"`
}
