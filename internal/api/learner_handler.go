package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/examkit/practice-api/internal/api/shared"
	"github.com/examkit/practice-api/internal/domain"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/service"
)

// LearnerHandler handles learner progress HTTP requests
type LearnerHandler struct {
	masteryService service.MasteryService
	logger         *slog.Logger
}

// NewLearnerHandler creates a new LearnerHandler
func NewLearnerHandler(masteryService service.MasteryService, logger *slog.Logger) *LearnerHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for LearnerHandler")
	}

	return &LearnerHandler{
		masteryService: masteryService,
		logger:         logger.With(slog.String("component", "learner_handler")),
	}
}

// GetSummary handles GET /learners/me/summary requests. The ?course= query
// parameter selects which course to summarize.
func (h *LearnerHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := getLearnerIDFromContext(r)
	if !ok {
		log.Warn("learner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Learner ID not found or invalid")
		return
	}

	courseID := r.URL.Query().Get("course")
	if courseID == "" {
		HandleAPIError(w, r,
			domain.NewValidationError("course", "query parameter is required", domain.ErrValidation), "")
		return
	}

	summary, err := h.masteryService.Summary(r.Context(), learnerID, courseID, time.Now().UTC())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("learner summary served",
		slog.String("learner_id", learnerID.String()),
		slog.String("course_id", courseID),
		slog.Int("topic_count", len(summary.Topics)))
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}
