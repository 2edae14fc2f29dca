package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/examkit/practice-api/internal/api/shared"
	"github.com/examkit/practice-api/internal/platform/logger"
	"github.com/examkit/practice-api/internal/scheduler"
)

// fallbackReviewLimit caps the queue size when neither the request nor the
// configuration provides one.
const fallbackReviewLimit = 20

// ReviewHandler handles review queue HTTP requests
type ReviewHandler struct {
	scheduler    *scheduler.Scheduler
	defaultLimit int
	logger       *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler. defaultLimit caps the queue
// size when the request does not pass ?limit=.
func NewReviewHandler(sched *scheduler.Scheduler, defaultLimit int, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}
	if defaultLimit <= 0 {
		defaultLimit = fallbackReviewLimit
	}

	return &ReviewHandler{
		scheduler:    sched,
		defaultLimit: defaultLimit,
		logger:       logger.With(slog.String("component", "review_handler")),
	}
}

// GetDueItems handles GET /reviews/due requests. It returns the learner's
// review queue ranked by blended priority. ?limit= caps the queue and
// ?asOf= (RFC 3339) evaluates dueness at a different instant, letting
// clients preview tomorrow's queue; both default sensibly when absent.
func (h *ReviewHandler) GetDueItems(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := getLearnerIDFromContext(r)
	if !ok {
		log.Warn("learner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Learner ID not found or invalid")
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit: must be a positive integer")
			return
		}
		limit = parsed
	}

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid asOf: must be an RFC 3339 timestamp")
			return
		}
		asOf = parsed.UTC()
	}

	entries, err := h.scheduler.DueItems(r.Context(), learnerID, asOf, limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("review queue served",
		slog.String("learner_id", learnerID.String()),
		slog.Int("count", len(entries)))
	shared.RespondWithJSON(w, r, http.StatusOK, ReviewQueueResponse{
		AsOf:  asOf,
		Items: entries,
	})
}
