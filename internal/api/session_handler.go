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

// SessionHandler handles exam session HTTP requests
type SessionHandler struct {
	sessionService service.SessionService
	logger         *slog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionService service.SessionService, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SessionHandler")
	}

	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger.With(slog.String("component", "session_handler")),
	}
}

// StartSession handles POST /sessions requests. It composes a new practice
// exam for the authenticated learner and returns it in the Created state.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := getLearnerIDFromContext(r)
	if !ok {
		log.Warn("learner ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Learner ID not found or invalid")
		return
	}

	var req StartSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("failed to decode start session request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	startReq := service.StartRequest{
		LearnerID:  learnerID,
		CourseID:   req.CourseID,
		TotalItems: req.TotalItems,
	}
	if req.Blueprint != nil {
		startReq.Blueprint = &domain.ExamBlueprint{
			CourseID: req.CourseID,
			Weights:  req.Blueprint,
		}
	}
	if req.DifficultyMix != nil {
		mix := make(domain.DifficultyMix, len(req.DifficultyMix))
		for name, fraction := range req.DifficultyMix {
			difficulty, err := domain.ParseDifficulty(name)
			if err != nil {
				HandleAPIError(w, r, err, "")
				return
			}
			mix[difficulty] = fraction
		}
		startReq.DifficultyMix = mix
	}

	session, err := h.sessionService.Start(r.Context(), startReq)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("exam session started",
		slog.String("learner_id", learnerID.String()),
		slog.String("session_id", session.ID.String()),
		slog.Int("item_count", len(session.ItemIDs)),
		slog.Bool("degraded", session.Degraded))
	shared.RespondWithJSON(w, r, http.StatusCreated, NewSessionResponse(session))
}

// GetSession handles GET /sessions/{id} requests.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, sessionID, ok := handleLearnerIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(r.Context(), learnerID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewSessionResponse(session))
}

// SubmitResponse handles POST /sessions/{id}/responses requests. Submitting
// the same item twice replays the stored grading with Replayed set, so
// clients can retry safely.
func (h *SessionHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, sessionID, ok := handleLearnerIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req SubmitResponseRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("failed to decode submit response request", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	clientTimestamp := req.ClientTimestamp
	if clientTimestamp.IsZero() {
		clientTimestamp = time.Now().UTC()
	}

	result, err := h.sessionService.Submit(
		r.Context(),
		learnerID,
		sessionID,
		req.ItemID,
		*req.SelectedOptionIndex,
		clientTimestamp,
	)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("response recorded",
		slog.String("session_id", sessionID.String()),
		slog.String("item_id", req.ItemID),
		slog.Bool("correct", result.Response.Correct),
		slog.Bool("replayed", result.Replayed))
	shared.RespondWithJSON(w, r, http.StatusOK, SubmitResponseResponse{
		ItemID:          result.Response.ItemID,
		Correct:         result.Response.Correct,
		Replayed:        result.Replayed,
		Explanation:     result.Explanation,
		ServerTimestamp: result.Response.ServerTimestamp,
	})
}

// FinalizeSession handles POST /sessions/{id}/finalize requests. Finalizing
// an already finalized session returns the stored report unchanged.
func (h *SessionHandler) FinalizeSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, sessionID, ok := handleLearnerIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	report, err := h.sessionService.Finalize(r.Context(), learnerID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("session finalized",
		slog.String("session_id", sessionID.String()),
		slog.Float64("overall_pct", report.OverallPct),
		slog.Bool("pass", report.Pass))
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}
