package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/examkit/practice-api/internal/api"
	apiMiddleware "github.com/examkit/practice-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	sessionHandler := api.NewSessionHandler(app.sessionService, app.logger)
	reviewHandler := api.NewReviewHandler(app.reviewSched, app.config.Review.DefaultLimit, app.logger)
	learnerHandler := api.NewLearnerHandler(app.masteryService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Exam session endpoints
			r.Post("/sessions", sessionHandler.StartSession)
			r.Get("/sessions/{id}", sessionHandler.GetSession)
			r.Post("/sessions/{id}/responses", sessionHandler.SubmitResponse)
			r.Post("/sessions/{id}/finalize", sessionHandler.FinalizeSession)

			// Review queue endpoints
			r.Get("/reviews/due", reviewHandler.GetDueItems)

			// Learner progress endpoints
			r.Get("/learners/me/summary", learnerHandler.GetSummary)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
