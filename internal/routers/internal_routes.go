package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/harishm17/study-buddy-sub001/internal/handlers"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
)

// InternalRoutes are called by the task queue and schedulers, never by browsers.
func InternalRoutes(router chi.Router, jobHandler *handlers.JobHandler, feedbackHandler *handlers.FeedbackHandler, token string) {
	router.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireInternalToken(token))
		r.Post("/jobs/{jobType}", jobHandler.Run)
		r.Post("/feedback/export", feedbackHandler.Export)
	})
}
