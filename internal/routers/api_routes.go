package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/harishm17/study-buddy-sub001/internal/handlers"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/models"
)

// API groups the handlers behind /api/v1.
type API struct {
	Auth      *handlers.AuthHandler
	Projects  *handlers.ProjectHandler
	Materials *handlers.MaterialHandler
	Topics    *handlers.TopicHandler
	Content   *handlers.ContentHandler
	Exams     *handlers.ExamHandler
	Jobs      *handlers.JobHandler
	Learning  *handlers.LearningHandler
	Voice     *handlers.VoiceHandler
	Feedback  *handlers.FeedbackHandler
}

func APIRoutes(router chi.Router, api API, jwtSecret string, limiter *middleware.RateLimiter) {
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Middleware, middleware.ValidateRequest[*models.RegisterRequest]()).Post("/register", api.Auth.Register)
			r.With(limiter.Middleware, middleware.ValidateRequest[*models.LoginRequest]()).Post("/login", api.Auth.Login)
			r.With(middleware.RequireAuth(jwtSecret)).Get("/me", api.Auth.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtSecret))
			r.Use(limiter.Middleware)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", api.Projects.List)
				r.With(middleware.ValidateRequest[*models.CreateProjectRequest]()).Post("/", api.Projects.Create)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", api.Projects.Get)
					r.With(middleware.ValidateRequest[*models.UpdateProjectRequest]()).Patch("/", api.Projects.Update)
					r.Delete("/", api.Projects.Delete)

					r.Get("/materials", api.Materials.List)
					r.Post("/materials", api.Materials.Upload)

					r.Get("/topics", api.Topics.List)
					r.Post("/topics/extract", api.Topics.Extract)
					r.With(middleware.ValidateRequest[*models.ConfirmTopicsRequest]()).Post("/topics/confirm", api.Topics.Confirm)

					r.Get("/exams", api.Exams.List)
					r.With(middleware.ValidateRequest[*models.GenerateExamRequest]()).Post("/exams", api.Exams.Generate)

					r.Get("/jobs", api.Jobs.ListByProject)

					r.Get("/mastery", api.Learning.Mastery)
					r.Get("/next-actions", api.Learning.NextActions)
					r.Get("/reviews/due", api.Learning.DueReviews)
				})
			})

			r.Route("/materials/{materialID}", func(r chi.Router) {
				r.Get("/", api.Materials.Get)
				r.Get("/download", api.Materials.Download)
				r.Delete("/", api.Materials.Delete)
			})

			r.Route("/topics/{topicID}", func(r chi.Router) {
				r.With(middleware.ValidateRequest[*models.UpdateTopicRequest]()).Patch("/", api.Topics.Update)
				r.Delete("/", api.Topics.Delete)
				r.Get("/content", api.Content.List)
				r.With(middleware.ValidateRequest[*models.GenerateContentRequest]()).Post("/content", api.Content.Generate)
				r.With(middleware.ValidateRequest[*models.QuizAttemptRequest]()).Post("/quiz-attempts", api.Learning.QuizAttempt)
				r.With(middleware.ValidateRequest[*models.VoiceDrillRequest]()).Post("/voice-drill", api.Voice.Drill)
				r.With(middleware.ValidateRequest[*models.VoiceAttemptRequest]()).Post("/voice-attempts", api.Voice.Attempt)
			})

			r.Get("/content/{contentID}", api.Content.Get)
			r.With(middleware.ValidateRequest[*models.FeedbackRequest]()).Post("/content/{contentID}/feedback", api.Feedback.Submit)
			r.Get("/feedback/stats", api.Feedback.Stats)

			r.Get("/exams/{examID}", api.Exams.Get)
			r.With(middleware.ValidateRequest[*models.SubmitExamRequest]()).Post("/exams/{examID}/submissions", api.Exams.Submit)
			r.Get("/submissions/{submissionID}", api.Exams.GetSubmission)

			r.Get("/jobs/{jobID}", api.Jobs.Get)
		})
	})
}
