package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/feedback"
	"github.com/harishm17/study-buddy-sub001/internal/handlers"
	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/metrics"
	"github.com/harishm17/study-buddy-sub001/internal/middleware"
	"github.com/harishm17/study-buddy-sub001/internal/routers"
)

const requestTimeout = 60 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := stopOnSignal(cmd.Context())
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	sweeper := jobs.NewStaleJobSweeper(a.repos.Jobs, cfg.Jobs.StaleAfter, cfg.Jobs.SweepSchedule, logger)
	if err := sweeper.Start(); err != nil {
		logger.Error("Failed to start stale job sweeper", zap.Error(err))
	} else {
		defer sweeper.Stop()
	}

	var exporter *feedback.Exporter
	if cfg.Feedback.ExportEnabled {
		exporter = feedback.NewExporter(a.feedback, a.store, cfg.Feedback.ExportSchedule, cfg.Feedback.ExportPrefix, logger)
		if err := exporter.Start(); err != nil {
			logger.Error("Failed to start feedback exporter", zap.Error(err))
		} else {
			logger.Info("Feedback exporter started", zap.String("schedule", cfg.Feedback.ExportSchedule))
			defer exporter.Stop()
		}
	}

	router := newRouter(a, exporter)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		// uploads stream through the request body
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("StudyBuddy API starting", zap.String("addr", server.Addr), zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("StudyBuddy API shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	logger.Info("StudyBuddy API exited")
	return nil
}

func newRouter(a *app, exporter *feedback.Exporter) *chi.Mux {
	cfg, logger := a.cfg, a.logger

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.FrontendURLs,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", handlers.IdempotencyKeyHeader},
		AllowCredentials: true,
	}))
	router.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Logger,
		chimiddleware.Recoverer,
		chimiddleware.Timeout(requestTimeout),
		metrics.Middleware,
	)

	jwtSecret := cfg.JWTSecretOrDefault()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	jobHandler := handlers.NewJobHandler(a.repos, a.processor, logger)
	feedbackHandler := handlers.NewFeedbackHandler(a.repos, a.feedback, exporter, logger)

	routers.HealthRoutes(router, handlers.NewHealthHandler(a.db, a.provider, a.prompts, a.store, a.redis, cfg))
	routers.APIRoutes(router, routers.API{
		Auth:      handlers.NewAuthHandler(a.repos.Users, jwtSecret, cfg.Auth.TokenTTL, logger),
		Projects:  handlers.NewProjectHandler(a.db, a.repos, a.store, logger),
		Materials: handlers.NewMaterialHandler(a.repos, a.store, a.jobs, cfg.Storage.MaxUploadBytes, cfg.Storage.SignedURLTTL, logger),
		Topics:    handlers.NewTopicHandler(a.repos, a.jobs, logger),
		Content:   handlers.NewContentHandler(a.repos, a.jobs, logger),
		Exams:     handlers.NewExamHandler(a.repos, a.jobs, logger),
		Jobs:      jobHandler,
		Learning:  handlers.NewLearningHandler(a.repos, a.learning, a.grader, logger),
		Voice:     handlers.NewVoiceHandler(a.repos, a.voice, logger),
		Feedback:  feedbackHandler,
	}, jwtSecret, limiter)
	routers.InternalRoutes(router, jobHandler, feedbackHandler, cfg.Auth.InternalToken)

	return router
}

// stopOnSignal cancels ctx on SIGINT or SIGTERM.
func stopOnSignal(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
