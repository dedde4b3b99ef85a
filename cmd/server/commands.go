package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/database"
	"github.com/harishm17/study-buddy-sub001/internal/feedback"
	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
)

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume jobs from the Redis queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := stopOnSignal(cmd.Context())
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.redis == nil || a.cfg.Tasks.Backend != "redis" {
				return fmt.Errorf("worker needs tasks.backend=redis and redis.addr, got backend %q", a.cfg.Tasks.Backend)
			}
			return tasks.NewWorker(a.redis, a.cfg.Tasks.RedisKey, a.processor, a.logger).Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newBaseApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			a.logger.Info("Database migrated")
			return nil
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail jobs stuck in processing longer than jobs.stale_after",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newBaseApp()
			if err != nil {
				return err
			}
			defer a.close()
			return runSweep(cmd.Context(), a)
		},
	}
}

func runSweep(ctx context.Context, a *app) error {
	sweeper := jobs.NewStaleJobSweeper(a.repos.Jobs, a.cfg.Jobs.StaleAfter, a.cfg.Jobs.SweepSchedule, a.logger)
	n, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Sweep finished", zap.Int64("failed_jobs", n))
	return nil
}

func newExportFeedbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export-feedback",
		Short: "Write unexported rated content to object storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newBaseApp()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := storage.New(cmd.Context(), a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("init object store: %w", err)
			}
			a.closeIfCloser(store)
			return runExport(cmd.Context(), a, store)
		},
	}
}

func runExport(ctx context.Context, a *app, store storage.ObjectStore) error {
	manager := feedback.NewManager(a.db, a.logger)
	exporter := feedback.NewExporter(manager, store, a.cfg.Feedback.ExportSchedule, a.cfg.Feedback.ExportPrefix, a.logger)
	key, err := exporter.RunOnce(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		a.logger.Info("No feedback to export")
		return nil
	}
	a.logger.Info("Feedback exported", zap.String("key", key))
	return nil
}
