package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/harishm17/study-buddy-sub001/internal/config"
	"github.com/harishm17/study-buddy-sub001/internal/content"
	"github.com/harishm17/study-buddy-sub001/internal/database"
	"github.com/harishm17/study-buddy-sub001/internal/document"
	"github.com/harishm17/study-buddy-sub001/internal/feedback"
	"github.com/harishm17/study-buddy-sub001/internal/grading"
	"github.com/harishm17/study-buddy-sub001/internal/jobs"
	"github.com/harishm17/study-buddy-sub001/internal/learning"
	"github.com/harishm17/study-buddy-sub001/internal/llm"
	_ "github.com/harishm17/study-buddy-sub001/internal/llm/gemini"
	_ "github.com/harishm17/study-buddy-sub001/internal/llm/openai"
	"github.com/harishm17/study-buddy-sub001/internal/prompts"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/search"
	"github.com/harishm17/study-buddy-sub001/internal/storage"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
	"github.com/harishm17/study-buddy-sub001/internal/voice"
)

// app holds the shared dependencies every command builds from.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *gorm.DB
	redis    *redis.Client
	store    storage.ObjectStore
	provider llm.Provider
	prompts  *prompts.PromptManager
	repos    repositories.Set

	dispatcher tasks.Dispatcher
	processor  *jobs.Processor
	jobs       *jobs.Service

	learning  *learning.Service
	generator *content.Generator
	grader    *grading.Grader
	voice     *voice.Service
	feedback  *feedback.Manager

	closers []func()
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}

// newBaseApp loads config, logging and the database. Commands that only touch rows
// stop here.
func newBaseApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(cfg.Log, cfg.Environment, cfg.Secrets())
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Environment),
		zap.String("provider", cfg.AI.Provider),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("tasks", cfg.Tasks.Backend))

	db, err := database.Open(cfg.DSN(), logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = db
	a.repos = repositories.NewSet(db)
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
	}
	return a, nil
}

// newApp builds the full job pipeline on top of newBaseApp.
func newApp(ctx context.Context) (*app, error) {
	a, err := newBaseApp()
	if err != nil {
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	if cfg.IsDevelopment() {
		if err := database.Migrate(a.db); err != nil {
			return err
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	a.store = store
	a.closeIfCloser(store)

	pm, err := prompts.NewPromptManager()
	if err != nil {
		return fmt.Errorf("init prompt manager: %w", err)
	}
	a.prompts = pm

	provider, err := llm.NewProvider(cfg)
	switch {
	case err == nil:
		a.provider = provider
	case cfg.IsDevelopment():
		// no credentials in development: generators fall back to mock content
		logger.Warn("AI provider unavailable, serving mock content", zap.Error(err))
	default:
		return fmt.Errorf("init AI provider: %w", err)
	}

	a.dispatcher, err = tasks.New(ctx, cfg, a.redis, logger)
	if err != nil {
		return fmt.Errorf("init task dispatcher: %w", err)
	}
	a.closeIfCloser(a.dispatcher)

	var locker jobs.Locker
	if a.redis != nil {
		locker = jobs.NewRedisLocker(a.redis)
	} else {
		ml := jobs.NewMemoryLocker(time.Minute)
		a.closers = append(a.closers, ml.Stop)
		locker = ml
	}

	a.jobs = jobs.NewService(a.repos.Jobs, a.dispatcher, locker, cfg.Jobs.IdempotencyWindow, cfg.Jobs.LockTTL, logger)
	a.processor = jobs.NewProcessor(a.repos.Jobs, logger)

	a.learning = learning.NewService(a.repos, logger)
	a.generator = content.NewGenerator(a.provider, pm, logger)
	a.grader = grading.NewGrader(a.provider, pm, logger)
	a.voice = voice.NewService(a.repos, a.generator, a.learning, logger)
	a.feedback = feedback.NewManager(a.db, logger)

	steps := &jobs.Steps{
		Repos:     a.repos,
		Store:     store,
		Provider:  a.provider,
		Validator: document.NewValidator(a.provider, pm, logger),
		Generator: a.generator,
		Grader:    a.grader,
		Searcher:  search.NewSearcher(a.db, a.provider, logger),
		Learning:  a.learning,
		Submitter: a.jobs,
		MaxBytes:  cfg.Storage.MaxUploadBytes,
		Logger:    logger,
	}
	steps.Register(a.processor)

	if inline, ok := a.dispatcher.(*tasks.InlineDispatcher); ok {
		inline.Bind(a.processor)
		a.closers = append(a.closers, inline.Wait)
	}
	return nil
}

func (a *app) closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = c.Close() })
	}
}

// close runs cleanups in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
