package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
)

// ErrBusy means a submission with the same key held the lock for the whole wait.
var ErrBusy = errors.New("an identical job is being submitted")

const lockRetryDelay = 50 * time.Millisecond

type SubmitRequest struct {
	UserID    string
	ProjectID string
	JobType   models.JobType
	Input     any
	// ClientKey is the optional Idempotency-Key header.
	ClientKey string
}

type Service struct {
	repo       *repositories.JobRepository
	dispatcher tasks.Dispatcher
	locker     Locker
	window     time.Duration
	lockTTL    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repo *repositories.JobRepository, dispatcher tasks.Dispatcher, locker Locker, window, lockTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		locker:     locker,
		window:     window,
		lockTTL:    lockTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Submit creates and enqueues a job, or returns the existing job for the same
// fingerprint with deduplicated=true.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.ProcessingJob, bool, error) {
	if !models.ValidJobTypes[req.JobType] {
		return nil, false, fmt.Errorf("unknown job type %q", req.JobType)
	}

	key, err := Fingerprint(req.UserID, req.JobType, req.Input, req.ClientKey)
	if err != nil {
		return nil, false, err
	}

	release, err := s.acquire(ctx, key)
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := s.repo.FindReusable(ctx, key, s.now().Add(-s.window))
	if err == nil {
		jobsSubmitted.WithLabelValues(string(req.JobType), "true").Inc()
		s.logger.Info("Reusing existing job",
			zap.String("job_id", existing.ID),
			zap.String("job_type", string(req.JobType)),
			zap.String("status", string(existing.Status)))
		return existing, true, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, fmt.Errorf("look up job: %w", err)
	}

	input, err := json.Marshal(req.Input)
	if err != nil {
		return nil, false, fmt.Errorf("encode job input: %w", err)
	}

	job := &models.ProcessingJob{
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		JobType:        req.JobType,
		Status:         models.JobPending,
		InputData:      input,
		IdempotencyKey: key,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}

	payload := tasks.JobPayload{JobID: job.ID, JobType: string(job.JobType), Data: input}
	taskName, err := s.dispatcher.Enqueue(ctx, payload)
	if err != nil {
		if failErr := s.repo.Fail(ctx, job.ID, "failed to enqueue: "+err.Error()); failErr != nil {
			s.logger.Error("Failed to mark job failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		jobsFinished.WithLabelValues(string(job.JobType), string(models.JobFailed)).Inc()
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}

	job.TaskName = taskName
	if err := s.repo.SetTaskName(ctx, job.ID, taskName); err != nil {
		s.logger.Warn("Failed to store task name", zap.String("job_id", job.ID), zap.Error(err))
	}

	jobsSubmitted.WithLabelValues(string(req.JobType), strconv.FormatBool(false)).Inc()
	s.logger.Info("Job submitted",
		zap.String("job_id", job.ID),
		zap.String("job_type", string(job.JobType)),
		zap.String("task", taskName))
	return job, false, nil
}

// acquire waits up to one lock TTL for a concurrent identical submission to finish.
func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	deadline := s.now().Add(s.lockTTL)
	for {
		release, ok, err := s.locker.Acquire(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		if s.now().After(deadline) {
			return nil, ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}
