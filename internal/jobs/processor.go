package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/repositories"
	"github.com/harishm17/study-buddy-sub001/internal/tasks"
)

// Progress reports percentage completion of a running job.
type Progress func(percent int)

// StepFunc does the work of one job type and returns its result_data.
type StepFunc func(ctx context.Context, job *models.ProcessingJob, data json.RawMessage, progress Progress) (any, error)

// Processor drives jobs through processing to a terminal status.
type Processor struct {
	repo   *repositories.JobRepository
	steps  map[models.JobType]StepFunc
	logger *zap.Logger
}

func NewProcessor(repo *repositories.JobRepository, logger *zap.Logger) *Processor {
	return &Processor{repo: repo, steps: make(map[models.JobType]StepFunc), logger: logger}
}

func (p *Processor) Register(jobType models.JobType, step StepFunc) {
	p.steps[jobType] = step
}

// Handle implements tasks.Handler. A job that already reached a terminal status is
// left alone, so redelivered tasks are harmless.
func (p *Processor) Handle(ctx context.Context, payload tasks.JobPayload) error {
	job, err := p.repo.Get(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", payload.JobID, err)
	}
	if job.Terminal() {
		p.logger.Info("Skipping finished job", zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
		return nil
	}

	log := p.logger.With(zap.String("job_id", job.ID), zap.String("job_type", string(job.JobType)))

	step, ok := p.steps[job.JobType]
	if !ok {
		err := fmt.Errorf("no handler for job type %q", job.JobType)
		p.fail(ctx, job, err, log)
		return err
	}

	if err := p.repo.MarkProcessing(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	log.Info("Starting job")

	data := payload.Data
	if len(data) == 0 {
		data = json.RawMessage(job.InputData)
	}

	progress := func(percent int) {
		if err := p.repo.UpdateProgress(ctx, job.ID, percent); err != nil {
			log.Warn("Failed to update progress", zap.Error(err))
		}
	}

	result, err := p.run(ctx, step, job, data, progress)
	if err != nil {
		p.fail(ctx, job, err, log)
		return err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		p.fail(ctx, job, fmt.Errorf("encode result: %w", err), log)
		return err
	}
	if err := p.repo.Complete(ctx, job.ID, datatypes.JSON(encoded)); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// the sweeper got there first; its verdict stands
			log.Warn("Job already finished, dropping result")
			return nil
		}
		return fmt.Errorf("complete job: %w", err)
	}
	jobsFinished.WithLabelValues(string(job.JobType), string(models.JobCompleted)).Inc()
	log.Info("Completed job")
	return nil
}

func (p *Processor) run(ctx context.Context, step StepFunc, job *models.ProcessingJob, data json.RawMessage, progress Progress) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return step(ctx, job, data, progress)
}

func (p *Processor) fail(ctx context.Context, job *models.ProcessingJob, cause error, log *zap.Logger) {
	log.Error("Job failed", zap.Error(cause))
	// the request context may be the reason we failed
	if err := p.repo.Fail(context.WithoutCancel(ctx), job.ID, cause.Error()); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			log.Warn("Job already finished, failure not recorded")
			return
		}
		log.Error("Failed to record job failure", zap.Error(err))
	}
	jobsFinished.WithLabelValues(string(job.JobType), string(models.JobFailed)).Inc()
}

// decodeInput unmarshals job data, rejecting an empty body.
func decodeInput(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errors.New("job has no input data")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid job input: %w", err)
	}
	return nil
}
