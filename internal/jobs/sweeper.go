package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/repositories"
)

const staleJobMessage = "job timed out"

// StaleJobSweeper fails jobs whose worker died without reporting back.
type StaleJobSweeper struct {
	repo       *repositories.JobRepository
	staleAfter time.Duration
	schedule   string
	cron       *cron.Cron
	logger     *zap.Logger
	now        func() time.Time
}

func NewStaleJobSweeper(repo *repositories.JobRepository, staleAfter time.Duration, schedule string, logger *zap.Logger) *StaleJobSweeper {
	return &StaleJobSweeper{
		repo:       repo,
		staleAfter: staleAfter,
		schedule:   schedule,
		cron:       cron.New(),
		logger:     logger,
		now:        time.Now,
	}
}

// Start begins the scheduled sweep
func (s *StaleJobSweeper) Start() error {
	s.logger.Info("Starting stale job sweeper", zap.String("schedule", s.schedule), zap.Duration("stale_after", s.staleAfter))

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Stale job sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stale job sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *StaleJobSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Stale job sweeper stopped")
}

// RunOnce fails every pending or processing job idle for longer than staleAfter.
func (s *StaleJobSweeper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.staleAfter)
	n, err := s.repo.SweepStale(ctx, cutoff, staleJobMessage)
	if err != nil {
		return 0, fmt.Errorf("sweep stale jobs: %w", err)
	}
	if n > 0 {
		jobsSwept.Add(float64(n))
		s.logger.Warn("Failed stale jobs", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
