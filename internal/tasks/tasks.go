// Package tasks hands queued jobs to whatever runs them: Cloud Tasks in production, a
// Redis list consumed by the worker command, or a goroutine in development.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/config"
)

// JobPayload is the body of every task.
type JobPayload struct {
	JobID   string          `json:"jobId"`
	JobType string          `json:"jobType"`
	Data    json.RawMessage `json:"data"`
}

func NewPayload(jobID, jobType string, data any) (JobPayload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return JobPayload{}, fmt.Errorf("encode task data: %w", err)
	}
	return JobPayload{JobID: jobID, JobType: jobType, Data: raw}, nil
}

// Handler runs a delivered task.
type Handler interface {
	Handle(ctx context.Context, payload JobPayload) error
}

type HandlerFunc func(ctx context.Context, payload JobPayload) error

func (f HandlerFunc) Handle(ctx context.Context, payload JobPayload) error { return f(ctx, payload) }

// Dispatcher enqueues a payload and returns the task name.
type Dispatcher interface {
	Enqueue(ctx context.Context, payload JobPayload) (string, error)
}

// New builds the dispatcher selected by tasks.backend. Backends that execute in-process
// need a handler bound with Bind before the first Enqueue.
func New(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (Dispatcher, error) {
	switch cfg.Tasks.Backend {
	case "cloudtasks":
		return NewCloudTasksDispatcher(ctx, cfg.Tasks, cfg.ServiceURL, cfg.Auth.InternalToken, logger)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis task backend needs a redis client")
		}
		return NewRedisDispatcher(rdb, cfg.Tasks.RedisKey), nil
	case "inline", "":
		return NewInlineDispatcher(logger), nil
	default:
		return nil, fmt.Errorf("unsupported task backend: %s", cfg.Tasks.Backend)
	}
}

// JobEndpoint is the internal route Cloud Tasks posts a job to.
func JobEndpoint(jobType string) string {
	return "/internal/jobs/" + jobType
}
