package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisDispatcher struct {
	rdb *redis.Client
	key string
}

func NewRedisDispatcher(rdb *redis.Client, key string) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb, key: key}
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, payload JobPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode task payload: %w", err)
	}
	if err := d.rdb.LPush(ctx, d.key, body).Err(); err != nil {
		return "", fmt.Errorf("push job %s: %w", payload.JobID, err)
	}
	return "redis-task-" + payload.JobID, nil
}

// Worker pops payloads pushed by RedisDispatcher.
type Worker struct {
	rdb     *redis.Client
	key     string
	handler Handler
	logger  *zap.Logger
	// PollTimeout bounds each BRPOP so cancellation is noticed.
	PollTimeout time.Duration
}

func NewWorker(rdb *redis.Client, key string, handler Handler, logger *zap.Logger) *Worker {
	return &Worker{rdb: rdb, key: key, handler: handler, logger: logger, PollTimeout: 5 * time.Second}
}

// Run consumes until ctx is cancelled. Handler errors are logged; the job row already
// records the failure.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started", zap.String("queue", w.key))
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("Worker stopped")
			return nil
		}

		res, err := w.rdb.BRPop(ctx, w.PollTimeout, w.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("Failed to pop job", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		// res is [key, value]
		var payload JobPayload
		if err := json.Unmarshal([]byte(res[1]), &payload); err != nil {
			w.logger.Error("Dropping malformed job payload", zap.Error(err))
			continue
		}
		if err := w.handler.Handle(ctx, payload); err != nil {
			w.logger.Warn("Job handler failed",
				zap.String("job_id", payload.JobID),
				zap.String("job_type", payload.JobType),
				zap.Error(err))
		}
	}
}
