package tasks

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// InlineDispatcher runs jobs in background goroutines of the API process.
type InlineDispatcher struct {
	mu      sync.RWMutex
	handler Handler
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewInlineDispatcher(logger *zap.Logger) *InlineDispatcher {
	return &InlineDispatcher{logger: logger}
}

func (d *InlineDispatcher) Bind(h Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func (d *InlineDispatcher) Enqueue(ctx context.Context, payload JobPayload) (string, error) {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()
	if h == nil {
		return "", errors.New("inline dispatcher has no handler bound")
	}

	// the request that submitted the job returns before the job finishes
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := h.Handle(runCtx, payload); err != nil {
			d.logger.Warn("Inline job failed", zap.String("job_id", payload.JobID), zap.Error(err))
		}
	}()
	return "inline-task-" + payload.JobID, nil
}

// Wait blocks until all started jobs return.
func (d *InlineDispatcher) Wait() { d.wg.Wait() }
