package feedback

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/harishm17/study-buddy-sub001/internal/storage"
)

const defaultPrefix = "exports"

// Exporter periodically writes positive feedback to the object store as JSONL.
type Exporter struct {
	manager  *Manager
	store    storage.ObjectStore
	schedule string
	prefix   string
	cron     *cron.Cron
	logger   *zap.Logger
	now      func() time.Time
}

// NewExporter writes under prefix ("exports" when empty). An empty schedule disables
// the cron; RunOnce still works.
func NewExporter(manager *Manager, store storage.ObjectStore, schedule, prefix string, logger *zap.Logger) *Exporter {
	if prefix = strings.Trim(prefix, "/"); prefix == "" {
		prefix = defaultPrefix
	}
	return &Exporter{
		manager:  manager,
		store:    store,
		schedule: schedule,
		prefix:   prefix,
		cron:     cron.New(),
		logger:   logger,
		now:      time.Now,
	}
}

func (e *Exporter) Start() error {
	if e.schedule == "" {
		e.logger.Info("Feedback export is disabled")
		return nil
	}
	_, err := e.cron.AddFunc(e.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := e.RunOnce(ctx); err != nil {
			e.logger.Error("Feedback export failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule feedback export: %w", err)
	}
	e.cron.Start()
	e.logger.Info("Feedback exporter started", zap.String("schedule", e.schedule))
	return nil
}

func (e *Exporter) Stop() {
	<-e.cron.Stop().Done()
}

// RunOnce exports every unexported record and marks all of them exported, negative ones
// included. It returns the object key written, or "" when nothing positive was found.
func (e *Exporter) RunOnce(ctx context.Context) (string, error) {
	pending, err := e.manager.Unexported(ctx, 0)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		e.logger.Info("No unexported feedback found")
		return "", nil
	}

	data, n, err := ExportJSONL(pending)
	if err != nil {
		return "", err
	}

	key := ""
	if n > 0 {
		key = e.prefix + "/feedback_" + e.now().UTC().Format("20060102_150405") + ".jsonl"
		if err := e.store.Put(ctx, key, bytes.NewReader(data), "application/jsonl"); err != nil {
			return "", fmt.Errorf("failed to write export: %w", err)
		}
		e.logger.Info("Exported feedback", zap.String("key", key), zap.Int("examples", n), zap.Int("records", len(pending)))
	}

	ids := make([]uint, len(pending))
	for i, fb := range pending {
		ids[i] = fb.ID
	}
	if err := e.manager.MarkExported(ctx, ids); err != nil {
		return key, err
	}
	return key, nil
}
