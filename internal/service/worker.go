package service

import (
	"context"
	"time"

	"github.com/marovole/HearthBulter/pkg/logger"

	"go.uber.org/zap"
)

// RetentionWorker runs the severity-scoped purge on a schedule.
type RetentionWorker struct {
	recorder      *DiffRecorder
	interval      time.Duration
	retentionDays int
}

func NewRetentionWorker(recorder *DiffRecorder, interval time.Duration, retentionDays int) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionWorker{
		recorder:      recorder,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	logger.Info("retention worker started",
		zap.Duration("interval", w.interval),
		zap.Int("retention_days", w.retentionDays))

	for {
		select {
		case <-ctx.Done():
			logger.Info("retention worker stopped")
			return
		case <-ticker.C:
			if _, err := w.recorder.Cleanup(ctx, w.retentionDays); err != nil {
				logger.Error("retention cleanup failed", zap.Error(err))
			}
		}
	}
}
