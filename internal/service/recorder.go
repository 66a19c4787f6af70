package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/marovole/HearthBulter/internal/buffer"
	"github.com/marovole/HearthBulter/internal/model"
	"github.com/marovole/HearthBulter/internal/repository"
	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/constraints"
	"github.com/marovole/HearthBulter/pkg/logger"

	"go.uber.org/zap"
)

// DiffRecorder persists comparison outcomes and feeds the live stream.
// Persistence is best-effort by contract: a failed insert is logged and
// dropped, never raised back toward the request path the record is about.
type DiffRecorder struct {
	repo   repository.DiffInterface
	hub    *Hub
	replay *buffer.ReplayBuffer
}

func NewDiffRecorder(repo repository.DiffInterface, hub *Hub, replay *buffer.ReplayBuffer) *DiffRecorder {
	return &DiffRecorder{
		repo:   repo,
		hub:    hub,
		replay: replay,
	}
}

func (r *DiffRecorder) Record(ctx context.Context, rec *model.DiffRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		logger.Error("diff record persist failed",
			zap.String("endpoint", rec.APIEndpoint),
			zap.String("severity", rec.Severity),
			zap.Error(err))
		return
	}

	ev := eventFromRecord(rec)
	if r.replay != nil {
		r.replay.Add(ev)
	}
	if r.hub != nil {
		// The stream is a best-effort feed too; drop rather than stall.
		select {
		case r.hub.Broadcast <- ev:
		default:
			logger.Warn("diff stream backlog full, event not broadcast", zap.Int64("id", ev.ID))
		}
	}
}

// GetCompensation replays events missed by a reconnecting stream client.
func (r *DiffRecorder) GetCompensation(lastID int64) ([]v1.DiffEvent, bool) {
	if r.replay == nil {
		return nil, false
	}
	return r.replay.GetSince(lastID)
}

func (r *DiffRecorder) List(ctx context.Context, q repository.DiffQuery) ([]model.DiffRecord, error) {
	return r.repo.List(ctx, q)
}

// Stats is the aggregate consumed by dashboards: diff counts by severity
// over the window, grouped by endpoint.
func (r *DiffRecorder) Stats(ctx context.Context, window time.Duration) ([]repository.SeverityCount, error) {
	return r.repo.CountBySeverity(ctx, time.Now().UTC().Add(-window))
}

// Cleanup purges records older than retentionDays. Without an explicit
// severity list only info records are eligible; warning and error survive
// regardless of age unless asked for by name.
func (r *DiffRecorder) Cleanup(ctx context.Context, retentionDays int, severities ...string) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if len(severities) == 0 {
		severities = []string{constraints.SeverityInfo}
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	deleted, err := r.repo.DeleteOlderThan(ctx, cutoff, severities)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logger.Info("diff records purged",
			zap.Int64("deleted", deleted),
			zap.Strings("severities", severities),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func eventFromRecord(rec *model.DiffRecord) v1.DiffEvent {
	var ops []v1.DiffOp
	if rec.Diff != "" {
		if err := json.Unmarshal([]byte(rec.Diff), &ops); err != nil {
			logger.Warn("stored diff payload unreadable", zap.Int64("id", rec.ID), zap.Error(err))
		}
	}
	return v1.DiffEvent{
		ID:                    rec.ID,
		APIEndpoint:           rec.APIEndpoint,
		Operation:             rec.Operation,
		Severity:              rec.Severity,
		Diff:                  ops,
		PrimaryResultStatus:   rec.PrimaryResultStatus,
		SecondaryResultStatus: rec.SecondaryResultStatus,
		NeedsReview:           rec.NeedsReview,
		TraceID:               rec.TraceID,
		CreatedAt:             rec.CreatedAt,
	}
}
