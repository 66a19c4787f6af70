package service

import (
	"context"
	"testing"
	"time"

	"github.com/marovole/HearthBulter/internal/buffer"
	"github.com/marovole/HearthBulter/internal/model"
	"github.com/marovole/HearthBulter/pkg/constraints"
)

func seedRecords(t *testing.T, repo *memoryDiffRepo, severity string, n int, age time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &model.DiffRecord{
			APIEndpoint:           "budget.recordSpending",
			Operation:             "create",
			Severity:              severity,
			Diff:                  "[]",
			PrimaryResultStatus:   constraints.StatusFulfilled,
			SecondaryResultStatus: constraints.StatusFulfilled,
			CreatedAt:             time.Now().UTC().Add(-age),
		}
		if err := repo.Create(context.Background(), rec); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestCleanup_PurgesOnlyRequestedSeverities(t *testing.T) {
	repo := &memoryDiffRepo{}
	rec := NewDiffRecorder(repo, nil, nil)

	old := 45 * 24 * time.Hour
	seedRecords(t, repo, constraints.SeverityInfo, 5, old)
	seedRecords(t, repo, constraints.SeverityWarning, 3, old)
	seedRecords(t, repo, constraints.SeverityError, 2, old)
	seedRecords(t, repo, constraints.SeverityInfo, 4, time.Hour)

	deleted, err := rec.Cleanup(context.Background(), 30)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("expected 5 aged info records deleted, got %d", deleted)
	}

	remaining := repo.all()
	if len(remaining) != 9 {
		t.Fatalf("expected 9 surviving records, got %d", len(remaining))
	}
	for _, r := range remaining {
		aged := r.CreatedAt.Before(time.Now().UTC().AddDate(0, 0, -30))
		if aged && r.Severity == constraints.SeverityInfo {
			t.Errorf("aged info record %d survived cleanup", r.ID)
		}
	}
}

func TestCleanup_ExplicitSeverities(t *testing.T) {
	repo := &memoryDiffRepo{}
	rec := NewDiffRecorder(repo, nil, nil)

	old := 45 * 24 * time.Hour
	seedRecords(t, repo, constraints.SeverityInfo, 2, old)
	seedRecords(t, repo, constraints.SeverityWarning, 3, old)
	seedRecords(t, repo, constraints.SeverityError, 1, old)

	deleted, err := rec.Cleanup(context.Background(), 30,
		constraints.SeverityInfo, constraints.SeverityWarning)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("expected 5 deleted, got %d", deleted)
	}
	for _, r := range repo.all() {
		if r.Severity != constraints.SeverityError {
			t.Errorf("record %d with severity %s should be gone", r.ID, r.Severity)
		}
	}
}

func TestRecord_PersistFailureIsSwallowed(t *testing.T) {
	repo := &memoryDiffRepo{failCreate: true}
	replay := buffer.NewReplayBuffer(8)
	rec := NewDiffRecorder(repo, nil, replay)

	rec.Record(context.Background(), &model.DiffRecord{
		APIEndpoint: "budget.recordSpending",
		Severity:    constraints.SeverityInfo,
		Diff:        "[]",
	})

	// Failed persists never reach the replay buffer either.
	if events, _ := rec.GetCompensation(0); len(events) != 0 {
		t.Errorf("failed record must not be replayable, got %d events", len(events))
	}
}

func TestRecord_FeedsReplayBuffer(t *testing.T) {
	repo := &memoryDiffRepo{}
	replay := buffer.NewReplayBuffer(8)
	rec := NewDiffRecorder(repo, nil, replay)

	for i := 0; i < 3; i++ {
		rec.Record(context.Background(), &model.DiffRecord{
			APIEndpoint: "budget.recordSpending",
			Severity:    constraints.SeverityWarning,
			Diff:        `[{"op":"replace","path":"/note","value":"x"}]`,
		})
	}

	events, ok := rec.GetCompensation(1)
	if !ok {
		t.Fatal("expected compensation from replay buffer")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events after id 1, got %d", len(events))
	}
	if events[0].ID != 2 || events[1].ID != 3 {
		t.Errorf("unexpected event ids: %d, %d", events[0].ID, events[1].ID)
	}
	if len(events[0].Diff) != 1 || events[0].Diff[0].Path != "/note" {
		t.Errorf("diff payload not decoded onto event: %+v", events[0].Diff)
	}
}

func TestStats_WindowBoundsCounts(t *testing.T) {
	repo := &memoryDiffRepo{}
	rec := NewDiffRecorder(repo, nil, nil)

	seedRecords(t, repo, constraints.SeverityError, 2, time.Hour)
	seedRecords(t, repo, constraints.SeverityInfo, 3, 48*time.Hour)

	counts, err := rec.Stats(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("expected a single bucket inside the window, got %+v", counts)
	}
	if counts[0].Severity != constraints.SeverityError || counts[0].Count != 2 {
		t.Errorf("unexpected bucket: %+v", counts[0])
	}
}
