package repository

import (
	"context"
	"time"

	"github.com/marovole/HearthBulter/internal/model"

	"gorm.io/gorm"
)

// DiffQuery filters a diff record listing. Zero fields are ignored.
type DiffQuery struct {
	Endpoint string
	Severity string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// SeverityCount is one row of the aggregate query consumed by dashboards.
type SeverityCount struct {
	APIEndpoint string `json:"api_endpoint"`
	Severity    string `json:"severity"`
	Count       int64  `json:"count"`
}

// DiffInterface defines the interface for diff record persistence
type DiffInterface interface {
	Create(ctx context.Context, rec *model.DiffRecord) error
	List(ctx context.Context, q DiffQuery) ([]model.DiffRecord, error)
	CountBySeverity(ctx context.Context, since time.Time) ([]SeverityCount, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, severities []string) (int64, error)
}

// DiffRecordRepository is the MySQL-backed append-only diff store.
type DiffRecordRepository struct {
	db *gorm.DB
}

func NewDiffRecordRepository(db *gorm.DB) *DiffRecordRepository {
	return &DiffRecordRepository{db: db}
}

func (r *DiffRecordRepository) Create(ctx context.Context, rec *model.DiffRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *DiffRecordRepository) List(ctx context.Context, q DiffQuery) ([]model.DiffRecord, error) {
	db := r.db.WithContext(ctx).Model(&model.DiffRecord{})

	if q.Endpoint != "" {
		db = db.Where("api_endpoint = ?", q.Endpoint)
	}
	if q.Severity != "" {
		db = db.Where("severity = ?", q.Severity)
	}
	if !q.Since.IsZero() {
		db = db.Where("created_at >= ?", q.Since)
	}
	if !q.Until.IsZero() {
		db = db.Where("created_at < ?", q.Until)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var recs []model.DiffRecord
	err := db.Order("id DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

func (r *DiffRecordRepository) CountBySeverity(ctx context.Context, since time.Time) ([]SeverityCount, error) {
	var counts []SeverityCount
	err := r.db.WithContext(ctx).Model(&model.DiffRecord{}).
		Select("api_endpoint, severity, count(*) as count").
		Where("created_at >= ?", since).
		Group("api_endpoint").Group("severity").
		Order("api_endpoint ASC").
		Scan(&counts).Error
	return counts, err
}

// DeleteOlderThan purges records of the given severities created before
// the cutoff and reports how many rows went away. Severities outside the
// list are never touched, whatever their age.
func (r *DiffRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, severities []string) (int64, error) {
	if len(severities) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("created_at < ? AND severity IN ?", cutoff, severities).
		Delete(&model.DiffRecord{})
	return res.RowsAffected, res.Error
}
