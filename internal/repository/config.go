package repository

import (
	"context"

	"github.com/marovole/HearthBulter/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigInterface defines the interface for dual-write config persistence
type ConfigInterface interface {
	GetByKey(ctx context.Context, key string) (*model.DualWriteConfig, error)
	Upsert(ctx context.Context, cfg *model.DualWriteConfig) error
	PingContext(ctx context.Context) error
}

// DualWriteConfigRepository implementation of ConfigInterface for MySQL
type DualWriteConfigRepository struct {
	db *gorm.DB
}

func NewDualWriteConfigRepository(db *gorm.DB) *DualWriteConfigRepository {
	return &DualWriteConfigRepository{db: db}
}

// GetByKey retrieves the config row by its key, nil when absent.
func (r *DualWriteConfigRepository) GetByKey(ctx context.Context, key string) (*model.DualWriteConfig, error) {
	var cfg model.DualWriteConfig
	if err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&cfg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// Upsert replaces the value for the key in one statement, so concurrent
// writers serialize at the database and the last commit wins.
func (r *DualWriteConfigRepository) Upsert(ctx context.Context, cfg *model.DualWriteConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(cfg).Error
}

func (r *DualWriteConfigRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
