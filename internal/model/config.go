package model

import "time"

// DualWriteConfig is the single-row-per-key flag table. Value holds the
// JSON-encoded toggle mapping; UpdatedAt is stamped on every write.
type DualWriteConfig struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:128;uniqueIndex" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedBy string    `gorm:"size:64" json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DualWriteConfig) TableName() string {
	return "dual_write_config"
}
