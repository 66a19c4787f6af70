package model

import "time"

// DiffRecord is one persisted comparison outcome between the legacy and
// the supabase result of a single logical operation. A record is written
// for every comparison attempt, including identical results, so that a
// quiet window is distinguishable from dual-write being off.
type DiffRecord struct {
	ID                    int64     `json:"id" gorm:"primaryKey"`
	APIEndpoint           string    `json:"api_endpoint" gorm:"size:128;index"`
	Operation             string    `json:"operation" gorm:"size:64"`
	Severity              string    `json:"severity" gorm:"size:16;index"`
	Diff                  string    `json:"diff" gorm:"type:text"`
	PrimaryResultStatus   string    `json:"primary_result_status" gorm:"size:16"`
	SecondaryResultStatus string    `json:"secondary_result_status" gorm:"size:16"`
	NeedsReview           bool      `json:"needs_review"`
	TraceID               string    `json:"trace_id" gorm:"size:64;index"`
	CreatedAt             time.Time `json:"created_at" gorm:"index"`
}

func (DiffRecord) TableName() string {
	return "dual_write_diffs"
}
