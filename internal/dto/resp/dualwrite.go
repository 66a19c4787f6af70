package resp

import (
	"time"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
)

type ConfigResponse struct {
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	Flags     v1.Flags       `json:"flags"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type DiffItem struct {
	ID                    int64       `json:"id"`
	APIEndpoint           string      `json:"api_endpoint"`
	Operation             string      `json:"operation"`
	Severity              string      `json:"severity"`
	Diff                  []v1.DiffOp `json:"diff"`
	PrimaryResultStatus   string      `json:"primary_result_status"`
	SecondaryResultStatus string      `json:"secondary_result_status"`
	NeedsReview           bool        `json:"needs_review"`
	TraceID               string      `json:"trace_id"`
	CreatedAt             time.Time   `json:"created_at"`
}

type ListDiffsResponse struct {
	Data []DiffItem `json:"data"`
}

type StatsBucket struct {
	APIEndpoint string `json:"api_endpoint"`
	Severity    string `json:"severity"`
	Count       int64  `json:"count"`
}

type StatsResponse struct {
	WindowHours int           `json:"window_hours"`
	Buckets     []StatsBucket `json:"buckets"`
}

type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}
