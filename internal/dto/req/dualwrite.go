package req

type SetConfigRequest struct {
	Value map[string]any `json:"value" binding:"required"`
}

type ToggleRequest struct {
	DualWrite *bool `json:"dual_write"`
	// Which backend answers callers: "legacy" or "supabase".
	Primary string `json:"primary" binding:"omitempty,oneof=legacy supabase"`
}

type ListDiffsRequest struct {
	Endpoint string `form:"endpoint"`
	Severity string `form:"severity" binding:"omitempty,oneof=info warning error"`
	Since    string `form:"since"`
	Until    string `form:"until"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

type StatsRequest struct {
	Hours int `form:"hours" binding:"omitempty,min=1,max=720"`
}

type CleanupRequest struct {
	RetentionDays int      `json:"retention_days" binding:"omitempty,min=1"`
	Severities    []string `json:"severities" binding:"omitempty,dive,oneof=info warning error"`
}
