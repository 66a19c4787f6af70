package v1

import (
	"time"

	"github.com/marovole/HearthBulter/pkg/constraints"
)

// DiffOp describes one structural difference between the legacy and the
// supabase result, as the supabase value relative to the legacy one.
// Remove ops carry no value; no "from" value is tracked.
type DiffOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// FlagConfig is one persisted configuration row.
type FlagConfig struct {
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Flags is the typed view of the dual-write toggles inside a config value.
type Flags struct {
	EnableDualWrite       bool `json:"enableDualWrite"`
	EnableSupabasePrimary bool `json:"enableSupabasePrimary"`
}

// FlagsFromValue extracts the dual-write toggles. Missing or non-boolean
// entries read as false, so a corrupt row degrades to single-write-legacy.
func FlagsFromValue(value map[string]any) Flags {
	var f Flags
	if v, ok := value[constraints.FlagEnableDualWrite].(bool); ok {
		f.EnableDualWrite = v
	}
	if v, ok := value[constraints.FlagEnableSupabasePrimary].(bool); ok {
		f.EnableSupabasePrimary = v
	}
	return f
}

// Value renders the typed flags back into a config value mapping.
func (f Flags) Value() map[string]any {
	return map[string]any{
		constraints.FlagEnableDualWrite:       f.EnableDualWrite,
		constraints.FlagEnableSupabasePrimary: f.EnableSupabasePrimary,
	}
}

// DiffEvent is the streamed form of a persisted diff record. ID is the
// record id and grows monotonically, which the replay buffer relies on.
type DiffEvent struct {
	ID                    int64     `json:"id"`
	APIEndpoint           string    `json:"api_endpoint"`
	Operation             string    `json:"operation"`
	Severity              string    `json:"severity"`
	Diff                  []DiffOp  `json:"diff"`
	PrimaryResultStatus   string    `json:"primary_result_status"`
	SecondaryResultStatus string    `json:"secondary_result_status"`
	NeedsReview           bool      `json:"needs_review"`
	TraceID               string    `json:"trace_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}
