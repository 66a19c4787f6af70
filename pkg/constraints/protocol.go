package constraints

// Severity of a recorded diff.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Outcome of a single backend call, independent of value comparison.
const (
	StatusFulfilled = "fulfilled"
	StatusRejected  = "rejected"
)

// Backend names. Legacy is the store being migrated away from,
// Supabase the one being migrated to.
const (
	BackendLegacy   = "legacy"
	BackendSupabase = "supabase"
)

// Diff op vocabulary, a minimal json-patch subset.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
)

// Flag keys inside the dual-write config value.
const (
	FlagEnableDualWrite       = "enableDualWrite"
	FlagEnableSupabasePrimary = "enableSupabasePrimary"
)

// DualWriteConfigKey is the single config row governing dual-write.
const DualWriteConfigKey = "dual_write_feature_flags"
