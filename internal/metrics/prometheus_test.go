package metrics

import (
	"testing"
)

func TestPrometheusObserver(t *testing.T) {
	obs := NewPrometheusObserver()

	// Just call methods to ensure no panic
	obs.RecordComparison("budget.recordSpending")
	obs.RecordDiff("budget.recordSpending", "warning")
	obs.RecordDroppedComparison()
	obs.ObserveBackendCall("legacy", 0.01, false)
	obs.IncOnline()
	obs.DecOnline()
	obs.RecordPush()
}
