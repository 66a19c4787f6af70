package metrics

// DualWriteObserver receives orchestration signals.
type DualWriteObserver interface {
	RecordComparison(endpoint string)
	RecordDiff(endpoint, severity string)
	RecordDroppedComparison()
	ObserveBackendCall(backend string, seconds float64, failed bool)
}

// HubObserver receives diff stream fan-out signals.
type HubObserver interface {
	IncOnline()
	DecOnline()
	RecordPush()
}
