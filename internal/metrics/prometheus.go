package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	comparisonCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearthbutler_dualwrite_comparisons_total",
		Help: "Total number of dual-write executions that produced a comparison",
	}, []string{"endpoint"})
	diffCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hearthbutler_dualwrite_diffs_total",
		Help: "Diff records by endpoint and severity",
	}, []string{"endpoint", "severity"})
	droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearthbutler_dualwrite_dropped_comparisons_total",
		Help: "Comparisons dropped because the task pool was full",
	})
	backendSummary = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "hearthbutler_backend_call_duration_seconds",
		Help: "Duration of backend calls",
	}, []string{"backend", "failed"})
	onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hearthbutler_stream_clients",
		Help: "Number of connected diff stream clients",
	})
	pushCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearthbutler_stream_push_total",
		Help: "Total number of diff events pushed to stream clients",
	})
)

type prometheusObserver struct{}

// NewPrometheusObserver implements both observer interfaces over the
// process-wide registry.
func NewPrometheusObserver() *prometheusObserver {
	return &prometheusObserver{}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) RecordComparison(endpoint string) {
	comparisonCounter.WithLabelValues(endpoint).Inc()
}

func (p *prometheusObserver) RecordDiff(endpoint, severity string) {
	diffCounter.WithLabelValues(endpoint, severity).Inc()
}

func (p *prometheusObserver) RecordDroppedComparison() {
	droppedCounter.Inc()
}

func (p *prometheusObserver) ObserveBackendCall(backend string, seconds float64, failed bool) {
	backendSummary.WithLabelValues(backend, strconv.FormatBool(failed)).Observe(seconds)
}

func (p *prometheusObserver) IncOnline() {
	onlineGauge.Inc()
}

func (p *prometheusObserver) DecOnline() {
	onlineGauge.Dec()
}

func (p *prometheusObserver) RecordPush() {
	pushCounter.Inc()
}
