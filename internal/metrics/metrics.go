package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for analyses and backend materialization calls.
type Metrics struct {
	// Analyses by outcome: "ok", "partial", "failed", "invalid", "empty"
	AnalysisOutcome *prometheus.CounterVec

	// Backend materialization calls by request kind and result
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec
	BackendRetries  *prometheus.CounterVec

	// Period composites found to have no valid pixel
	EmptyComposites *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysisOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "snowdiff_analyses_total",
			Help: "Snow difference analyses by outcome",
		}, []string{"outcome"}),

		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "snowdiff_backend_requests_total",
			Help: "Materialization requests sent to the evaluation backend",
		}, []string{"request", "result"}),

		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snowdiff_backend_request_duration_seconds",
			Help:    "Duration of materialization requests including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"request"}),

		BackendRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "snowdiff_backend_retries_total",
			Help: "Retries of transient materialization failures",
		}, []string{"request"}),

		EmptyComposites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "snowdiff_empty_composites_total",
			Help: "Composites without any valid pixel inside the region",
		}, []string{"layer"}),
	}
}

// IncrementOutcome records the outcome of one analysis.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.AnalysisOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveBackendRequest records one materialization call.
func (m *Metrics) ObserveBackendRequest(request string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.BackendRequests.WithLabelValues(request, result).Inc()
	m.BackendLatency.WithLabelValues(request).Observe(d.Seconds())
}

// IncrementRetry records a retried materialization call.
func (m *Metrics) IncrementRetry(request string) {
	if m != nil {
		m.BackendRetries.WithLabelValues(request).Inc()
	}
}

// IncrementEmptyComposite records a composite without qualifying imagery.
func (m *Metrics) IncrementEmptyComposite(layer string) {
	if m != nil {
		m.EmptyComposites.WithLabelValues(layer).Inc()
	}
}
