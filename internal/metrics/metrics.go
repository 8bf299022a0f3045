package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of auth operations
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder counts auth operations
// Nil recorder is valid and records nothing
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	gatherer   prometheus.Gatherer
}

// NewRecorder registers auth metrics in a new registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_auth_operations_total",
			Help: "Total number of auth operations by outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidtube_auth_operation_duration_seconds",
			Help:    "Histogram of auth operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		gatherer: reg,
	}
}

func (r *Recorder) AuthOperation(op string, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, outcome).Inc()
	r.duration.WithLabelValues(op).Observe(took.Seconds())
}

// Handler exposes recorded metrics in prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
