package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	submissions         *prometheus.CounterVec
	nodesSubmitted      *prometheus.CounterVec
	semaphoresAllocated prometheus.Counter
	completionLatency   prometheus.Histogram
	activeSubmissions   prometheus.Gauge
}

// NewCollector creates a collector registered on the default registry.
func NewCollector() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer))
}

// NewCollectorWith creates a collector registered on reg.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	return newCollector(promauto.With(reg))
}

func newCollector(factory promauto.Factory) *Collector {
	return &Collector{
		submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpuflow_submissions_total",
				Help: "Total number of graph submissions by outcome",
			},
			[]string{"status"},
		),
		nodesSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpuflow_nodes_submitted_total",
				Help: "Total number of nodes submitted to queues",
			},
			[]string{"queue"},
		),
		semaphoresAllocated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gpuflow_semaphores_allocated_total",
				Help: "Total number of cross-queue semaphores allocated",
			},
		),
		completionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gpuflow_completion_latency_seconds",
				Help:    "Time from submission to completion fence signal",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		activeSubmissions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gpuflow_active_submissions",
				Help: "Number of submissions whose completion fence has not signaled",
			},
		),
	}
}

// RecordSubmission counts one Submit call by outcome
func (c *Collector) RecordSubmission(status string) {
	c.submissions.WithLabelValues(status).Inc()
}

// RecordNodeSubmitted counts one node submitted to a queue
func (c *Collector) RecordNodeSubmitted(queue string) {
	c.nodesSubmitted.WithLabelValues(queue).Inc()
}

// RecordSemaphoreAllocated counts one cross-queue semaphore
func (c *Collector) RecordSemaphoreAllocated() {
	c.semaphoresAllocated.Inc()
}

// RecordCompletionLatency records submit-to-fence-signal latency
func (c *Collector) RecordCompletionLatency(d time.Duration) {
	c.completionLatency.Observe(d.Seconds())
}

// SetActiveSubmissions sets the in-flight submissions gauge
func (c *Collector) SetActiveSubmissions(n int) {
	c.activeSubmissions.Set(float64(n))
}
