// Package metrics provides MetricsCollector implementations.
//
// Implementations:
//   - prometheus: Prometheus counters, histograms and gauges
//   - noop: discards everything, for testing
package metrics
