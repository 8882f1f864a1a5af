package ports

import "time"

// MetricsCollector receives metrics from the engine.
//
// Implementations:
//   - prometheus: Prometheus counters/histograms
//   - noop: discards everything, for testing
type MetricsCollector interface {
	// RecordSubmission counts one Submit call by outcome
	// ("submitted", "rejected", "failed").
	RecordSubmission(status string)

	// RecordNodeSubmitted counts one node submitted to a queue.
	RecordNodeSubmitted(queue string)

	// RecordSemaphoreAllocated counts one cross-queue semaphore.
	RecordSemaphoreAllocated()

	// RecordCompletionLatency records the time from Submit returning to
	// the completion fence signaling.
	RecordCompletionLatency(d time.Duration)

	// SetActiveSubmissions sets the gauge of submissions in flight.
	SetActiveSubmissions(n int)
}
