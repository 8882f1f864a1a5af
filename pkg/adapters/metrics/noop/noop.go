package noop

import "time"

// Collector implements ports.MetricsCollector by discarding everything.
// This is for testing purposes only.
type Collector struct{}

// NewCollector creates a no-op metrics collector.
func NewCollector() *Collector { return &Collector{} }

func (*Collector) RecordSubmission(string) {}

func (*Collector) RecordNodeSubmitted(string) {}

func (*Collector) RecordSemaphoreAllocated() {}

func (*Collector) RecordCompletionLatency(time.Duration) {}

func (*Collector) SetActiveSubmissions(int) {}
