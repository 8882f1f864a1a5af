// Package ports defines the interfaces between the scheduling core and
// its adapters.
//
// Interfaces:
//   - Driver: the native GPU layer (semaphores, fences, queue submission)
//   - MetricsCollector: metrics recorded by the engine
//
// Handle types (Queue, CommandBuffer, Semaphore, Fence) are owned here so
// the graph model and the adapters can share them without importing each
// other.
package ports
