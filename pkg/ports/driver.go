package ports

import (
	"fmt"
	"time"
)

// CommandBuffer is an opaque handle to an already-recorded sequence of
// GPU commands. The core never inspects the recorded commands; it only
// needs the handle and the queue family the buffer was recorded for.
type CommandBuffer struct {
	Handle      uint64
	QueueFamily uint32
}

// Semaphore is a driver-scoped handle to a GPU-visible binary signal.
// The zero value means "no semaphore".
type Semaphore uint64

// Fence is a driver-scoped handle to a CPU-visible completion signal.
// The zero value means "no fence".
type Fence uint64

// Queue is a stable-identity handle to one device execution queue.
//
// A Queue is only obtained from Driver.RegisterQueue, exactly once per
// underlying queue. Identity (ID) is assigned at registration and is the
// key for submission serialization and cross-device validation; two
// value-equal descriptors of the same underlying queue never exist,
// because descriptors are not reconstructible by callers.
type Queue struct {
	id     uint64
	device uint64
	family uint32
	name   string
}

// NewQueue is intended for Driver implementations. Callers obtain queues
// from Driver.RegisterQueue.
func NewQueue(id, device uint64, family uint32, name string) *Queue {
	return &Queue{id: id, device: device, family: family, name: name}
}

// ID reports the process-unique identity of the queue.
func (q *Queue) ID() uint64 { return q.id }

// Device reports the identity of the logical device that owns the queue.
func (q *Queue) Device() uint64 { return q.device }

// Family reports the queue family index of the queue.
func (q *Queue) Family() uint32 { return q.family }

// Name reports the human-readable name given at registration.
func (q *Queue) Name() string {
	if q.name != "" {
		return q.name
	}
	return fmt.Sprintf("queue-%d", q.id)
}

// Driver abstracts the native GPU layer the engine submits to.
//
// Implementations:
//   - vulkan: real backend over vulkan-go
//   - memory: in-memory simulation for testing
//
// Queue registration is adapter-specific (each backend needs its own
// native handles); adapters expose a RegisterQueue that hands back the
// *Queue descriptor, created exactly once per underlying queue.
type Driver interface {
	// CreateSemaphore allocates a GPU-visible binary signal on device.
	CreateSemaphore(device uint64) (Semaphore, error)

	// DestroySemaphore releases a semaphore. The caller guarantees no
	// pending submission still references it.
	DestroySemaphore(sem Semaphore)

	// CreateFence allocates an unsignaled CPU-visible signal on device.
	CreateFence(device uint64) (Fence, error)

	// DestroyFence releases a fence.
	DestroyFence(fence Fence)

	// Submit issues one native submission on queue: buffers execute
	// after every semaphore in waits has signaled, then every semaphore
	// in signals is signaled, then fence (if non-zero) is signaled.
	// Wait points are conservative: the full prior execution must
	// finish before the buffers begin.
	Submit(queue *Queue, buffers []CommandBuffer, waits, signals []Semaphore, fence Fence) error

	// FenceStatus reports whether fence has signaled, without blocking.
	FenceStatus(fence Fence) (bool, error)

	// WaitFence blocks until fence signals or timeout elapses. Returns
	// true if the fence signaled, false on timeout.
	WaitFence(fence Fence, timeout time.Duration) (bool, error)
}

// NativeError carries the raw result code of a failed native call.
type NativeError struct {
	Code int32
}

func (e NativeError) Error() string {
	return fmt.Sprintf("native call failed with code %d", e.Code)
}
