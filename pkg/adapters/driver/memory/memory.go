package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/ports"
)

// Native result codes reported by the simulated device.
const (
	codeDeviceLost    int32 = -4
	codeUnknownHandle int32 = -13
)

// Driver implements ports.Driver with an in-memory device simulation.
// This is for testing purposes only.
//
// Each registered queue runs a goroutine consuming its submissions in
// FIFO order, which models the ordering guarantee of a real queue.
// Semaphores and fences are channels closed on signal. Command buffers
// carry an optional execute hook so tests can observe when work runs.
//
// The driver counts native calls (submissions and primitive
// allocations), so tests can assert that structural validation failures
// happen before any native call.
type Driver struct {
	logger *zap.Logger

	mu      sync.Mutex
	nextID  uint64
	sems    map[ports.Semaphore]chan struct{}
	fences  map[ports.Fence]chan struct{}
	queues  map[uint64]*queueState
	buffers map[uint64]func()
	failure error
	closed  bool

	wg sync.WaitGroup

	submitCalls atomic.Int64
	semCreates  atomic.Int64
}

type queueState struct {
	queue *ports.Queue
	jobs  chan job
}

type job struct {
	run     []func()
	waits   []chan struct{}
	signals []chan struct{}
	fence   chan struct{}
}

// New creates an in-memory driver.
func New(logger *zap.Logger) *Driver {
	return &Driver{
		logger:  logger,
		sems:    make(map[ports.Semaphore]chan struct{}),
		fences:  make(map[ports.Fence]chan struct{}),
		queues:  make(map[uint64]*queueState),
		buffers: make(map[uint64]func()),
	}
}

// NewCommandBuffer records a command buffer whose execution runs the
// optional hook. The returned handle is opaque to the core.
func (d *Driver) NewCommandBuffer(family uint32, run func()) ports.CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.buffers[d.nextID] = run
	return ports.CommandBuffer{Handle: d.nextID, QueueFamily: family}
}

// RegisterQueue creates the stable descriptor for one simulated queue
// and starts its execution goroutine.
func (d *Driver) RegisterQueue(device uint64, family uint32, name string) *ports.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	q := ports.NewQueue(d.nextID, device, family, name)
	qs := &queueState{queue: q, jobs: make(chan job, 1024)}
	d.queues[q.ID()] = qs
	d.wg.Add(1)
	go d.runQueue(qs)
	return q
}

// runQueue executes submissions in FIFO order: wait, run, signal.
func (d *Driver) runQueue(qs *queueState) {
	defer d.wg.Done()
	for j := range qs.jobs {
		for _, wait := range j.waits {
			<-wait
		}
		for _, run := range j.run {
			if run != nil {
				run()
			}
		}
		for _, signal := range j.signals {
			close(signal)
		}
		if j.fence != nil {
			close(j.fence)
		}
	}
}

func (d *Driver) CreateSemaphore(device uint64) (ports.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	sem := ports.Semaphore(d.nextID)
	d.sems[sem] = make(chan struct{})
	d.semCreates.Add(1)
	return sem, nil
}

func (d *Driver) DestroySemaphore(sem ports.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sems, sem)
}

func (d *Driver) CreateFence(device uint64) (ports.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	fence := ports.Fence(d.nextID)
	d.fences[fence] = make(chan struct{})
	return fence, nil
}

func (d *Driver) DestroyFence(fence ports.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, fence)
}

// Submit enqueues one submission on the queue's FIFO. Handles are
// resolved to their channels here, so destroying a primitive later never
// disturbs work already in flight.
func (d *Driver) Submit(queue *ports.Queue, buffers []ports.CommandBuffer, waits, signals []ports.Semaphore, fence ports.Fence) error {
	d.submitCalls.Add(1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ports.NativeError{Code: codeDeviceLost}
	}
	if err := d.failure; err != nil {
		d.failure = nil
		d.mu.Unlock()
		return err
	}
	qs, ok := d.queues[queue.ID()]
	if !ok {
		d.mu.Unlock()
		return ports.NativeError{Code: codeUnknownHandle}
	}

	j := job{}
	for _, buf := range buffers {
		run, ok := d.buffers[buf.Handle]
		if !ok {
			d.mu.Unlock()
			return ports.NativeError{Code: codeUnknownHandle}
		}
		j.run = append(j.run, run)
	}
	for _, sem := range waits {
		ch, ok := d.sems[sem]
		if !ok {
			d.mu.Unlock()
			return ports.NativeError{Code: codeUnknownHandle}
		}
		j.waits = append(j.waits, ch)
	}
	for _, sem := range signals {
		ch, ok := d.sems[sem]
		if !ok {
			d.mu.Unlock()
			return ports.NativeError{Code: codeUnknownHandle}
		}
		j.signals = append(j.signals, ch)
	}
	if fence != 0 {
		ch, ok := d.fences[fence]
		if !ok {
			d.mu.Unlock()
			return ports.NativeError{Code: codeUnknownHandle}
		}
		j.fence = ch
	}
	d.mu.Unlock()

	qs.jobs <- j
	return nil
}

func (d *Driver) FenceStatus(fence ports.Fence) (bool, error) {
	d.mu.Lock()
	ch, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return false, ports.NativeError{Code: codeUnknownHandle}
	}
	select {
	case <-ch:
		return true, nil
	default:
		return false, nil
	}
}

func (d *Driver) WaitFence(fence ports.Fence, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	ch, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return false, ports.NativeError{Code: codeUnknownHandle}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

// FailNextSubmit makes the next Submit call return a device-lost error.
func (d *Driver) FailNextSubmit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failure = ports.NativeError{Code: codeDeviceLost}
}

// SubmitCount reports how many native submissions were issued.
func (d *Driver) SubmitCount() int { return int(d.submitCalls.Load()) }

// SemaphoreCount reports how many semaphores were ever allocated.
func (d *Driver) SemaphoreCount() int { return int(d.semCreates.Load()) }

// LiveSemaphores reports semaphores allocated but not yet destroyed.
func (d *Driver) LiveSemaphores() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sems)
}

// LiveFences reports fences allocated but not yet destroyed.
func (d *Driver) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fences)
}

// Close stops the queue goroutines after draining their pending work.
// Submissions after Close are rejected as device-lost.
func (d *Driver) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, qs := range d.queues {
		close(qs.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
	if d.logger != nil {
		d.logger.Debug("memory driver closed")
	}
}
