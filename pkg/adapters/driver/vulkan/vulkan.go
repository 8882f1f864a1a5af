//go:build cgo

package vulkan

import (
	"sync"
	"time"

	vk "github.com/vulkan-go/vulkan"
	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/ports"
)

// Driver implements ports.Driver over vulkan-go.
//
// Native handles never cross the port boundary: devices, queues,
// command buffers and primitives are held in registries keyed by the
// opaque handles the core works with. Wait points are conservative
// (PipelineStageAllCommandsBit); per-stage masks are a deferred
// optimization.
type Driver struct {
	logger *zap.Logger

	mu      sync.Mutex
	nextID  uint64
	devices map[uint64]vk.Device
	queues  map[uint64]vk.Queue
	buffers map[uint64]vk.CommandBuffer
	sems    map[ports.Semaphore]semEntry
	fences  map[ports.Fence]fenceEntry
}

type semEntry struct {
	device vk.Device
	handle vk.Semaphore
}

type fenceEntry struct {
	device vk.Device
	handle vk.Fence
}

// New creates a Vulkan driver. The caller owns instance and device
// setup; the driver only consumes already-created logical devices.
func New(logger *zap.Logger) *Driver {
	return &Driver{
		logger:  logger,
		devices: make(map[uint64]vk.Device),
		queues:  make(map[uint64]vk.Queue),
		buffers: make(map[uint64]vk.CommandBuffer),
		sems:    make(map[ports.Semaphore]semEntry),
		fences:  make(map[ports.Fence]fenceEntry),
	}
}

// RegisterDevice records a logical device and returns its identity.
func (d *Driver) RegisterDevice(device vk.Device) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.devices[d.nextID] = device
	return d.nextID
}

// RegisterQueue fetches device queue (family, index) and returns its
// stable descriptor. Must be called exactly once per underlying queue so
// that submission locking keys on queue identity, not on a value-equal
// reconstruction.
func (d *Driver) RegisterQueue(device uint64, family, index uint32, name string) *ports.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	var queue vk.Queue
	vk.GetDeviceQueue(d.devices[device], family, index, &queue)
	d.nextID++
	q := ports.NewQueue(d.nextID, device, family, name)
	d.queues[q.ID()] = queue
	return q
}

// RegisterCommandBuffer records an already-recorded native command
// buffer and returns the opaque handle the core consumes.
func (d *Driver) RegisterCommandBuffer(cb vk.CommandBuffer, family uint32) ports.CommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.buffers[d.nextID] = cb
	return ports.CommandBuffer{Handle: d.nextID, QueueFamily: family}
}

func (d *Driver) CreateSemaphore(device uint64) (ports.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev := d.devices[device]

	var sem vk.Semaphore
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	if res := vk.CreateSemaphore(dev, &info, nil, &sem); res != vk.Success {
		return 0, ports.NativeError{Code: int32(res)}
	}

	d.nextID++
	handle := ports.Semaphore(d.nextID)
	d.sems[handle] = semEntry{device: dev, handle: sem}
	return handle, nil
}

func (d *Driver) DestroySemaphore(sem ports.Semaphore) {
	d.mu.Lock()
	entry, ok := d.sems[sem]
	delete(d.sems, sem)
	d.mu.Unlock()
	if ok {
		vk.DestroySemaphore(entry.device, entry.handle, nil)
	}
}

func (d *Driver) CreateFence(device uint64) (ports.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev := d.devices[device]

	var fence vk.Fence
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if res := vk.CreateFence(dev, &info, nil, &fence); res != vk.Success {
		return 0, ports.NativeError{Code: int32(res)}
	}

	d.nextID++
	handle := ports.Fence(d.nextID)
	d.fences[handle] = fenceEntry{device: dev, handle: fence}
	return handle, nil
}

func (d *Driver) DestroyFence(fence ports.Fence) {
	d.mu.Lock()
	entry, ok := d.fences[fence]
	delete(d.fences, fence)
	d.mu.Unlock()
	if ok {
		vk.DestroyFence(entry.device, entry.handle, nil)
	}
}

func (d *Driver) Submit(queue *ports.Queue, buffers []ports.CommandBuffer, waits, signals []ports.Semaphore, fence ports.Fence) error {
	d.mu.Lock()
	nativeQueue, ok := d.queues[queue.ID()]
	if !ok {
		d.mu.Unlock()
		return ports.NativeError{Code: int32(vk.ErrorInitializationFailed)}
	}

	cmdBuffers := make([]vk.CommandBuffer, len(buffers))
	for i, buf := range buffers {
		cmdBuffers[i] = d.buffers[buf.Handle]
	}

	waitSems := make([]vk.Semaphore, len(waits))
	waitStages := make([]vk.PipelineStageFlags, len(waits))
	for i, sem := range waits {
		waitSems[i] = d.sems[sem].handle
		waitStages[i] = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}

	signalSems := make([]vk.Semaphore, len(signals))
	for i, sem := range signals {
		signalSems[i] = d.sems[sem].handle
	}

	nativeFence := vk.NullFence
	if fence != 0 {
		nativeFence = d.fences[fence].handle
	}
	d.mu.Unlock()

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSems)),
		PWaitSemaphores:      waitSems,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(cmdBuffers)),
		PCommandBuffers:      cmdBuffers,
		SignalSemaphoreCount: uint32(len(signalSems)),
		PSignalSemaphores:    signalSems,
	}
	if res := vk.QueueSubmit(nativeQueue, 1, []vk.SubmitInfo{info}, nativeFence); res != vk.Success {
		d.logger.Error("vkQueueSubmit failed",
			zap.String("queue", queue.Name()),
			zap.Int32("result", int32(res)))
		return ports.NativeError{Code: int32(res)}
	}
	return nil
}

func (d *Driver) FenceStatus(fence ports.Fence) (bool, error) {
	d.mu.Lock()
	entry, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return false, ports.NativeError{Code: int32(vk.ErrorInitializationFailed)}
	}
	switch res := vk.GetFenceStatus(entry.device, entry.handle); res {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, ports.NativeError{Code: int32(res)}
	}
}

func (d *Driver) WaitFence(fence ports.Fence, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	entry, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return false, ports.NativeError{Code: int32(vk.ErrorInitializationFailed)}
	}
	switch res := vk.WaitForFences(entry.device, 1, []vk.Fence{entry.handle}, vk.True, uint64(timeout.Nanoseconds())); res {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	default:
		return false, ports.NativeError{Code: int32(res)}
	}
}
