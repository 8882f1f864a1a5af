package memory

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/ports"
)

func TestQueuePreservesSubmissionOrder(t *testing.T) {
	drv := New(zap.NewNop())
	q := drv.RegisterQueue(1, 0, "q1")

	var mu sync.Mutex
	var ran []int
	buf := func(i int) ports.CommandBuffer {
		return drv.NewCommandBuffer(0, func() {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		})
	}

	fence, err := drv.CreateFence(1)
	require.NoError(t, err)

	require.NoError(t, drv.Submit(q, []ports.CommandBuffer{buf(1)}, nil, nil, 0))
	require.NoError(t, drv.Submit(q, []ports.CommandBuffer{buf(2)}, nil, nil, 0))
	require.NoError(t, drv.Submit(q, []ports.CommandBuffer{buf(3)}, nil, nil, fence))

	signaled, err := drv.WaitFence(fence, 2*time.Second)
	require.NoError(t, err)
	require.True(t, signaled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, ran)
}

func TestSemaphoreOrdersAcrossQueues(t *testing.T) {
	drv := New(zap.NewNop())
	q1 := drv.RegisterQueue(1, 0, "q1")
	q2 := drv.RegisterQueue(1, 1, "q2")

	sem, err := drv.CreateSemaphore(1)
	require.NoError(t, err)
	fence, err := drv.CreateFence(1)
	require.NoError(t, err)

	var producerDone, violation atomic.Bool
	producer := drv.NewCommandBuffer(0, func() {
		time.Sleep(20 * time.Millisecond)
		producerDone.Store(true)
	})
	consumer := drv.NewCommandBuffer(1, func() {
		if !producerDone.Load() {
			violation.Store(true)
		}
	})

	// Consumer first: it must block on the semaphore regardless of
	// submission timing.
	require.NoError(t, drv.Submit(q2, []ports.CommandBuffer{consumer}, []ports.Semaphore{sem}, nil, fence))
	require.NoError(t, drv.Submit(q1, []ports.CommandBuffer{producer}, nil, []ports.Semaphore{sem}, 0))

	signaled, err := drv.WaitFence(fence, 2*time.Second)
	require.NoError(t, err)
	require.True(t, signaled)
	assert.False(t, violation.Load())
}

func TestFenceStatus(t *testing.T) {
	drv := New(zap.NewNop())
	q := drv.RegisterQueue(1, 0, "q1")

	fence, err := drv.CreateFence(1)
	require.NoError(t, err)

	signaled, err := drv.FenceStatus(fence)
	require.NoError(t, err)
	assert.False(t, signaled)

	buf := drv.NewCommandBuffer(0, nil)
	require.NoError(t, drv.Submit(q, []ports.CommandBuffer{buf}, nil, nil, fence))

	assert.Eventually(t, func() bool {
		ok, err := drv.FenceStatus(fence)
		return err == nil && ok
	}, 2*time.Second, time.Millisecond)
}

func TestWaitFenceTimeout(t *testing.T) {
	drv := New(zap.NewNop())

	fence, err := drv.CreateFence(1)
	require.NoError(t, err)

	signaled, err := drv.WaitFence(fence, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, signaled)
}

func TestDestroyedHandlesRejected(t *testing.T) {
	drv := New(zap.NewNop())
	q := drv.RegisterQueue(1, 0, "q1")

	fence, err := drv.CreateFence(1)
	require.NoError(t, err)
	drv.DestroyFence(fence)

	_, err = drv.FenceStatus(fence)
	require.Error(t, err)

	buf := drv.NewCommandBuffer(0, nil)
	err = drv.Submit(q, []ports.CommandBuffer{buf}, nil, nil, fence)
	require.Error(t, err)

	var native ports.NativeError
	require.ErrorAs(t, err, &native)
	assert.Equal(t, codeUnknownHandle, native.Code)
}

func TestFailNextSubmit(t *testing.T) {
	drv := New(zap.NewNop())
	q := drv.RegisterQueue(1, 0, "q1")
	buf := drv.NewCommandBuffer(0, nil)

	drv.FailNextSubmit()
	err := drv.Submit(q, []ports.CommandBuffer{buf}, nil, nil, 0)
	require.Error(t, err)

	var native ports.NativeError
	require.ErrorAs(t, err, &native)
	assert.Equal(t, codeDeviceLost, native.Code)

	// Only the next submission fails.
	assert.NoError(t, drv.Submit(q, []ports.CommandBuffer{buf}, nil, nil, 0))
}

func TestCounters(t *testing.T) {
	drv := New(zap.NewNop())
	q := drv.RegisterQueue(1, 0, "q1")

	sem, err := drv.CreateSemaphore(1)
	require.NoError(t, err)
	assert.Equal(t, 1, drv.SemaphoreCount())
	assert.Equal(t, 1, drv.LiveSemaphores())

	drv.DestroySemaphore(sem)
	assert.Equal(t, 1, drv.SemaphoreCount(), "allocation count never decreases")
	assert.Zero(t, drv.LiveSemaphores())

	buf := drv.NewCommandBuffer(0, nil)
	require.NoError(t, drv.Submit(q, []ports.CommandBuffer{buf}, nil, nil, 0))
	assert.Equal(t, 1, drv.SubmitCount())
}

func TestCloseRejectsFurtherSubmissions(t *testing.T) {
	drv := New(zap.NewNop())
	q := drv.RegisterQueue(1, 0, "q1")
	buf := drv.NewCommandBuffer(0, nil)

	drv.Close()
	drv.Close() // idempotent

	err := drv.Submit(q, []ports.CommandBuffer{buf}, nil, nil, 0)
	require.Error(t, err)

	var native ports.NativeError
	require.ErrorAs(t, err, &native)
	assert.Equal(t, codeDeviceLost, native.Code)
}
