package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_WaitTimeoutLeavesWorkRunning(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	release := make(chan struct{})
	var ran atomic.Bool
	a := r.node(t, q, func() {
		<-release
		ran.Store(true)
	})

	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)

	assert.False(t, token.WaitTimeout(20*time.Millisecond), "wait must time out")
	assert.False(t, token.Poll())

	// The timeout did not affect the GPU work.
	close(release)
	require.True(t, token.WaitTimeout(2*time.Second))
	assert.True(t, ran.Load())
}

func TestToken_WaitHonorsContext(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	release := make(chan struct{})
	a := r.node(t, q, func() { <-release })

	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, token.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, token.Wait(context.Background()))
}

func TestToken_ObservationIdempotent(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	var fired atomic.Int32
	a := r.node(t, q, nil)

	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)
	token.OnComplete(func() { fired.Add(1) })

	require.True(t, token.WaitTimeout(2*time.Second))

	// Repeated observation always reports completed and never re-fires
	// the callback.
	for i := 0; i < 5; i++ {
		assert.True(t, token.Poll())
		assert.True(t, token.WaitTimeout(time.Millisecond))
		assert.NoError(t, token.Wait(context.Background()))
	}
	assert.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, testPollInterval)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestToken_CallbackAfterCompletionStillFiresOnce(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	a := r.node(t, q, nil)
	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)
	require.True(t, token.WaitTimeout(2*time.Second))

	var fired atomic.Int32
	token.OnComplete(func() { fired.Add(1) })

	assert.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, testPollInterval)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestToken_CallbackPanicIsolated(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	a := r.node(t, q, nil)
	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)

	var survivor atomic.Bool
	token.OnComplete(func() { panic("user callback exploded") })
	token.OnComplete(func() { survivor.Store(true) })

	require.True(t, token.WaitTimeout(2*time.Second))
	assert.Eventually(t, func() bool { return survivor.Load() },
		time.Second, testPollInterval)

	// Token state is intact for other observers.
	assert.True(t, token.Poll())
	assert.NoError(t, token.Wait(context.Background()))
}

func TestToken_NilCallbackIgnored(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	a := r.node(t, q, nil)
	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)

	token.OnComplete(nil)
	require.True(t, token.WaitTimeout(2*time.Second))
}

func TestToken_DoneChannel(t *testing.T) {
	r := newRig(t)
	q := r.drv.RegisterQueue(1, 0, "q1")

	a := r.node(t, q, nil)
	token, err := r.engine.Submit(context.Background(), a)
	require.NoError(t, err)

	select {
	case <-token.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done channel never closed")
	}
	assert.NotEmpty(t, token.ID())
}
