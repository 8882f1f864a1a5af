package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/ports"
)

// CompletionToken observes overall completion of one submitted graph.
//
// A background watcher is the single observer of the native fence; when
// the fence signals, the watcher releases every synchronization
// primitive of the submission, unblocks Wait, flips Poll to completed
// and fires registered callbacks. Observation is idempotent: repeated
// Poll/Wait calls on a completed token report completed and never
// re-fire a callback.
//
// The token does not support cancellation. Once submitted, GPU work
// cannot be aborted; a timed-out wait leaves the work running.
type CompletionToken struct {
	id        string
	driver    ports.Driver
	logger    *zap.Logger
	pollEvery time.Duration

	fence      ports.Fence
	semaphores []ports.Semaphore

	done chan struct{}

	mu        sync.Mutex
	fired     bool
	callbacks []func()

	releaseOnce sync.Once
	submitted   time.Time
	onDone      func(latency time.Duration)
}

func newCompletionToken(
	id string,
	driver ports.Driver,
	plan *Plan,
	logger *zap.Logger,
	pollEvery time.Duration,
	onDone func(latency time.Duration),
) *CompletionToken {
	return &CompletionToken{
		id:         id,
		driver:     driver,
		logger:     logger,
		pollEvery:  pollEvery,
		fence:      plan.Fence,
		semaphores: plan.Semaphores,
		done:       make(chan struct{}),
		submitted:  time.Now(),
		onDone:     onDone,
	}
}

// start launches the fence watcher. Called by the engine after the token
// is registered, so completion cannot race registration.
func (t *CompletionToken) start() {
	go t.watch()
}

// watch blocks on the native fence in pollEvery slices until it signals.
// A fence wait error leaves the fence unobservable; the token is then
// completed so waiters cannot hang forever.
func (t *CompletionToken) watch() {
	for {
		signaled, err := t.driver.WaitFence(t.fence, t.pollEvery)
		if err != nil {
			t.logger.Error("completion fence wait failed",
				zap.String("submission_id", t.id),
				zap.Error(err))
			break
		}
		if signaled {
			break
		}
	}
	t.complete()
}

func (t *CompletionToken) complete() {
	t.releaseOnce.Do(func() {
		for _, sem := range t.semaphores {
			t.driver.DestroySemaphore(sem)
		}
		t.driver.DestroyFence(t.fence)

		t.mu.Lock()
		t.fired = true
		cbs := t.callbacks
		t.callbacks = nil
		t.mu.Unlock()

		close(t.done)
		for _, cb := range cbs {
			go t.invoke(cb)
		}

		latency := time.Since(t.submitted)
		t.logger.Debug("submission completed",
			zap.String("submission_id", t.id),
			zap.Duration("latency", latency))
		if t.onDone != nil {
			t.onDone(latency)
		}
	})
}

// invoke runs one user callback. A panic inside the callback must not
// reach the watcher or other observers.
func (t *CompletionToken) invoke(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("completion callback panicked",
				zap.String("submission_id", t.id),
				zap.Any("panic", r))
		}
	}()
	cb()
}

// ID reports the submission identifier the token belongs to.
func (t *CompletionToken) ID() string { return t.id }

// Poll reports whether the submission has completed, without blocking.
func (t *CompletionToken) Poll() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done exposes the completion channel for select-based callers.
func (t *CompletionToken) Done() <-chan struct{} { return t.done }

// Wait blocks until the submission completes or ctx is done. Returns
// ctx.Err() on timeout/cancellation; the GPU work keeps running.
func (t *CompletionToken) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout blocks up to d (forever when d <= 0) and reports whether
// completion was observed.
func (t *CompletionToken) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		<-t.done
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return true
	case <-timer.C:
		return false
	}
}

// OnComplete registers fn to run exactly once, asynchronously, when the
// completion signal fires. Registering on an already-completed token
// still runs fn once.
func (t *CompletionToken) OnComplete(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		go t.invoke(fn)
		return
	}
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}
