package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/graph"
	"github.com/gpuflow/gpuflow/pkg/ports"
)

// Submitter issues native submissions in plan order, serialized per
// queue identity: submissions against the same queue never execute
// concurrently from two threads, submissions against different queues
// may.
type Submitter struct {
	driver  ports.Driver
	metrics ports.MetricsCollector
	logger  *zap.Logger

	// locks maps queue identity to its submission mutex. Identities are
	// assigned once at queue registration, so value-equal descriptors of
	// distinct queues cannot share a lock, and every reference to the
	// same underlying queue serializes through the same lock.
	locks sync.Map // map[uint64]*sync.Mutex
}

// NewSubmitter creates a queue submitter.
func NewSubmitter(driver ports.Driver, metrics ports.MetricsCollector, logger *zap.Logger) *Submitter {
	return &Submitter{driver: driver, metrics: metrics, logger: logger}
}

// SubmitAll submits every node of the plan in order, blocking on the
// calling goroutine. On a native failure the remaining nodes are
// abandoned and a SubmissionError carrying the failing node and native
// code is returned; work already submitted keeps running.
func (s *Submitter) SubmitAll(ctx context.Context, plan *Plan) error {
	for _, sub := range plan.Submissions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.submit(sub); err != nil {
			return err
		}
	}
	return nil
}

func (s *Submitter) submit(sub Submission) error {
	mu := s.lockFor(sub.Node.Queue)
	mu.Lock()
	err := s.driver.Submit(sub.Node.Queue, sub.Node.Buffers, sub.Waits, sub.Signals, sub.Fence)
	mu.Unlock()

	if err != nil {
		var native ports.NativeError
		var code int32
		if errors.As(err, &native) {
			code = native.Code
		}
		s.logger.Error("queue submission rejected",
			zap.Uint64("node_id", sub.Node.ID),
			zap.String("queue", sub.Node.Queue.Name()),
			zap.Int32("code", code),
			zap.Error(err))
		return &graph.SubmissionError{Node: sub.Node, Code: code, Err: err}
	}

	s.metrics.RecordNodeSubmitted(sub.Node.Queue.Name())
	s.logger.Debug("node submitted",
		zap.Uint64("node_id", sub.Node.ID),
		zap.String("queue", sub.Node.Queue.Name()),
		zap.Int("waits", len(sub.Waits)),
		zap.Int("signals", len(sub.Signals)))
	return nil
}

// lockFor returns the submission mutex for a queue identity, creating it
// on first use.
func (s *Submitter) lockFor(q *ports.Queue) *sync.Mutex {
	if mu, ok := s.locks.Load(q.ID()); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := s.locks.LoadOrStore(q.ID(), &sync.Mutex{})
	return mu.(*sync.Mutex)
}
