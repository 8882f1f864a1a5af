package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/graph"
	"github.com/gpuflow/gpuflow/pkg/ports"
)

// DefaultFencePollInterval bounds how long the fence watcher blocks per
// native wait, so shutdown-time watchers never hang on a dead fence.
const DefaultFencePollInterval = 100 * time.Millisecond

// Engine turns an execution-node graph into ordered native submissions
// with a caller-facing completion token.
type Engine struct {
	driver    ports.Driver
	metrics   ports.MetricsCollector
	logger    *zap.Logger
	planner   *Planner
	submitter *Submitter
	pollEvery time.Duration

	// Track in-flight submissions
	active  sync.Map // map[string]*CompletionToken
	activeN atomic.Int64
}

// NewEngine creates a submission engine over driver.
func NewEngine(
	driver ports.Driver,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	fencePollInterval time.Duration,
) *Engine {
	if fencePollInterval <= 0 {
		fencePollInterval = DefaultFencePollInterval
	}
	return &Engine{
		driver:    driver,
		metrics:   metrics,
		logger:    logger,
		planner:   NewPlanner(driver, metrics, logger),
		submitter: NewSubmitter(driver, metrics, logger),
		pollEvery: fencePollInterval,
	}
}

// Submit validates root's dependency graph, plans synchronization
// primitives, submits every node in dependency order and returns a token
// for observing overall completion.
//
// Submit returns as soon as the native calls have been issued; it does
// not wait for the GPU. Structural failures (ErrInvalidNode,
// ErrCyclicGraph, ErrCrossDeviceGraph) are reported before any native
// call and the graph can be fixed and resubmitted. A SubmissionError
// abandons the remaining nodes of the call; already-submitted work keeps
// running and its primitives are not reclaimed.
func (e *Engine) Submit(ctx context.Context, root *graph.Node) (*CompletionToken, error) {
	order, err := graph.Validate(root)
	if err != nil {
		e.metrics.RecordSubmission("rejected")
		e.logger.Error("graph validation failed", zap.Error(err))
		return nil, err
	}

	plan, err := e.planner.Plan(order)
	if err != nil {
		e.metrics.RecordSubmission("failed")
		e.logger.Error("synchronization planning failed", zap.Error(err))
		return nil, err
	}

	if err := e.submitter.SubmitAll(ctx, plan); err != nil {
		// The fence rides on the root, which is last in the order, so a
		// failed call never consumed it. The semaphores may be referenced
		// by work already in flight and are left to the caller's rebuild.
		e.driver.DestroyFence(plan.Fence)
		e.metrics.RecordSubmission("failed")
		return nil, err
	}

	id := uuid.New().String()
	token := newCompletionToken(id, e.driver, plan, e.logger, e.pollEvery, func(latency time.Duration) {
		e.active.Delete(id)
		e.metrics.SetActiveSubmissions(int(e.activeN.Add(-1)))
		e.metrics.RecordCompletionLatency(latency)
	})
	e.active.Store(id, token)
	e.metrics.SetActiveSubmissions(int(e.activeN.Add(1)))
	e.metrics.RecordSubmission("submitted")
	token.start()

	e.logger.Info("graph submitted",
		zap.String("submission_id", id),
		zap.Uint64("root_node_id", root.ID),
		zap.Int("nodes", len(order)),
		zap.Int("semaphores", len(plan.Semaphores)))
	return token, nil
}

// ActiveSubmissions reports the number of submissions whose completion
// fence has not yet signaled.
func (e *Engine) ActiveSubmissions() int {
	return int(e.activeN.Load())
}

// Shutdown waits for in-flight submissions to complete. In-flight GPU
// work cannot be cancelled; ctx bounds how long the wait lasts.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.logger.Info("shutting down engine",
		zap.Int64("active_submissions", e.activeN.Load()))

	var werr error
	e.active.Range(func(_, value any) bool {
		token := value.(*CompletionToken)
		if err := token.Wait(ctx); err != nil {
			werr = fmt.Errorf("submission %s still in flight: %w", token.ID(), err)
			return false
		}
		return true
	})
	if werr != nil {
		return werr
	}

	e.logger.Info("engine shut down complete")
	return nil
}
