package scheduler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/graph"
	"github.com/gpuflow/gpuflow/pkg/ports"
)

// Submission is the native call computed for one node: its command
// buffers plus the wait and signal primitives assigned by the planner.
type Submission struct {
	Node    *graph.Node
	Waits   []ports.Semaphore
	Signals []ports.Semaphore
	Fence   ports.Fence
}

// Plan is the synchronization layout for one submission call. The
// primitives listed here are owned by the call that created them and are
// released once the completion fence has signaled.
type Plan struct {
	Order       []*graph.Node
	Submissions []Submission
	Semaphores  []ports.Semaphore
	Fence       ports.Fence
	Device      uint64
}

// Planner decides, per dependency edge, whether an explicit wait/signal
// primitive is required.
//
// Same-queue edges need no primitive: the queue preserves submission
// order, and nodes are submitted in dependency order. A cross-queue edge
// requires a semaphore on the dependency, allocated at most once and
// shared by every cross-queue dependent.
type Planner struct {
	driver  ports.Driver
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewPlanner creates a synchronization planner.
func NewPlanner(driver ports.Driver, metrics ports.MetricsCollector, logger *zap.Logger) *Planner {
	return &Planner{driver: driver, metrics: metrics, logger: logger}
}

// Plan allocates primitives for a validated topological order and builds
// the per-node submissions. order must come from graph.Validate: the
// root is the last entry and dependencies precede dependents. The root
// always receives a CPU-visible fence; the caller observes overall
// completion through it.
func (p *Planner) Plan(order []*graph.Node) (*Plan, error) {
	root := order[len(order)-1]
	plan := &Plan{Order: order, Device: root.Queue.Device()}

	// One semaphore per node with at least one cross-queue dependent.
	sems := make(map[uint64]ports.Semaphore)
	for _, n := range order {
		for _, dep := range n.Deps {
			if dep.Queue.ID() == n.Queue.ID() {
				continue
			}
			if _, ok := sems[dep.ID]; ok {
				continue
			}
			sem, err := p.driver.CreateSemaphore(plan.Device)
			if err != nil {
				p.releaseAll(plan)
				return nil, fmt.Errorf("allocating semaphore for node %d: %w", dep.ID, err)
			}
			sems[dep.ID] = sem
			plan.Semaphores = append(plan.Semaphores, sem)
			p.metrics.RecordSemaphoreAllocated()
		}
	}

	fence, err := p.driver.CreateFence(plan.Device)
	if err != nil {
		p.releaseAll(plan)
		return nil, fmt.Errorf("allocating completion fence: %w", err)
	}
	plan.Fence = fence

	for _, n := range order {
		sub := Submission{Node: n}
		seen := make(map[ports.Semaphore]bool)
		for _, dep := range n.Deps {
			if dep.Queue.ID() == n.Queue.ID() {
				continue
			}
			sem := sems[dep.ID]
			if !seen[sem] {
				seen[sem] = true
				sub.Waits = append(sub.Waits, sem)
			}
		}
		if sem, ok := sems[n.ID]; ok {
			sub.Signals = append(sub.Signals, sem)
		}
		if n.ID == root.ID {
			sub.Fence = fence
		}
		plan.Submissions = append(plan.Submissions, sub)
	}

	p.logger.Debug("synchronization plan built",
		zap.Int("nodes", len(order)),
		zap.Int("semaphores", len(plan.Semaphores)))
	return plan, nil
}

// releaseAll reclaims a plan whose primitives were never submitted.
func (p *Planner) releaseAll(plan *Plan) {
	for _, sem := range plan.Semaphores {
		p.driver.DestroySemaphore(sem)
	}
	if plan.Fence != 0 {
		p.driver.DestroyFence(plan.Fence)
	}
}
