package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/gpuflow/gpuflow/pkg/adapters/driver/memory"
	"github.com/gpuflow/gpuflow/pkg/adapters/metrics/noop"
)

func TestLockFor_SameIdentitySameLock(t *testing.T) {
	drv := memory.New(zap.NewNop())
	s := NewSubmitter(drv, noop.NewCollector(), zap.NewNop())

	q := drv.RegisterQueue(1, 0, "q1")

	// However many references to the descriptor exist, the same
	// underlying queue serializes through the same lock.
	alias := q
	assert.Same(t, s.lockFor(q), s.lockFor(alias))
	assert.Same(t, s.lockFor(q), s.lockFor(q))
}

func TestLockFor_DistinctQueuesDistinctLocks(t *testing.T) {
	drv := memory.New(zap.NewNop())
	s := NewSubmitter(drv, noop.NewCollector(), zap.NewNop())

	// Value-equal descriptors of two different underlying queues must
	// not share a lock: identity comes from registration, not value.
	q1 := drv.RegisterQueue(1, 0, "twin")
	q2 := drv.RegisterQueue(1, 0, "twin")

	assert.NotSame(t, s.lockFor(q1), s.lockFor(q2))
}
