package graph

import (
	"sync/atomic"

	"github.com/gpuflow/gpuflow/pkg/ports"
)

// nodeSeq assigns construction-time identities. Traversal and locking
// key on ID, never on value equality: two nodes with identical buffers,
// queue and dependencies are still distinct work.
var nodeSeq atomic.Uint64

// Node is one immutable unit of submittable GPU work.
//
// Construct nodes with New, AddDependencies and Chain. The fields are
// exported for inspection; mutating them after construction is outside
// the contract and can introduce cycles, which Validate will reject at
// submission time.
type Node struct {
	// ID is the construction-time identity of the node.
	ID uint64

	// Buffers is the ordered command-buffer sequence, all valid for the
	// same queue family.
	Buffers []ports.CommandBuffer

	// Queue is the target queue.
	Queue *ports.Queue

	// Deps are the nodes that must finish on the GPU before this node's
	// buffers begin. Shared: one node may be referenced by multiple
	// dependents.
	Deps []*Node

	// Meta is an open extension slot, not interpreted by the core.
	Meta any
}

// New creates a node with no dependencies. It performs no native calls.
// A node needs at least one command buffer and a queue.
func New(buffers []ports.CommandBuffer, queue *ports.Queue) (*Node, error) {
	if len(buffers) == 0 {
		return nil, invalidNodef("node has no command buffers")
	}
	if queue == nil {
		return nil, invalidNodef("node has no queue")
	}
	return &Node{
		ID:      nodeSeq.Add(1),
		Buffers: append([]ports.CommandBuffer(nil), buffers...),
		Queue:   queue,
	}, nil
}

// AddDependencies returns a new node identical to n except that deps are
// appended to its dependency list. n is not mutated; the new node shares
// n's command buffers and queue.
func (n *Node) AddDependencies(deps ...*Node) *Node {
	merged := make([]*Node, 0, len(n.Deps)+len(deps))
	merged = append(merged, n.Deps...)
	merged = append(merged, deps...)
	return &Node{
		ID:      nodeSeq.Add(1),
		Buffers: n.Buffers,
		Queue:   n.Queue,
		Deps:    merged,
		Meta:    n.Meta,
	}
}

// WithMeta returns a new node identical to n with Meta set to meta.
func (n *Node) WithMeta(meta any) *Node {
	return &Node{
		ID:      nodeSeq.Add(1),
		Buffers: n.Buffers,
		Queue:   n.Queue,
		Deps:    n.Deps,
		Meta:    meta,
	}
}

// Chain creates a node that depends on prev: sugar for
// New(buffers, queue) followed by AddDependencies(prev).
func Chain(prev *Node, buffers []ports.CommandBuffer, queue *ports.Queue) (*Node, error) {
	n, err := New(buffers, queue)
	if err != nil {
		return nil, err
	}
	return n.AddDependencies(prev), nil
}
