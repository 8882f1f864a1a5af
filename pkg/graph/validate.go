package graph

// Validate walks root and its transitive dependencies and returns the
// topological submission order: dependencies before dependents, each
// distinct node exactly once. A node referenced by multiple dependents
// (fan-out) appears once and will be submitted once.
//
// Traversal is keyed by node identity, not structure. It fails with
// ErrCyclicGraph if a node on the current path is revisited and with
// ErrCrossDeviceGraph if the graph's queues resolve to more than one
// logical device. Both checks run before any native call.
func Validate(root *Node) ([]*Node, error) {
	if root == nil {
		return nil, invalidNodef("root node is nil")
	}

	var (
		order      []*Node
		onPath     = map[uint64]bool{}
		visited    = map[uint64]bool{}
		firstQueue = root.Queue
	)

	var dfs func(n *Node) error
	dfs = func(n *Node) error {
		if len(n.Buffers) == 0 || n.Queue == nil {
			return &InvalidNodeError{Node: n, Msg: "missing command buffers or queue"}
		}
		if n.Queue.Device() != firstQueue.Device() {
			return &CrossDeviceError{Queue: n.Queue, Other: firstQueue}
		}
		if onPath[n.ID] {
			return &CycleError{Node: n}
		}
		if visited[n.ID] {
			return nil
		}
		onPath[n.ID] = true
		for _, dep := range n.Deps {
			if dep == nil {
				return &InvalidNodeError{Node: n, Msg: "nil dependency"}
			}
			if err := dfs(dep); err != nil {
				return err
			}
		}
		onPath[n.ID] = false
		visited[n.ID] = true
		order = append(order, n)
		return nil
	}

	if err := dfs(root); err != nil {
		return nil, err
	}
	return order, nil
}
