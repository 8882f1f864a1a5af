package graph

import (
	"errors"
	"fmt"

	"github.com/gpuflow/gpuflow/pkg/ports"
)

var (
	// ErrInvalidNode reports a malformed node (no command buffers or no
	// queue), at construction or at validation.
	ErrInvalidNode = errors.New("invalid execution node")

	// ErrCyclicGraph reports a dependency cycle. Always detected before
	// any native call; a submitted cycle would be mutually-waiting GPU
	// semaphores with no CPU-visible symptom.
	ErrCyclicGraph = errors.New("cyclic dependency graph")

	// ErrCrossDeviceGraph reports queues owned by different logical
	// devices in one graph. Synchronization primitives are scoped to a
	// single device, so such a graph cannot be ordered.
	ErrCrossDeviceGraph = errors.New("graph spans multiple devices")

	// ErrSubmissionFailed reports a rejected native submission.
	ErrSubmissionFailed = errors.New("submission failed")
)

// InvalidNodeError wraps ErrInvalidNode with a reason and, when known,
// the offending node.
type InvalidNodeError struct {
	Node *Node
	Msg  string
}

func (e *InvalidNodeError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("%s: node %d: %s", ErrInvalidNode, e.Node.ID, e.Msg)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidNode, e.Msg)
}

func (e *InvalidNodeError) Unwrap() error { return ErrInvalidNode }

func invalidNodef(format string, args ...any) error {
	return &InvalidNodeError{Msg: fmt.Sprintf(format, args...)}
}

// CycleError identifies the node revisited on the traversal path.
type CycleError struct {
	Node *Node
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: node %d is its own ancestor", ErrCyclicGraph, e.Node.ID)
}

func (e *CycleError) Unwrap() error { return ErrCyclicGraph }

// CrossDeviceError identifies the queue pair that resolves to two
// different logical devices.
type CrossDeviceError struct {
	Queue *ports.Queue
	Other *ports.Queue
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("%s: %s is on device %d, %s is on device %d",
		ErrCrossDeviceGraph,
		e.Other.Name(), e.Other.Device(),
		e.Queue.Name(), e.Queue.Device())
}

func (e *CrossDeviceError) Unwrap() error { return ErrCrossDeviceGraph }

// SubmissionError identifies the node whose native submission was
// rejected and the native result code.
type SubmissionError struct {
	Node *Node
	Code int32
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: node %d on %s: code %d: %v",
		ErrSubmissionFailed, e.Node.ID, e.Node.Queue.Name(), e.Code, e.Err)
}

func (e *SubmissionError) Unwrap() error { return ErrSubmissionFailed }
