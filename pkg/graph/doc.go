// Package graph implements the execution-node model for GPU submissions.
//
// A Node describes one unit of submittable work: the command buffers to
// run, the queue to run them on, and the nodes it depends on. Nodes are
// immutable after construction; composition (AddDependencies, Chain)
// always returns a new node, so graphs built only through the package
// operations are acyclic by construction.
//
// Validate walks a root node's transitive dependencies by identity and
// produces the topological submission order, rejecting cycles and graphs
// that span more than one logical device before any native call is made.
package graph
