// Package scheduler implements the submission and synchronization engine.
//
// The engine coordinates one submission call by:
//   - Validating the graph (cycles, cross-device queues) before any
//     native call
//   - Planning synchronization primitives per dependency edge
//   - Submitting nodes in dependency order, serialized per queue identity
//   - Returning a CompletionToken that observes the root fence
//
// Submit returns as soon as the native calls have been issued; a
// background watcher observes the completion fence and drives callbacks
// and primitive cleanup.
package scheduler
