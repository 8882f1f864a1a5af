// Package driver provides native-layer implementations of ports.Driver.
//
// Implementations:
//   - vulkan: real backend over vulkan-go (semaphores, fences,
//     vkQueueSubmit)
//   - memory: in-memory queue simulation for testing and the demo binary
package driver
