// Package gpu implements gpucore.Device on the gogpu/wgpu HAL.
//
// A Device is either opened standalone with Open, which selects a Vulkan
// adapter (or the noop backend for tests), or wrapped around a device owned
// by a host application with FromProvider.
//
// # Execution model
//
// Shaders become SPIR-V shader modules. Compute pipelines are built lazily
// on first dispatch, one per number of bound view slots, and cached on the
// shader. Views are validated descriptors that turn into storage buffer
// bindings when a dispatch builds its bind group.
//
// Dispatch encodes one compute pass and submits it without waiting. The
// bind group and command buffer stay pending until a CopyBuffer, which
// submits the copy and waits for its submission index. MapRead maps the
// staging buffer after that wait.
//
// # Memory budget
//
// Buffer allocations are tracked against an optional budget. Allocations
// that would exceed it fail with gpucore.StatusOutOfMemory before reaching
// the driver.
package gpu
