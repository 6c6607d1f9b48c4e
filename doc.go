// Package uavcheck checks that a GPU compute device honours read/write
// buffer views.
//
// # Overview
//
// A check runs one compute kernel under four buffer configurations:
// structured or raw buffers, each with a single in-place buffer or a split
// input/output pair. Every configuration seeds 729 words with 1, dispatches
// a 3x3x3 grid of 3x3x3 thread groups that adds each element three times,
// copies the result to a staging buffer and expects every word to read 3.
//
// # Quick Start
//
//	dev, err := uavcheck.OpenDevice(uavcheck.DeviceOptions{Backend: "vulkan"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Destroy()
//
// The uavcheck command wires a device, the embedded kernel and the console
// report together:
//
//	uavcheck run --backend=cpu --dump
//
// # Backends
//
//   - vulkan: a hardware adapter through gogpu/wgpu
//   - noop: the wgpu noop HAL, which accepts all work and computes nothing
//   - cpu: an in-process reference device with deterministic results
//
// # Logging
//
// By default nothing is logged. Call [SetLogger] to route diagnostics from
// every internal package to a *slog.Logger.
package uavcheck
