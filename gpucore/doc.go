// Package gpucore provides the device abstraction shared by the uavcheck
// backends and pipeline stages.
//
// This package defines the [Device] interface, which abstracts over the
// backends a check can run on:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), in internal/gpu
//   - a CPU reference device that executes kernels in Go, in internal/cpu
//
// # Architecture
//
// The pipeline stages (compile, buffer and view creation, dispatch,
// readback) are written once against [Device]. Backends translate the slot
// based binding model into their native API.
//
//	          +------------------+
//	          |  harness.Runner  |
//	          +---------+--------+
//	                    |
//	   +--------+-------+--------+----------+
//	   |        |                |          |
//	 shader  resource        dispatch   readback
//	   |        |                |          |
//	   +--------+-------+--------+----------+
//	                    |
//	          +---------v--------+
//	          |  gpucore.Device  |
//	          +----+--------+----+
//	               |        |
//	        +------v--+  +--v------+
//	        | hal     |  | cpu     |
//	        | (wgpu)  |  | (Go)    |
//	        +---------+  +---------+
//
// # Resource Management
//
// Resources are managed via opaque IDs ([ShaderID], [BufferID], [ViewID]).
// Devices track the mapping between IDs and backend objects and count live
// objects in [Stats], which tests use to check that nothing leaks between
// configurations.
//
// # Errors
//
// Failures carry a [Status] code. [CompileError] wraps compiler diagnostics,
// [AllocationError] wraps device failures and [ValidationError] reports a
// readback that did not hold the expected values.
package gpucore
