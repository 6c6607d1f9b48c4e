// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// MaxViewSlots is the number of read/write view slots a device exposes.
const MaxViewSlots = 8

// Device abstracts over the backends a check can run on.
//
// The model is a single immediate context: a shader and a set of views are
// bound into slots, a dispatch runs against whatever is bound, and a copy
// into a mappable buffer waits for all prior work. Implementations must be
// safe for concurrent use, but callers drive them from one goroutine.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a buffer destroys its views and clears their slots
//   - IDs become invalid after destruction and are never reused
type Device interface {
	// Info describes the adapter backing the device.
	Info() AdapterInfo

	// CreateShader creates a compute shader from a compiled binary.
	CreateShader(bin *ShaderBinary) (ShaderID, error)

	// DestroyShader releases a shader. Clears the shader slot if bound.
	DestroyShader(id ShaderID)

	// CreateBuffer creates a buffer. initial, when non-nil, must hold
	// desc.Size bytes and is uploaded before the call returns.
	CreateBuffer(desc *BufferDesc, initial []byte) (BufferID, error)

	// DestroyBuffer releases a buffer and every view over it.
	DestroyBuffer(id BufferID)

	// CreateView creates a read/write view over a buffer.
	CreateView(desc *ViewDesc) (ViewID, error)

	// DestroyView releases a view. Clears its slot if bound.
	DestroyView(id ViewID)

	// SetShader binds the active compute shader. InvalidID unbinds.
	SetShader(id ShaderID)

	// SetViews binds views to consecutive slots starting at start.
	// InvalidID entries clear their slot.
	SetViews(start uint32, views []ViewID)

	// Dispatch runs the bound shader over an x*y*z grid of thread groups.
	// It does not wait for completion.
	Dispatch(x, y, z uint32) error

	// CopyBuffer copies src into dst. Both must have the same size.
	// The call blocks until all previously issued work has completed.
	CopyBuffer(dst, src BufferID) error

	// MapRead maps a BufferUsageMapRead buffer for reading. The returned
	// slice is valid until Unmap.
	MapRead(id BufferID) ([]byte, error)

	// Unmap releases a mapping made by MapRead.
	Unmap(id BufferID)

	// Bindings reports what is currently bound.
	Bindings() Bindings

	// Stats reports live object counts.
	Stats() Stats

	// Destroy releases the device and everything created on it.
	Destroy()
}

// AdapterInfo identifies the adapter a device runs on.
type AdapterInfo struct {
	// Name is the adapter name reported by the driver.
	Name string

	// Backend is the backend name ("vulkan", "noop", "cpu").
	Backend string

	// DeviceType is a human-readable device class ("discrete", "integrated", ...).
	DeviceType string
}

// Bindings is a snapshot of the device binding slots.
type Bindings struct {
	Shader ShaderID
	Views  [MaxViewSlots]ViewID
}

// Empty reports whether no shader and no view is bound.
func (b Bindings) Empty() bool {
	if b.Shader != InvalidID {
		return false
	}
	for _, v := range b.Views {
		if v != InvalidID {
			return false
		}
	}
	return true
}

// Stats holds live object counts for leak checks.
type Stats struct {
	Shaders int
	Buffers int
	Views   int
	Mapped  int
}
