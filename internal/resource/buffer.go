// Package resource creates the buffers and read/write views a check runs on.
//
// Buffers come in two mutually exclusive layouts. Structured buffers are
// arrays of fixed-size records and remember their stride; raw buffers are
// untyped arrays of 32-bit words. Views derive their element count and
// format from the layout of the buffer they cover.
package resource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/uavcheck/gpucore"
)

// Role tags a buffer in the split input/output arrangement.
type Role uint8

// Buffer roles.
const (
	// RoleInOut is a buffer the kernel reads and writes in place.
	RoleInOut Role = iota
	// RoleInput is the buffer bound at slot 0 in split mode.
	RoleInput
	// RoleOutput is the buffer bound at slot 1 in split mode.
	RoleOutput
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleInOut:
		return "inout"
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}

// bufferUsage is requested for every kernel-visible buffer: writable and
// readable by shaders, and usable on both ends of a copy.
const bufferUsage = gpucore.BufferUsageStorage | gpucore.BufferUsageShaderResource |
	gpucore.BufferUsageCopySrc | gpucore.BufferUsageCopyDst

// Factory creates buffers and views on a device.
type Factory struct {
	device gpucore.Device
}

// NewFactory returns a factory for device.
func NewFactory(device gpucore.Device) *Factory {
	return &Factory{device: device}
}

// Buffer is a device buffer with a known layout.
type Buffer struct {
	// Role is the position of the buffer in the split arrangement.
	Role Role

	device gpucore.Device
	id     gpucore.BufferID
	desc   gpucore.BufferDesc
	once   sync.Once
}

// ID returns the device handle.
func (b *Buffer) ID() gpucore.BufferID { return b.id }

// Desc returns the descriptor the buffer was created with.
func (b *Buffer) Desc() gpucore.BufferDesc { return b.desc }

// Layout returns the buffer layout mode.
func (b *Buffer) Layout() gpucore.Layout { return b.desc.Misc.Layout() }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.desc.Size }

// Release destroys the buffer. It is safe to call more than once.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.once.Do(func() { b.device.DestroyBuffer(b.id) })
}

// CreateStructured allocates count records of elementSize bytes.
// initial, when non-nil, must hold at least elementSize*count bytes.
func (f *Factory) CreateStructured(label string, elementSize, count uint32, initial []byte) (*Buffer, error) {
	if elementSize == 0 || count == 0 {
		return nil, fmt.Errorf("resource: %w: structured buffer %dx%d", gpucore.ErrInvalidArgument, elementSize, count)
	}
	desc := gpucore.BufferDesc{
		Label:  label,
		Size:   uint64(elementSize) * uint64(count),
		Usage:  bufferUsage,
		Misc:   gpucore.BufferMiscStructured,
		Stride: elementSize,
	}
	return f.create(&desc, initial)
}

// CreateRaw allocates byteSize bytes addressable as 32-bit words.
// byteSize must be a non-zero multiple of 4. initial, when non-nil, must
// hold at least byteSize bytes.
func (f *Factory) CreateRaw(label string, byteSize uint32, initial []byte) (*Buffer, error) {
	if byteSize == 0 || byteSize%gpucore.RawWordSize != 0 {
		return nil, fmt.Errorf("resource: %w: raw buffer size %d is not a multiple of %d",
			gpucore.ErrInvalidArgument, byteSize, gpucore.RawWordSize)
	}
	desc := gpucore.BufferDesc{
		Label: label,
		Size:  uint64(byteSize),
		Usage: bufferUsage,
		Misc:  gpucore.BufferMiscAllowRawViews,
	}
	return f.create(&desc, initial)
}

func (f *Factory) create(desc *gpucore.BufferDesc, initial []byte) (*Buffer, error) {
	if initial != nil {
		if uint64(len(initial)) < desc.Size {
			return nil, fmt.Errorf("resource: %w: initial data holds %d bytes, buffer needs %d",
				gpucore.ErrInvalidArgument, len(initial), desc.Size)
		}
		initial = initial[:desc.Size]
	}
	id, err := f.device.CreateBuffer(desc, initial)
	if err != nil {
		return nil, asAllocationError("create buffer", desc.Label, err)
	}
	return &Buffer{device: f.device, id: id, desc: *desc}, nil
}

// asAllocationError keeps device AllocationErrors as they are and wraps
// anything else with the device status it carries.
func asAllocationError(op, label string, err error) error {
	var ae *gpucore.AllocationError
	if errors.As(err, &ae) {
		return err
	}
	return gpucore.NewAllocationError(op, label, gpucore.StatusOf(err), err)
}

// SeedWords returns n little-endian 32-bit words all set to value.
func SeedWords(n int, value uint32) []byte {
	b := make([]byte, n*gpucore.RawWordSize)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(b[i*gpucore.RawWordSize:], value)
	}
	return b
}
