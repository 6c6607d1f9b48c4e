package resource

import (
	"fmt"
	"sync"

	"github.com/gogpu/uavcheck/gpucore"
)

// View is a read/write window over exactly one buffer. It must be released
// before its buffer.
type View struct {
	buffer *Buffer
	id     gpucore.ViewID
	desc   gpucore.ViewDesc
	once   sync.Once
}

// ID returns the device handle.
func (v *View) ID() gpucore.ViewID { return v.id }

// Desc returns the descriptor the view was created with.
func (v *View) Desc() gpucore.ViewDesc { return v.desc }

// Buffer returns the viewed buffer.
func (v *View) Buffer() *Buffer { return v.buffer }

// Release destroys the view. It is safe to call more than once.
func (v *View) Release() {
	if v == nil {
		return
	}
	v.once.Do(func() { v.buffer.device.DestroyView(v.id) })
}

// ViewDescFor derives the view parameters for a buffer descriptor.
//
// Raw buffers are viewed as byteSize/4 untyped words with raw addressing.
// Structured buffers are viewed as byteSize/stride opaque records. A
// descriptor with neither or both layout flags is a programming error and
// reports gpucore.ErrInvalidArgument.
func ViewDescFor(bd gpucore.BufferDesc, id gpucore.BufferID) (gpucore.ViewDesc, error) {
	desc := gpucore.ViewDesc{Label: bd.Label, Buffer: id}
	switch bd.Misc.Layout() {
	case gpucore.LayoutRaw:
		desc.Format = gpucore.ViewFormatR32Typeless
		desc.Flags = gpucore.ViewFlagRaw
		desc.NumElements = uint32(bd.Size / gpucore.RawWordSize)
	case gpucore.LayoutStructured:
		desc.Format = gpucore.ViewFormatUnknown
		// A zero stride leaves NumElements zero; the device rejects it.
		if bd.Stride != 0 {
			desc.NumElements = uint32(bd.Size / uint64(bd.Stride))
		}
	default:
		return gpucore.ViewDesc{}, fmt.Errorf("resource: %w: buffer %q has layout %s",
			gpucore.ErrInvalidArgument, bd.Label, bd.Misc.Layout())
	}
	return desc, nil
}

// CreateView creates a read/write view covering all of b.
func (f *Factory) CreateView(b *Buffer) (*View, error) {
	desc, err := ViewDescFor(b.desc, b.id)
	if err != nil {
		return nil, err
	}
	id, err := f.device.CreateView(&desc)
	if err != nil {
		return nil, asAllocationError("create view", desc.Label, err)
	}
	return &View{buffer: b, id: id, desc: desc}, nil
}
