package gpucore

import "fmt"

// ValidateBuffer checks desc and its initial data against the layout
// rules every device enforces.
func ValidateBuffer(desc *BufferDesc, initial []byte) error {
	if desc.Size == 0 {
		return fmt.Errorf("gpucore: %w: zero size", ErrInvalidArgument)
	}
	if initial != nil && uint64(len(initial)) < desc.Size {
		return fmt.Errorf("gpucore: %w: initial data holds %d of %d bytes", ErrInvalidArgument, len(initial), desc.Size)
	}
	if desc.Usage.Has(BufferUsageMapRead) && desc.Usage&BindUsages != 0 {
		return fmt.Errorf("gpucore: %w: mappable buffers cannot be bound", ErrInvalidArgument)
	}
	switch desc.Misc.Layout() {
	case LayoutConflict:
		return fmt.Errorf("gpucore: %w: raw and structured layouts are exclusive", ErrInvalidArgument)
	case LayoutStructured:
		if desc.Stride == 0 || desc.Size%uint64(desc.Stride) != 0 {
			return fmt.Errorf("gpucore: %w: size %d is not a multiple of stride %d", ErrInvalidArgument, desc.Size, desc.Stride)
		}
	case LayoutRaw:
		if desc.Size%RawWordSize != 0 {
			return fmt.Errorf("gpucore: %w: raw size %d is not word aligned", ErrInvalidArgument, desc.Size)
		}
	}
	return nil
}

// ViewStride checks vd against the buffer it covers and returns the
// element stride in bytes.
//
// Raw buffers need an R32Typeless view with ViewFlagRaw. Structured buffers
// need a ViewFormatUnknown view without it. The view must lie inside the
// buffer.
func ViewStride(bd *BufferDesc, vd *ViewDesc) (uint32, error) {
	if !bd.Usage.Has(BufferUsageStorage) {
		return 0, fmt.Errorf("gpucore: %w: buffer lacks storage usage", ErrInvalidArgument)
	}
	if vd.NumElements == 0 {
		return 0, fmt.Errorf("gpucore: %w: empty view", ErrInvalidArgument)
	}
	var stride uint32
	switch bd.Misc.Layout() {
	case LayoutRaw:
		if vd.Format != ViewFormatR32Typeless || vd.Flags&ViewFlagRaw == 0 {
			return 0, fmt.Errorf("gpucore: %w: raw buffer needs an r32-typeless raw view", ErrInvalidArgument)
		}
		stride = RawWordSize
	case LayoutStructured:
		if vd.Format != ViewFormatUnknown || vd.Flags&ViewFlagRaw != 0 {
			return 0, fmt.Errorf("gpucore: %w: structured buffer needs an unknown-format view", ErrInvalidArgument)
		}
		stride = bd.Stride
	default:
		return 0, fmt.Errorf("gpucore: %w: buffer has layout %s", ErrInvalidArgument, bd.Misc.Layout())
	}
	end := (uint64(vd.FirstElement) + uint64(vd.NumElements)) * uint64(stride)
	if end > bd.Size {
		return 0, fmt.Errorf("gpucore: %w: view ends at byte %d past buffer size %d", ErrInvalidArgument, end, bd.Size)
	}
	return stride, nil
}
