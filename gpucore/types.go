package gpucore

// Resource IDs
//
// These opaque IDs represent device resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// ShaderID is an opaque handle to a compute shader created on a device.
type ShaderID uint64

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// ViewID is an opaque handle to a read/write view over a buffer.
type ViewID uint64

// InvalidID is the zero value, representing an invalid/null resource.
// Binding InvalidID to a slot clears the slot.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for CPU reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 1

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 2

	// BufferUsageStorage indicates the buffer can be bound through a
	// read/write view.
	BufferUsageStorage BufferUsage = 1 << 3

	// BufferUsageShaderResource indicates the buffer can be bound as a
	// read-only shader resource.
	BufferUsageShaderResource BufferUsage = 1 << 4
)

// BindUsages is the set of usages that make a buffer visible to shaders.
const BindUsages = BufferUsageStorage | BufferUsageShaderResource

// Has reports whether all bits of flag are set in u.
func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag == flag }

// BufferMisc selects the binary layout of a buffer.
// Exactly one of the flags must be set on a bindable buffer.
type BufferMisc uint32

// Buffer layout flags.
const (
	// BufferMiscAllowRawViews marks a buffer as an untyped array of
	// 32-bit words addressable at byte granularity.
	BufferMiscAllowRawViews BufferMisc = 1 << 0

	// BufferMiscStructured marks a buffer as an array of fixed-size records.
	// The record size is BufferDesc.Stride.
	BufferMiscStructured BufferMisc = 1 << 1
)

// Layout is the layout mode derived from BufferMisc.
type Layout uint8

// Layout modes.
const (
	LayoutNone Layout = iota
	LayoutRaw
	LayoutStructured
	LayoutConflict
)

// Layout returns the layout selected by m.
func (m BufferMisc) Layout() Layout {
	raw := m&BufferMiscAllowRawViews != 0
	structured := m&BufferMiscStructured != 0
	switch {
	case raw && structured:
		return LayoutConflict
	case raw:
		return LayoutRaw
	case structured:
		return LayoutStructured
	default:
		return LayoutNone
	}
}

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutNone:
		return "none"
	case LayoutRaw:
		return "raw"
	case LayoutStructured:
		return "structured"
	case LayoutConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// BufferDesc describes a device buffer.
type BufferDesc struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage BufferUsage

	// Misc selects the binary layout. Staging buffers leave it zero.
	Misc BufferMisc

	// Stride is the record size for structured buffers.
	Stride uint32
}

// RawWordSize is the element size of a raw view.
const RawWordSize = 4

// ViewFormat is the element format of a view.
type ViewFormat uint32

// View formats.
const (
	// ViewFormatUnknown lets the kernel interpret the element layout.
	// Required for structured buffers.
	ViewFormatUnknown ViewFormat = iota

	// ViewFormatR32Typeless is an untyped 32-bit word. Required for raw views.
	ViewFormatR32Typeless
)

// String returns the format name.
func (f ViewFormat) String() string {
	switch f {
	case ViewFormatUnknown:
		return "unknown"
	case ViewFormatR32Typeless:
		return "r32-typeless"
	default:
		return "invalid"
	}
}

// ViewFlags modifies how a view addresses its buffer.
type ViewFlags uint32

// ViewFlagRaw selects byte/word addressing over a raw buffer.
const ViewFlagRaw ViewFlags = 1 << 0

// ViewDesc describes a read/write view over a buffer.
type ViewDesc struct {
	// Label is an optional debug label.
	Label string

	// Buffer is the viewed buffer.
	Buffer BufferID

	// Format is the element format.
	Format ViewFormat

	// FirstElement is the index of the first visible element.
	FirstElement uint32

	// NumElements is the number of visible elements.
	NumElements uint32

	// Flags selects raw addressing.
	Flags ViewFlags
}

// Define is a preprocessor symbol passed to the shader compiler.
type Define struct {
	Name  string
	Value string
}

// ShaderBinary is a compiled compute kernel. It does not hold the source
// text it was compiled from.
type ShaderBinary struct {
	// Label is an optional debug label, usually the source file name.
	Label string

	// EntryPoint is the name of the kernel function.
	EntryPoint string

	// Defines are the symbols the kernel was compiled with, sorted by name.
	Defines []Define

	// Code is the SPIR-V module.
	Code []byte

	// SourceHash is the xxh3-64 hash of the source the binary was compiled
	// from, before preprocessing. Zero means unknown.
	SourceHash uint64
}

// Defined reports whether name was defined when the binary was compiled.
func (b *ShaderBinary) Defined(name string) bool {
	for _, d := range b.Defines {
		if d.Name == name {
			return true
		}
	}
	return false
}
