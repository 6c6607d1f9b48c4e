package cpu

import (
	"encoding/binary"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/shader"
)

// Kernel is a Go implementation of a compute entry point.
type Kernel struct {
	// WorkgroupSize is the number of invocations per thread group.
	WorkgroupSize [3]uint32

	// Slots returns how many view slots, starting at 0, the kernel reads
	// when compiled as bin.
	Slots func(bin *gpucore.ShaderBinary) int

	// Run executes one invocation.
	Run func(inv *Invocation)

	// SourceHash, when non-zero, limits the kernel to binaries compiled
	// from the source it mirrors.
	SourceHash uint64
}

// Invocation is the per-thread state passed to Kernel.Run.
type Invocation struct {
	GlobalID [3]uint32
	LocalID  [3]uint32
	GroupID  [3]uint32

	// Shader is the binary being executed; kernels consult its defines.
	Shader *gpucore.ShaderBinary

	// Slots holds the bound views. Unbound slots are nil.
	Slots []*Binding
}

// Binding is a view as seen by a running kernel.
type Binding struct {
	data   []byte
	first  uint32
	count  uint32
	stride uint32
}

func newBinding(v *view) *Binding {
	return &Binding{
		data:   v.buffer.data,
		first:  v.desc.FirstElement,
		count:  v.desc.NumElements,
		stride: v.stride,
	}
}

// Len returns the number of visible elements.
func (b *Binding) Len() uint32 { return b.count }

// Load returns the first word of element i. Out-of-range loads return 0.
func (b *Binding) Load(i uint32) uint32 {
	if i >= b.count {
		return 0
	}
	off := (uint64(b.first) + uint64(i)) * uint64(b.stride)
	return binary.LittleEndian.Uint32(b.data[off:])
}

// Store writes the first word of element i. Out-of-range stores are
// dropped.
func (b *Binding) Store(i, v uint32) {
	if i >= b.count {
		return
	}
	off := (uint64(b.first) + uint64(i)) * uint64(b.stride)
	binary.LittleEndian.PutUint32(b.data[off:], v)
}

// Grid geometry of the check kernel. 3x3x3 groups of 3x3x3 invocations
// give one invocation per element of the 27x27 grid.
const (
	checkGroupSize = 3
	checkRowPitch  = 9
	checkLayer     = 81
	checkElements  = 729
)

// CheckKernel mirrors the bundled compute.wgsl kernel: each invocation
// owns one element, accumulates it three times and writes the sum in place
// or, with SPLIT_INOUT, into slot 1.
var CheckKernel = Kernel{
	WorkgroupSize: [3]uint32{checkGroupSize, checkGroupSize, checkGroupSize},
	SourceHash:    shader.BuiltinSourceHash(),
	Slots: func(bin *gpucore.ShaderBinary) int {
		if bin.Defined(shader.SwitchSplitInOut) {
			return 2
		}
		return 1
	},
	Run: func(inv *Invocation) {
		i := inv.GlobalID[0] + inv.GlobalID[1]*checkRowPitch + inv.GlobalID[2]*checkLayer
		if i >= checkElements {
			return
		}
		src := inv.Slots[0]
		dst := src
		if inv.Shader.Defined(shader.SwitchSplitInOut) {
			dst = inv.Slots[1]
		}
		v := src.Load(i)
		var acc uint32
		acc += v
		acc += v
		acc += v
		dst.Store(i, acc)
	},
}

// DefaultKernels returns the kernels known to a new device.
func DefaultKernels() map[string]Kernel {
	return map[string]Kernel{shader.DefaultEntryPoint: CheckKernel}
}
