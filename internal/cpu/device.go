// Package cpu provides a reference gpucore.Device that executes kernels in
// Go.
//
// Kernels are registered by entry point name. A shader binary is accepted
// when it is a SPIR-V module and a Go kernel exists for its entry point;
// the binary's defines select the kernel's variant. Dispatches are queued
// and run on a worker pool when a copy or map forces completion, which
// matches the submission model of hardware devices.
package cpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/logging"
)

// Errors returned by Dispatch, CopyBuffer and MapRead.
var (
	ErrNoShader        = errors.New("cpu: no shader bound")
	ErrUnboundSlot     = errors.New("cpu: kernel slot not bound")
	ErrUnknownResource = errors.New("cpu: unknown resource")
	ErrNotMappable     = errors.New("cpu: buffer not mappable")
	ErrAlreadyMapped   = errors.New("cpu: buffer already mapped")
	ErrSizeMismatch    = errors.New("cpu: copy size mismatch")
)

// DefaultMaxBufferSize bounds a single allocation.
const DefaultMaxBufferSize = 256 << 20

const spirvMagic = 0x07230203

var logger logging.Logger

func slogger() *slog.Logger { return logger.Get() }

// SetLogger sets the logger used by CPU devices. Nil disables logging.
func SetLogger(l *slog.Logger) { logger.Set(l) }

// Config configures a Device.
type Config struct {
	// Kernels maps entry point names to implementations.
	// Nil selects DefaultKernels.
	Kernels map[string]Kernel

	// Workers is the number of goroutines running thread groups.
	// Zero selects GOMAXPROCS.
	Workers int

	// MaxBufferSize bounds a single allocation. Zero selects
	// DefaultMaxBufferSize.
	MaxBufferSize uint64
}

type shaderObj struct {
	bin    *gpucore.ShaderBinary
	kernel Kernel
}

type buffer struct {
	desc   gpucore.BufferDesc
	data   []byte
	mapped bool
	views  map[gpucore.ViewID]struct{}
}

type view struct {
	desc   gpucore.ViewDesc
	buffer *buffer
	stride uint32
}

// dispatchCmd is a recorded dispatch waiting for completion.
type dispatchCmd struct {
	shader  *shaderObj
	slots   []*Binding
	x, y, z uint32
}

// Device is the CPU reference device. It is safe for concurrent use.
type Device struct {
	mu      sync.Mutex
	kernels map[string]Kernel
	maxSize uint64
	pool    *groupPool

	nextID  uint64
	shaders map[gpucore.ShaderID]*shaderObj
	buffers map[gpucore.BufferID]*buffer
	views   map[gpucore.ViewID]*view
	bound   gpucore.Bindings
	pending []dispatchCmd

	destroyed bool
}

var _ gpucore.Device = (*Device)(nil)

// New returns a CPU device.
func New(cfg Config) *Device {
	kernels := cfg.Kernels
	if kernels == nil {
		kernels = DefaultKernels()
	}
	maxSize := cfg.MaxBufferSize
	if maxSize == 0 {
		maxSize = DefaultMaxBufferSize
	}
	return &Device{
		kernels: kernels,
		maxSize: maxSize,
		pool:    newGroupPool(cfg.Workers),
		shaders: make(map[gpucore.ShaderID]*shaderObj),
		buffers: make(map[gpucore.BufferID]*buffer),
		views:   make(map[gpucore.ViewID]*view),
	}
}

// Info describes the reference adapter.
func (d *Device) Info() gpucore.AdapterInfo {
	return gpucore.AdapterInfo{Name: "CPU reference", Backend: "cpu", DeviceType: "cpu"}
}

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

func invalidArg(op, label, format string, args ...any) error {
	return gpucore.NewAllocationError(op, label, gpucore.StatusInvalidArg,
		fmt.Errorf("cpu: %w: "+format, append([]any{gpucore.ErrInvalidArgument}, args...)...))
}

// CreateShader accepts a SPIR-V binary with a registered entry point
// compiled from the source that kernel mirrors.
func (d *Device) CreateShader(bin *gpucore.ShaderBinary) (gpucore.ShaderID, error) {
	if bin == nil {
		return gpucore.InvalidID, invalidArg("create shader", "", "nil binary")
	}
	if len(bin.Code) < 4 || binary.LittleEndian.Uint32(bin.Code) != spirvMagic {
		return gpucore.InvalidID, invalidArg("create shader", bin.Label, "not a SPIR-V module")
	}
	k, ok := d.kernels[bin.EntryPoint]
	if !ok {
		return gpucore.InvalidID, invalidArg("create shader", bin.Label, "no kernel for entry point %q", bin.EntryPoint)
	}
	if k.SourceHash != 0 && bin.SourceHash != k.SourceHash {
		return gpucore.InvalidID, invalidArg("create shader", bin.Label,
			"no kernel for source %016x, only the bundled kernel runs on the CPU", bin.SourceHash)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.ShaderID(d.newID())
	d.shaders[id] = &shaderObj{bin: bin, kernel: k}
	slogger().Debug("cpu: shader created", "id", id, "entry", bin.EntryPoint, "defines", bin.Defines)
	return id, nil
}

// DestroyShader releases a shader.
func (d *Device) DestroyShader(id gpucore.ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.shaders[id]; !ok {
		return
	}
	delete(d.shaders, id)
	if d.bound.Shader == id {
		d.bound.Shader = gpucore.InvalidID
	}
}

// CreateBuffer allocates a zero-filled buffer and copies initial into it.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc, initial []byte) (gpucore.BufferID, error) {
	if desc == nil {
		return gpucore.InvalidID, invalidArg("create buffer", "", "nil descriptor")
	}
	if err := gpucore.ValidateBuffer(desc, initial); err != nil {
		return gpucore.InvalidID, gpucore.NewAllocationError("create buffer", desc.Label, gpucore.StatusInvalidArg, err)
	}
	if desc.Size > d.maxSize {
		return gpucore.InvalidID, gpucore.NewAllocationError("create buffer", desc.Label, gpucore.StatusOutOfMemory,
			fmt.Errorf("cpu: %d bytes exceeds limit %d", desc.Size, d.maxSize))
	}

	b := &buffer{desc: *desc, data: make([]byte, desc.Size), views: make(map[gpucore.ViewID]struct{})}
	copy(b.data, initial)

	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = b
	slogger().Debug("cpu: buffer created", "id", id, "label", desc.Label, "size", desc.Size,
		"layout", desc.Misc.Layout().String())
	return id, nil
}

// DestroyBuffer releases a buffer and its views.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	for vid := range b.views {
		d.destroyViewLocked(vid)
	}
	delete(d.buffers, id)
}

// CreateView validates desc against the buffer layout.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewID, error) {
	const op = "create view"
	if desc == nil {
		return gpucore.InvalidID, invalidArg(op, "", "nil descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[desc.Buffer]
	if !ok {
		return gpucore.InvalidID, invalidArg(op, desc.Label, "unknown buffer %d", desc.Buffer)
	}
	stride, err := gpucore.ViewStride(&b.desc, desc)
	if err != nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, gpucore.StatusInvalidArg, err)
	}

	id := gpucore.ViewID(d.newID())
	d.views[id] = &view{desc: *desc, buffer: b, stride: stride}
	b.views[id] = struct{}{}
	slogger().Debug("cpu: view created", "id", id, "buffer", desc.Buffer,
		"format", desc.Format.String(), "elements", desc.NumElements)
	return id, nil
}

// DestroyView releases a view.
func (d *Device) DestroyView(id gpucore.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyViewLocked(id)
}

func (d *Device) destroyViewLocked(id gpucore.ViewID) {
	v, ok := d.views[id]
	if !ok {
		return
	}
	delete(v.buffer.views, id)
	delete(d.views, id)
	for i, slot := range d.bound.Views {
		if slot == id {
			d.bound.Views[i] = gpucore.InvalidID
		}
	}
}

// SetShader binds the active shader. Unknown IDs unbind.
func (d *Device) SetShader(id gpucore.ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.shaders[id]; !ok && id != gpucore.InvalidID {
		slogger().Warn("cpu: binding unknown shader", "id", id)
		id = gpucore.InvalidID
	}
	d.bound.Shader = id
}

// SetViews binds views to consecutive slots. Unknown IDs and slots past
// gpucore.MaxViewSlots are ignored.
func (d *Device) SetViews(start uint32, ids []gpucore.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, id := range ids {
		slot := start + uint32(i)
		if slot >= gpucore.MaxViewSlots {
			slogger().Warn("cpu: view slot out of range", "slot", slot)
			break
		}
		if _, ok := d.views[id]; !ok && id != gpucore.InvalidID {
			slogger().Warn("cpu: binding unknown view", "id", id, "slot", slot)
			id = gpucore.InvalidID
		}
		d.bound.Views[slot] = id
	}
}

// Dispatch records a dispatch of the bound shader. It runs when a later
// copy or map forces completion.
func (d *Device) Dispatch(x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.shaders[d.bound.Shader]
	if !ok {
		return ErrNoShader
	}
	need := s.kernel.Slots(s.bin)
	slots := make([]*Binding, need)
	for i := range need {
		v, ok := d.views[d.bound.Views[i]]
		if !ok {
			return fmt.Errorf("%w: slot %d", ErrUnboundSlot, i)
		}
		slots[i] = newBinding(v)
	}
	d.pending = append(d.pending, dispatchCmd{shader: s, slots: slots, x: x, y: y, z: z})
	slogger().Debug("cpu: dispatch recorded", "groups", [3]uint32{x, y, z}, "slots", need)
	return nil
}

// flushLocked runs all pending dispatches in submission order.
func (d *Device) flushLocked() {
	for _, cmd := range d.pending {
		d.run(cmd)
	}
	d.pending = d.pending[:0]
}

// run executes one dispatch, one pool task per thread group.
func (d *Device) run(cmd dispatchCmd) {
	wg := cmd.shader.kernel.WorkgroupSize
	groups := make([]func(), 0, cmd.x*cmd.y*cmd.z)
	for gz := range cmd.z {
		for gy := range cmd.y {
			for gx := range cmd.x {
				group := [3]uint32{gx, gy, gz}
				groups = append(groups, func() {
					inv := Invocation{GroupID: group, Shader: cmd.shader.bin, Slots: cmd.slots}
					for lz := range wg[2] {
						for ly := range wg[1] {
							for lx := range wg[0] {
								inv.LocalID = [3]uint32{lx, ly, lz}
								inv.GlobalID = [3]uint32{
									group[0]*wg[0] + lx,
									group[1]*wg[1] + ly,
									group[2]*wg[2] + lz,
								}
								cmd.shader.kernel.Run(&inv)
							}
						}
					}
				})
			}
		}
	}
	d.pool.runAll(groups)
}

// CopyBuffer completes pending work and copies src into dst.
func (d *Device) CopyBuffer(dst, src gpucore.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()

	s, ok := d.buffers[src]
	if !ok {
		return fmt.Errorf("%w: source buffer %d", ErrUnknownResource, src)
	}
	t, ok := d.buffers[dst]
	if !ok {
		return fmt.Errorf("%w: destination buffer %d", ErrUnknownResource, dst)
	}
	if !s.desc.Usage.Has(gpucore.BufferUsageCopySrc) || !t.desc.Usage.Has(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("cpu: %w: copy usages missing", gpucore.ErrInvalidArgument)
	}
	if s.desc.Size != t.desc.Size {
		return fmt.Errorf("%w: %d != %d", ErrSizeMismatch, s.desc.Size, t.desc.Size)
	}
	copy(t.data, s.data)
	return nil
}

// MapRead maps a mappable buffer.
func (d *Device) MapRead(id gpucore.BufferID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()

	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if !b.desc.Usage.Has(gpucore.BufferUsageMapRead) {
		return nil, ErrNotMappable
	}
	if b.mapped {
		return nil, ErrAlreadyMapped
	}
	b.mapped = true
	return b.data, nil
}

// Unmap releases a mapping.
func (d *Device) Unmap(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		b.mapped = false
	}
}

// Bindings reports the binding slots.
func (d *Device) Bindings() gpucore.Bindings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bound
}

// Stats reports live object counts.
func (d *Device) Stats() gpucore.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := gpucore.Stats{Shaders: len(d.shaders), Buffers: len(d.buffers), Views: len(d.views)}
	for _, b := range d.buffers {
		if b.mapped {
			st.Mapped++
		}
	}
	return st
}

// Destroy completes pending work and releases everything.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.flushLocked()
	d.pool.close()
	clear(d.shaders)
	clear(d.buffers)
	clear(d.views)
	d.bound = gpucore.Bindings{}
}
