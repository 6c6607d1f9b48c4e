package gpu

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/shader"
	"github.com/gogpu/wgpu/hal"
)

// Errors returned by Dispatch, CopyBuffer and MapRead.
var (
	ErrNoShader        = errors.New("gpu: no shader bound")
	ErrNoViews         = errors.New("gpu: no view bound at slot 0")
	ErrUnknownResource = errors.New("gpu: unknown resource")
	ErrNotMappable     = errors.New("gpu: buffer not mappable")
	ErrAlreadyMapped   = errors.New("gpu: buffer already mapped")
	ErrSizeMismatch    = errors.New("gpu: copy size mismatch")
	ErrDestroyed       = errors.New("gpu: device destroyed")
)

// DefaultWaitTimeout bounds how long CopyBuffer waits for the GPU.
const DefaultWaitTimeout = 5 * time.Second

// pollInterval is the sleep between completion polls.
const pollInterval = 100 * time.Microsecond

type shaderObj struct {
	label     string
	entry     string
	module    hal.ShaderModule
	pipelines map[int]*pipeline
}

// pipeline is a compute pipeline for a fixed number of storage bindings.
type pipeline struct {
	bindLayout hal.BindGroupLayout
	layout     hal.PipelineLayout
	compute    hal.ComputePipeline
}

type buffer struct {
	desc   gpucore.BufferDesc
	hal    hal.Buffer
	mapped bool
	views  map[gpucore.ViewID]struct{}
}

type view struct {
	desc   gpucore.ViewDesc
	buffer *buffer
	stride uint32
}

// pendingWork is submitted work whose resources are freed after the next
// completed wait.
type pendingWork struct {
	cmd       hal.CommandBuffer
	bindGroup hal.BindGroup
	index     uint64
}

// Device is a gpucore.Device on a HAL device and queue.
type Device struct {
	mu sync.Mutex

	device   hal.Device
	queue    hal.Queue
	info     gpucore.AdapterInfo
	release  func()
	budget   *memoryBudget
	timeout  time.Duration

	// submitted is the last submission index handed out by the queue.
	submitted uint64

	nextID  uint64
	shaders map[gpucore.ShaderID]*shaderObj
	buffers map[gpucore.BufferID]*buffer
	views   map[gpucore.ViewID]*view
	bound   gpucore.Bindings
	pending []pendingWork

	destroyed bool
}

var _ gpucore.Device = (*Device)(nil)

// newDevice wraps device and queue. release, when non-nil, runs after the
// device resources are destroyed.
func newDevice(device hal.Device, queue hal.Queue, info gpucore.AdapterInfo, opts Options, release func()) *Device {
	timeout := opts.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Device{
		device:  device,
		queue:   queue,
		info:    info,
		release: release,
		budget:  newMemoryBudget(opts.MemoryBudgetMB),
		timeout: timeout,
		shaders: make(map[gpucore.ShaderID]*shaderObj),
		buffers: make(map[gpucore.BufferID]*buffer),
		views:   make(map[gpucore.ViewID]*view),
	}
}

// Info describes the adapter.
func (d *Device) Info() gpucore.AdapterInfo { return d.info }

// Memory reports buffer memory accounting.
func (d *Device) Memory() MemoryStats { return d.budget.stats() }

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// halStatus maps HAL errors to device status codes.
func halStatus(err error) gpucore.Status {
	switch {
	case err == nil:
		return gpucore.StatusOK
	case errors.Is(err, hal.ErrDeviceOutOfMemory), errors.Is(err, ErrMemoryBudgetExceeded):
		return gpucore.StatusOutOfMemory
	case errors.Is(err, hal.ErrDeviceLost):
		return gpucore.StatusDeviceLost
	case errors.Is(err, hal.ErrTimeout):
		return gpucore.StatusWaitTimeout
	case errors.Is(err, gpucore.ErrInvalidArgument), errors.Is(err, hal.ErrInvalidMapRange):
		return gpucore.StatusInvalidArg
	default:
		return gpucore.StatusFail
	}
}

func deviceError(op string, err error) error {
	return &gpucore.DeviceError{Op: op, Status: halStatus(err), Err: err}
}

// CreateShader creates a shader module from a SPIR-V binary.
func (d *Device) CreateShader(bin *gpucore.ShaderBinary) (gpucore.ShaderID, error) {
	const op = "create shader"
	if bin == nil || len(bin.Code) == 0 || len(bin.Code)%4 != 0 {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, "", gpucore.StatusInvalidArg,
			fmt.Errorf("gpu: %w: malformed SPIR-V", gpucore.ErrInvalidArgument))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  bin.Label,
		Source: hal.ShaderSource{SPIRV: shader.Words(bin.Code)},
	})
	if err != nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, bin.Label, halStatus(err), err)
	}
	id := gpucore.ShaderID(d.newID())
	d.shaders[id] = &shaderObj{
		label:     bin.Label,
		entry:     bin.EntryPoint,
		module:    module,
		pipelines: make(map[int]*pipeline),
	}
	slogger().Debug("gpu: shader created", "id", id, "entry", bin.EntryPoint, "words", len(bin.Code)/4)
	return id, nil
}

// DestroyShader releases a shader and its pipelines.
func (d *Device) DestroyShader(id gpucore.ShaderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.shaders[id]
	if !ok {
		return
	}
	// Pending dispatches may still reference the pipelines.
	d.drainLocked()
	d.destroyShaderLocked(s)
	delete(d.shaders, id)
	if d.bound.Shader == id {
		d.bound.Shader = gpucore.InvalidID
	}
}

func (d *Device) destroyShaderLocked(s *shaderObj) {
	for _, p := range s.pipelines {
		d.device.DestroyComputePipeline(p.compute)
		d.device.DestroyPipelineLayout(p.layout)
		d.device.DestroyBindGroupLayout(p.bindLayout)
	}
	clear(s.pipelines)
	d.device.DestroyShaderModule(s.module)
}

// halUsage translates buffer usages. Both bind usages become storage.
func halUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u.Has(gpucore.BufferUsageMapRead) {
		out |= gputypes.BufferUsageMapRead
	}
	if u.Has(gpucore.BufferUsageCopySrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(gpucore.BufferUsageCopyDst) {
		out |= gputypes.BufferUsageCopyDst
	}
	if u&gpucore.BindUsages != 0 {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

// CreateBuffer creates a buffer and uploads initial.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc, initial []byte) (gpucore.BufferID, error) {
	const op = "create buffer"
	if desc == nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, "", gpucore.StatusInvalidArg,
			fmt.Errorf("gpu: %w: nil descriptor", gpucore.ErrInvalidArgument))
	}
	if err := gpucore.ValidateBuffer(desc, initial); err != nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, gpucore.StatusInvalidArg, err)
	}
	usage := halUsage(desc.Usage)
	if initial != nil {
		usage |= gputypes.BufferUsageCopyDst
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	if err := d.budget.reserve(desc.Size); err != nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, gpucore.StatusOutOfMemory, err)
	}
	hb, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		d.budget.release(desc.Size)
		return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, halStatus(err), err)
	}
	if initial != nil {
		if err := d.queue.WriteBuffer(hb, 0, initial[:desc.Size]); err != nil {
			d.device.DestroyBuffer(hb)
			d.budget.release(desc.Size)
			return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, halStatus(err), err)
		}
	}

	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{desc: *desc, hal: hb, views: make(map[gpucore.ViewID]struct{})}
	slogger().Debug("gpu: buffer created", "id", id, "label", desc.Label, "size", desc.Size,
		"layout", desc.Misc.Layout().String())
	return id, nil
}

// DestroyBuffer releases a buffer and its views. Pending work that may
// use the buffer is completed first.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	d.drainLocked()
	for vid := range b.views {
		d.destroyViewLocked(vid)
	}
	if b.mapped {
		if err := d.device.UnmapBuffer(b.hal); err != nil {
			slogger().Warn("gpu: unmap on destroy failed", "buffer", b.desc.Label, "error", err)
		}
	}
	d.device.DestroyBuffer(b.hal)
	d.budget.release(b.desc.Size)
	delete(d.buffers, id)
}

// CreateView validates desc against its buffer.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewID, error) {
	const op = "create view"
	if desc == nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, "", gpucore.StatusInvalidArg,
			fmt.Errorf("gpu: %w: nil descriptor", gpucore.ErrInvalidArgument))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[desc.Buffer]
	if !ok {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, gpucore.StatusInvalidArg,
			fmt.Errorf("gpu: %w: unknown buffer %d", gpucore.ErrInvalidArgument, desc.Buffer))
	}
	stride, err := gpucore.ViewStride(&b.desc, desc)
	if err != nil {
		return gpucore.InvalidID, gpucore.NewAllocationError(op, desc.Label, gpucore.StatusInvalidArg, err)
	}
	id := gpucore.ViewID(d.newID())
	d.views[id] = &view{desc: *desc, buffer: b, stride: stride}
	b.views[id] = struct{}{}
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
		slogger().Warn("gpu: binding unknown shader", "id", id)
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
			slogger().Warn("gpu: view slot out of range", "slot", slot)
			break
		}
		if _, ok := d.views[id]; !ok && id != gpucore.InvalidID {
			slogger().Warn("gpu: binding unknown view", "id", id, "slot", slot)
			id = gpucore.InvalidID
		}
		d.bound.Views[slot] = id
	}
}

// boundViewsLocked returns the views bound in consecutive slots from 0.
func (d *Device) boundViewsLocked() []*view {
	var out []*view
	for _, id := range d.bound.Views {
		v, ok := d.views[id]
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// pipelineLocked returns the pipeline of s for n storage bindings,
// building it on first use.
func (d *Device) pipelineLocked(s *shaderObj, n int) (*pipeline, error) {
	if p, ok := s.pipelines[n]; ok {
		return p, nil
	}
	entries := make([]gputypes.BindGroupLayoutEntry, n)
	for i := range entries {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   s.label + " bind layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group layout: %w", err)
	}
	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            s.label + " pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("gpu: create pipeline layout: %w", err)
	}
	compute, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  s.label,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     s.module,
			EntryPoint: s.entry,
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(layout)
		d.device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("gpu: create compute pipeline: %w", err)
	}
	p := &pipeline{bindLayout: bindLayout, layout: layout, compute: compute}
	s.pipelines[n] = p
	slogger().Debug("gpu: pipeline built", "shader", s.label, "entry", s.entry, "bindings", n)
	return p, nil
}

// Dispatch encodes and submits one compute pass over the bound views. It
// does not wait for the GPU.
func (d *Device) Dispatch(x, y, z uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}

	s, ok := d.shaders[d.bound.Shader]
	if !ok {
		return ErrNoShader
	}
	views := d.boundViewsLocked()
	if len(views) == 0 {
		return ErrNoViews
	}
	p, err := d.pipelineLocked(s, len(views))
	if err != nil {
		return deviceError("dispatch", err)
	}

	entries := make([]gputypes.BindGroupEntry, len(views))
	for i, v := range views {
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i),
			Resource: gputypes.BufferBinding{
				Buffer: v.buffer.hal.NativeHandle(),
				Offset: uint64(v.desc.FirstElement) * uint64(v.stride),
				Size:   uint64(v.desc.NumElements) * uint64(v.stride),
			},
		}
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   s.label + " bind group",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return deviceError("dispatch", fmt.Errorf("create bind group: %w", err))
	}

	cmd, err := d.encode("dispatch", func(enc hal.CommandEncoder) {
		pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: s.label})
		pass.SetPipeline(p.compute)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(x, y, z)
		pass.End()
	})
	if err != nil {
		d.device.DestroyBindGroup(bg)
		return err
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		d.device.DestroyBindGroup(bg)
		return deviceError("submit dispatch", err)
	}
	d.submitted = index
	d.pending = append(d.pending, pendingWork{cmd: cmd, bindGroup: bg, index: index})
	slogger().Debug("gpu: dispatch submitted", "groups", [3]uint32{x, y, z},
		"bindings", len(views), "submission", index)
	return nil
}

// encode records a single command buffer.
func (d *Device) encode(label string, record func(hal.CommandEncoder)) (hal.CommandBuffer, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, deviceError("create command encoder", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, deviceError("begin encoding", err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return nil, deviceError("end encoding", err)
	}
	return cmd, nil
}

// waitLocked blocks until submission index has completed or the timeout
// passes.
func (d *Device) waitLocked(index uint64) error {
	deadline := time.Now().Add(d.timeout)
	for d.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return deviceError("wait", fmt.Errorf("submission %d after %s: %w", index, d.timeout, hal.ErrTimeout))
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// freePendingLocked releases the resources of completed submissions.
func (d *Device) freePendingLocked() {
	done := d.queue.PollCompleted()
	kept := d.pending[:0]
	for _, w := range d.pending {
		if w.index > done {
			kept = append(kept, w)
			continue
		}
		d.device.FreeCommandBuffer(w.cmd)
		d.device.DestroyBindGroup(w.bindGroup)
	}
	d.pending = kept
}

// drainLocked waits for all submitted work before resources it may use are
// destroyed.
func (d *Device) drainLocked() {
	if len(d.pending) == 0 {
		return
	}
	if err := d.waitLocked(d.submitted); err != nil {
		slogger().Warn("gpu: drain failed, waiting for idle", "error", err)
		if err := d.device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle failed", "error", err)
		}
	}
	d.freePendingLocked()
}

// CopyBuffer copies src into dst and waits for all prior work.
func (d *Device) CopyBuffer(dst, src gpucore.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}

	s, ok := d.buffers[src]
	if !ok {
		return fmt.Errorf("%w: source buffer %d", ErrUnknownResource, src)
	}
	t, ok := d.buffers[dst]
	if !ok {
		return fmt.Errorf("%w: destination buffer %d", ErrUnknownResource, dst)
	}
	if !s.desc.Usage.Has(gpucore.BufferUsageCopySrc) || !t.desc.Usage.Has(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("gpu: %w: copy usages missing", gpucore.ErrInvalidArgument)
	}
	if s.desc.Size != t.desc.Size {
		return fmt.Errorf("%w: %d != %d", ErrSizeMismatch, s.desc.Size, t.desc.Size)
	}

	cmd, err := d.encode("copy", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(s.hal, t.hal, []hal.BufferCopy{{Size: s.desc.Size}})
	})
	if err != nil {
		return err
	}
	defer d.device.FreeCommandBuffer(cmd)
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return deviceError("submit copy", err)
	}
	d.submitted = index
	if err := d.waitLocked(index); err != nil {
		return err
	}
	d.freePendingLocked()
	slogger().Debug("gpu: copy complete", "src", s.desc.Label, "dst", t.desc.Label,
		"bytes", s.desc.Size, "submission", index)
	return nil
}

// MapRead maps a mappable buffer and returns a copy of its contents.
func (d *Device) MapRead(id gpucore.BufferID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

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
	m, err := d.device.MapBuffer(b.hal, 0, b.desc.Size)
	if err != nil {
		return nil, deviceError("map buffer", err)
	}
	b.mapped = true
	out := make([]byte, b.desc.Size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), b.desc.Size))
	return out, nil
}

// Unmap releases a mapping.
func (d *Device) Unmap(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok || !b.mapped {
		return
	}
	if err := d.device.UnmapBuffer(b.hal); err != nil {
		slogger().Warn("gpu: unmap failed", "buffer", b.desc.Label, "error", err)
	}
	b.mapped = false
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

// Destroy waits for submitted work, destroys every resource and releases
// the device if it was opened by this package.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.drainLocked()

	for _, b := range d.buffers {
		if b.mapped {
			_ = d.device.UnmapBuffer(b.hal)
		}
		d.device.DestroyBuffer(b.hal)
	}
	for _, s := range d.shaders {
		d.destroyShaderLocked(s)
	}
	clear(d.buffers)
	clear(d.views)
	clear(d.shaders)
	d.bound = gpucore.Bindings{}

	if d.release != nil {
		d.release()
	}
	slogger().Debug("gpu: device destroyed", "adapter", d.info.Name)
}
