package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/harness"
	"github.com/gogpu/uavcheck/internal/shader"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a Device on the noop backend.
func createNoopDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	opts.Backend = BackendNoop
	d, err := Open(opts)
	if err != nil {
		t.Fatalf("Open(noop) failed: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

// spirvStub is a SPIR-V header the noop backend accepts as a module.
func spirvStub() []byte {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, 0x07230203)
	return code
}

// stubCompiler returns spirvStub for every configuration.
type stubCompiler struct{}

func (stubCompiler) Compile(path, entry string, sw shader.Switches) (*gpucore.ShaderBinary, error) {
	return &gpucore.ShaderBinary{Label: path, EntryPoint: entry, Defines: sw.Defines(), Code: spirvStub()}, nil
}

func TestOpenNoop(t *testing.T) {
	d := createNoopDevice(t, Options{})
	info := d.Info()
	if info.Name != "Noop Adapter" || info.Backend != BackendNoop {
		t.Errorf("Info() = %+v", info)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "metal2"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(metal2) = %v, want ErrUnknownBackend", err)
	}
}

func TestAdaptersNoop(t *testing.T) {
	list, err := Adapters(BackendNoop)
	if err != nil {
		t.Fatalf("Adapters: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Noop Adapter" {
		t.Errorf("Adapters(noop) = %+v", list)
	}
}

func TestUploadAndMapRead(t *testing.T) {
	d := createNoopDevice(t, Options{})

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	id, err := d.CreateBuffer(&gpucore.BufferDesc{
		Label: "staging",
		Size:  uint64(len(want)),
		Usage: gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst,
	}, want)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	got, err := d.MapRead(id)
	if err != nil {
		t.Fatalf("MapRead: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("MapRead = %v, want %v", got, want)
	}
	if _, err := d.MapRead(id); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("second MapRead = %v, want ErrAlreadyMapped", err)
	}
	d.Unmap(id)
	d.DestroyBuffer(id)
	if st := d.Stats(); st != (gpucore.Stats{}) {
		t.Errorf("Stats() = %+v, want zero", st)
	}
	if m := d.Memory(); m.UsedBytes != 0 || m.PeakBytes != uint64(len(want)) {
		t.Errorf("Memory() = %+v", m)
	}
}

func TestMemoryBudget(t *testing.T) {
	d := createNoopDevice(t, Options{MemoryBudgetMB: 1})

	_, err := d.CreateBuffer(&gpucore.BufferDesc{
		Size:  2 << 20,
		Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopySrc,
		Misc:  gpucore.BufferMiscAllowRawViews,
	}, nil)
	if got := gpucore.StatusOf(err); got != gpucore.StatusOutOfMemory {
		t.Errorf("status = %s, want %s (err %v)", got, gpucore.StatusOutOfMemory, err)
	}
	if !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Errorf("err = %v, want ErrMemoryBudgetExceeded", err)
	}
}

func TestDispatchWithoutBindings(t *testing.T) {
	d := createNoopDevice(t, Options{})

	if err := d.Dispatch(1, 1, 1); !errors.Is(err, ErrNoShader) {
		t.Errorf("Dispatch = %v, want ErrNoShader", err)
	}
	sh, err := d.CreateShader(&gpucore.ShaderBinary{Label: "k", EntryPoint: "CSMain", Code: spirvStub()})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	d.SetShader(sh)
	if err := d.Dispatch(1, 1, 1); !errors.Is(err, ErrNoViews) {
		t.Errorf("Dispatch = %v, want ErrNoViews", err)
	}
}

func TestCreateShaderRejectsMalformed(t *testing.T) {
	d := createNoopDevice(t, Options{})
	_, err := d.CreateShader(&gpucore.ShaderBinary{Code: []byte{1, 2, 3}})
	if got := gpucore.StatusOf(err); got != gpucore.StatusInvalidArg {
		t.Errorf("status = %s, want %s", got, gpucore.StatusInvalidArg)
	}
}

func TestPipelineCachedPerBindingCount(t *testing.T) {
	d := createNoopDevice(t, Options{})

	sh, err := d.CreateShader(&gpucore.ShaderBinary{Label: "k", EntryPoint: "CSMain", Code: spirvStub()})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	var views []gpucore.ViewID
	for range 2 {
		buf, err := d.CreateBuffer(&gpucore.BufferDesc{
			Size:  64,
			Usage: gpucore.BindUsages | gpucore.BufferUsageCopySrc,
			Misc:  gpucore.BufferMiscAllowRawViews,
		}, nil)
		if err != nil {
			t.Fatalf("CreateBuffer: %v", err)
		}
		v, err := d.CreateView(&gpucore.ViewDesc{
			Buffer: buf, Format: gpucore.ViewFormatR32Typeless, Flags: gpucore.ViewFlagRaw, NumElements: 16,
		})
		if err != nil {
			t.Fatalf("CreateView: %v", err)
		}
		views = append(views, v)
	}

	d.SetShader(sh)
	for _, n := range []int{1, 2, 1} {
		d.SetViews(0, []gpucore.ViewID{gpucore.InvalidID, gpucore.InvalidID})
		d.SetViews(0, views[:n])
		if err := d.Dispatch(3, 3, 3); err != nil {
			t.Fatalf("Dispatch(%d views): %v", n, err)
		}
	}
	if got := len(d.shaders[sh].pipelines); got != 2 {
		t.Errorf("cached pipelines = %d, want 2", got)
	}
	if got := len(d.pending); got != 3 {
		t.Errorf("pending submissions = %d, want 3", got)
	}
}

func TestRunnerOnNoopLeavesNoBindings(t *testing.T) {
	d := createNoopDevice(t, Options{})
	r := harness.NewRunner(d, stubCompiler{}, harness.Options{SourcePath: "compute.wgsl"})

	before := d.Stats()
	for _, cfg := range harness.Matrix() {
		res := r.Run(context.Background(), cfg)
		// The noop backend executes nothing, so the grid reads back as
		// zeros. The pipeline itself must not fail.
		if res.Status == harness.StatusAborted {
			t.Errorf("%s aborted: %v", cfg, res.Err)
		}
		if len(res.Grid) != harness.Elements {
			t.Errorf("%s: grid has %d elements", cfg, len(res.Grid))
		}
		if b := d.Bindings(); !b.Empty() {
			t.Errorf("%s: Bindings() = %+v, want empty", cfg, b)
		}
		if st := d.Stats(); st != before {
			t.Errorf("%s: Stats() = %+v, want %+v", cfg, st, before)
		}
	}
	if len(d.pending) != 0 {
		t.Errorf("pending submissions = %d after readbacks, want 0", len(d.pending))
	}
}

// baseProvider is a gpucontext.DeviceProvider without HAL handles.
type baseProvider struct{}

func (baseProvider) Device() gpucontext.Device             { return nil }
func (baseProvider) Queue() gpucontext.Queue               { return nil }
func (baseProvider) Adapter() gpucontext.Adapter           { return nil }
func (baseProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }

func (baseProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "host", Type: gpucontext.AdapterTypeSoftware}
}

// hostProvider exposes a noop device the way a host application does.
type hostProvider struct {
	baseProvider
	device hal.Device
	queue  hal.Queue
}

func (p *hostProvider) HalDevice() any { return p.device }
func (p *hostProvider) HalQueue() any  { return p.queue }

func TestFromProvider(t *testing.T) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	openDev, err := instance.EnumerateAdapters(nil)[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	d, err := FromProvider(&hostProvider{device: openDev.Device, queue: openDev.Queue}, Options{})
	if err != nil {
		t.Fatalf("FromProvider: %v", err)
	}
	if info := d.Info(); info.Name != "host" || info.DeviceType != "Software" {
		t.Errorf("Info() = %+v", info)
	}
	d.Destroy()

	if _, err := FromProvider(baseProvider{}, Options{}); !errors.Is(err, ErrNotHALProvider) {
		t.Errorf("FromProvider(base) = %v, want ErrNotHALProvider", err)
	}
}
