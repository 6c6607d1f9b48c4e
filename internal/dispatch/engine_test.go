package dispatch

import (
	"errors"
	"testing"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/cpu"
	"github.com/gogpu/uavcheck/internal/resource"
	"github.com/gogpu/uavcheck/internal/shader"
)

// recordingDevice wraps a device and records bind and dispatch calls.
type recordingDevice struct {
	gpucore.Device
	groups      [][3]uint32
	dispatchErr error
}

func (d *recordingDevice) Dispatch(x, y, z uint32) error {
	d.groups = append(d.groups, [3]uint32{x, y, z})
	if d.dispatchErr != nil {
		return d.dispatchErr
	}
	return d.Device.Dispatch(x, y, z)
}

func setup(t *testing.T, dispatchErr error) (*recordingDevice, gpucore.ShaderID, *resource.View) {
	t.Helper()
	base := cpu.New(cpu.Config{Workers: 1})
	t.Cleanup(base.Destroy)
	dev := &recordingDevice{Device: base, dispatchErr: dispatchErr}

	code := []byte{0x03, 0x02, 0x23, 0x07, 0, 0, 0, 0}
	sh, err := dev.CreateShader(&gpucore.ShaderBinary{
		EntryPoint: shader.DefaultEntryPoint,
		Code:       code,
		SourceHash: shader.BuiltinSourceHash(),
	})
	if err != nil {
		t.Fatalf("CreateShader: %v", err)
	}
	f := resource.NewFactory(dev)
	b, err := f.CreateRaw("buf", 729*4, resource.SeedWords(729, 1))
	if err != nil {
		t.Fatalf("CreateRaw: %v", err)
	}
	t.Cleanup(b.Release)
	v, err := f.CreateView(b)
	if err != nil {
		t.Fatalf("CreateView: %v", err)
	}
	t.Cleanup(v.Release)
	return dev, sh, v
}

func TestDispatchUnbinds(t *testing.T) {
	dev, sh, v := setup(t, nil)

	if err := NewEngine(dev).Dispatch(sh, []*resource.View{v}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(dev.groups) != 1 || dev.groups[0] != [3]uint32{GridX, GridY, GridZ} {
		t.Errorf("dispatches = %v, want one 3x3x3", dev.groups)
	}
	if b := dev.Bindings(); !b.Empty() {
		t.Errorf("Bindings() = %+v, want empty", b)
	}
}

func TestDispatchUnbindsOnError(t *testing.T) {
	boom := errors.New("device lost")
	dev, sh, v := setup(t, boom)

	err := NewEngine(dev).Dispatch(sh, []*resource.View{v})
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch = %v, want %v", err, boom)
	}
	if b := dev.Bindings(); !b.Empty() {
		t.Errorf("Bindings() = %+v after failure, want empty", b)
	}
}

func TestDispatchRejectsViewCount(t *testing.T) {
	dev, sh, v := setup(t, nil)
	e := NewEngine(dev)

	for _, views := range [][]*resource.View{nil, {v, v, v}, {nil}} {
		if err := e.Dispatch(sh, views); !errors.Is(err, gpucore.ErrInvalidArgument) {
			t.Errorf("Dispatch(%d views) = %v, want ErrInvalidArgument", len(views), err)
		}
	}
	if err := e.Dispatch(gpucore.InvalidID, []*resource.View{v}); !errors.Is(err, gpucore.ErrInvalidArgument) {
		t.Errorf("Dispatch(no shader) = %v, want ErrInvalidArgument", err)
	}
	if len(dev.groups) != 0 {
		t.Errorf("device saw %d dispatches, want 0", len(dev.groups))
	}
}
