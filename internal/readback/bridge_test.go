package readback

import (
	"errors"
	"testing"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/cpu"
	"github.com/gogpu/uavcheck/internal/resource"
)

func TestSnapshotRoundTrip(t *testing.T) {
	d := cpu.New(cpu.Config{Workers: 1})
	defer d.Destroy()
	f := resource.NewFactory(d)

	seed := resource.SeedWords(729, 7)
	for _, create := range []func() (*resource.Buffer, error){
		func() (*resource.Buffer, error) { return f.CreateRaw("raw", 729*4, seed) },
		func() (*resource.Buffer, error) { return f.CreateStructured("structured", 4, 729, seed) },
	} {
		b, err := create()
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		s, err := NewBridge(d).Snapshot(b)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if string(s.Bytes()) != string(seed) {
			t.Errorf("%s: snapshot bytes differ from seed", b.Desc().Label)
		}
		if s.Len() != 729 {
			t.Errorf("Len() = %d, want 729", s.Len())
		}
		for i, w := range s.Words() {
			if w != 7 {
				t.Fatalf("word %d = %d, want 7", i, w)
			}
		}
		s.Release()
		s.Release()
		if s.Words() != nil {
			t.Error("Words() after Release is not nil")
		}
		b.Release()
	}
	if st := d.Stats(); st != (gpucore.Stats{}) {
		t.Errorf("Stats() = %+v, want zero", st)
	}
}

// failingDevice fails copies or allocations on demand.
type failingDevice struct {
	gpucore.Device
	copyErr  error
	allocErr error
	calls    int
}

func (d *failingDevice) CreateBuffer(desc *gpucore.BufferDesc, initial []byte) (gpucore.BufferID, error) {
	d.calls++
	if d.allocErr != nil && d.calls > 1 {
		return gpucore.InvalidID, d.allocErr
	}
	return d.Device.CreateBuffer(desc, initial)
}

func (d *failingDevice) CopyBuffer(dst, src gpucore.BufferID) error {
	if d.copyErr != nil {
		return d.copyErr
	}
	return d.Device.CopyBuffer(dst, src)
}

func TestSnapshotCopyFailureReleasesStaging(t *testing.T) {
	base := cpu.New(cpu.Config{Workers: 1})
	defer base.Destroy()
	boom := errors.New("device removed")
	d := &failingDevice{Device: base, copyErr: boom}

	b, err := resource.NewFactory(d).CreateRaw("raw", 64, nil)
	if err != nil {
		t.Fatalf("CreateRaw: %v", err)
	}
	defer b.Release()

	s, err := NewBridge(d).Snapshot(b)
	if !errors.Is(err, boom) || s != nil {
		t.Fatalf("Snapshot = %v, %v; want nil, %v", s, err, boom)
	}
	if got := base.Stats().Buffers; got != 1 {
		t.Errorf("live buffers = %d, want 1", got)
	}
}

func TestSnapshotStagingFailure(t *testing.T) {
	base := cpu.New(cpu.Config{Workers: 1})
	defer base.Destroy()
	d := &failingDevice{Device: base, allocErr: gpucore.NewAllocationError("create buffer", "", gpucore.StatusOutOfMemory, nil)}

	b, err := resource.NewFactory(d).CreateRaw("raw", 64, nil)
	if err != nil {
		t.Fatalf("CreateRaw: %v", err)
	}
	defer b.Release()

	_, err = NewBridge(d).Snapshot(b)
	var ae *gpucore.AllocationError
	if !errors.As(err, &ae) || ae.Op != "create staging buffer" {
		t.Fatalf("Snapshot = %v, want create staging buffer AllocationError", err)
	}
	if ae.Status != gpucore.StatusOutOfMemory {
		t.Errorf("Status = %s, want %s", ae.Status, gpucore.StatusOutOfMemory)
	}
}

func TestNilSnapshotRelease(t *testing.T) {
	var s *Snapshot
	s.Release()
}
