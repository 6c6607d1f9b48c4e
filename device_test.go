package uavcheck

import (
	"errors"
	"testing"

	"github.com/gogpu/uavcheck/internal/gpu"
)

func TestOpenDeviceCPU(t *testing.T) {
	dev, err := OpenDevice(DeviceOptions{Backend: "CPU"})
	if err != nil {
		t.Fatalf("OpenDevice() error = %v", err)
	}
	defer dev.Destroy()

	if got := dev.Info().Backend; got != BackendCPU {
		t.Errorf("Info().Backend = %q, want %q", got, BackendCPU)
	}
}

func TestOpenDeviceNoop(t *testing.T) {
	dev, err := OpenDevice(DeviceOptions{Backend: BackendNoop, MemoryBudgetMB: 16})
	if err != nil {
		t.Fatalf("OpenDevice() error = %v", err)
	}
	defer dev.Destroy()

	if got := dev.Info().Backend; got != BackendNoop {
		t.Errorf("Info().Backend = %q, want %q", got, BackendNoop)
	}
}

func TestOpenDeviceUnknownBackend(t *testing.T) {
	_, err := OpenDevice(DeviceOptions{Backend: "metal"})
	if !errors.Is(err, gpu.ErrUnknownBackend) {
		t.Fatalf("OpenDevice() error = %v, want ErrUnknownBackend", err)
	}
}

func TestAdapters(t *testing.T) {
	tests := []struct {
		backend string
		name    string
	}{
		{BackendCPU, "CPU reference"},
		{BackendNoop, "Noop Adapter"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			adapters, err := Adapters(tt.backend)
			if err != nil {
				t.Fatalf("Adapters() error = %v", err)
			}
			if len(adapters) != 1 {
				t.Fatalf("len(adapters) = %d, want 1", len(adapters))
			}
			if adapters[0].Name != tt.name {
				t.Errorf("Name = %q, want %q", adapters[0].Name, tt.name)
			}
		})
	}
}
