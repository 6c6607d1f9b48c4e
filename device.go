package uavcheck

import (
	"fmt"
	"strings"
	"time"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/cpu"
	"github.com/gogpu/uavcheck/internal/gpu"
)

// Backend names accepted by OpenDevice.
const (
	BackendCPU    = "cpu"
	BackendVulkan = gpu.BackendVulkan
	BackendNoop   = gpu.BackendNoop
)

// DeviceOptions configures OpenDevice.
type DeviceOptions struct {
	// Backend selects the device. Empty selects BackendVulkan.
	Backend string

	// MemoryBudgetMB caps live buffer memory on GPU backends. Zero means
	// unlimited.
	MemoryBudgetMB int

	// WaitTimeout bounds GPU waits. Zero selects the gpu package default.
	WaitTimeout time.Duration

	// Workers is the number of goroutines of the CPU backend. Zero selects
	// GOMAXPROCS.
	Workers int
}

// OpenDevice acquires a device for the configured backend. The caller
// owns the device and must Destroy it.
func OpenDevice(opts DeviceOptions) (gpucore.Device, error) {
	switch backend := strings.ToLower(opts.Backend); backend {
	case BackendCPU:
		dev := cpu.New(cpu.Config{Workers: opts.Workers})
		Logger().Info("uavcheck: using CPU reference device", "workers", opts.Workers)
		return dev, nil
	case "", BackendVulkan, BackendNoop:
		dev, err := gpu.Open(gpu.Options{
			Backend:        backend,
			MemoryBudgetMB: opts.MemoryBudgetMB,
			WaitTimeout:    opts.WaitTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("uavcheck: open %s device: %w", backendName(backend), err)
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("uavcheck: %w: %q", gpu.ErrUnknownBackend, opts.Backend)
	}
}

// Adapters lists the adapters a backend exposes without opening a device.
func Adapters(backend string) ([]gpucore.AdapterInfo, error) {
	if strings.EqualFold(backend, BackendCPU) {
		dev := cpu.New(cpu.Config{Workers: 1})
		defer dev.Destroy()
		return []gpucore.AdapterInfo{dev.Info()}, nil
	}
	return gpu.Adapters(backend)
}

func backendName(b string) string {
	if b == "" {
		return BackendVulkan
	}
	return b
}
