// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan backend
)

// Backend names accepted by Open and Adapters.
const (
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

// Device acquisition errors.
var (
	ErrUnknownBackend     = errors.New("gpu: unknown backend")
	ErrBackendUnavailable = errors.New("gpu: backend not available")
	ErrNoAdapter          = errors.New("gpu: no GPU adapters found")
	ErrNotHALProvider     = errors.New("gpu: provider does not expose HAL types")
)

// Options configures a Device.
type Options struct {
	// Backend is BackendVulkan or BackendNoop. Empty selects Vulkan.
	Backend string

	// MemoryBudgetMB caps live buffer memory. Zero means unlimited.
	MemoryBudgetMB int

	// WaitTimeout bounds GPU waits. Zero selects DefaultWaitTimeout.
	WaitTimeout time.Duration
}

func (o Options) backend() string {
	if o.Backend == "" {
		return BackendVulkan
	}
	return strings.ToLower(o.Backend)
}

// createInstance creates a HAL instance for the named backend.
func createInstance(name string) (hal.Instance, error) {
	switch name {
	case BackendNoop:
		return noop.API{}.CreateInstance(nil)
	case BackendVulkan:
		backend, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, name)
		}
		instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			return nil, fmt.Errorf("gpu: create instance: %w", err)
		}
		return instance, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// selectAdapter prefers a discrete or integrated GPU over software and
// virtual adapters.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

func adapterInfo(backend string, info gputypes.AdapterInfo) gpucore.AdapterInfo {
	return gpucore.AdapterInfo{
		Name:       info.Name,
		Backend:    backend,
		DeviceType: info.DeviceType.String(),
	}
}

// Open creates an instance, selects an adapter and opens a device on it.
// Destroying the returned device releases all of them.
func Open(opts Options) (*Device, error) {
	name := opts.backend()
	instance, err := createInstance(name)
	if err != nil {
		return nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}
	info := adapterInfo(name, selected.Info)
	slogger().Info("gpu: device opened", "adapter", info.Name, "type", info.DeviceType, "backend", name)

	release := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return newDevice(openDev.Device, openDev.Queue, info, opts, release), nil
}

// FromProvider wraps the device of a host application. The provider must
// expose HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue. Destroying the returned device leaves the host device open.
func FromProvider(provider gpucontext.DeviceProvider, opts Options) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHALProvider)
	}

	pi := provider.AdapterInfo()
	info := gpucore.AdapterInfo{Name: pi.Name, Backend: "provider", DeviceType: pi.Type.String()}
	slogger().Info("gpu: using provider device", "adapter", info.Name, "type", info.DeviceType)
	return newDevice(device, queue, info, opts, nil), nil
}

// Adapters lists the adapters of a backend without opening a device.
func Adapters(backend string) ([]gpucore.AdapterInfo, error) {
	name := Options{Backend: backend}.backend()
	instance, err := createInstance(name)
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()

	exposed := instance.EnumerateAdapters(nil)
	out := make([]gpucore.AdapterInfo, 0, len(exposed))
	for _, a := range exposed {
		out = append(out, adapterInfo(name, a.Info))
	}
	return out, nil
}
