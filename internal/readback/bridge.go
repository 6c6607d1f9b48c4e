// Package readback copies device buffers into CPU-visible staging memory.
package readback

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/logging"
	"github.com/gogpu/uavcheck/internal/resource"
)

var logger logging.Logger

func slogger() *slog.Logger { return logger.Get() }

// SetLogger sets the package logger. Nil disables logging.
func SetLogger(l *slog.Logger) { logger.Set(l) }

// stagingUsage makes a buffer a copy target the CPU can map. Staging
// buffers are never bound to a kernel.
const stagingUsage = gpucore.BufferUsageMapRead | gpucore.BufferUsageCopyDst

// Bridge takes snapshots of device buffers.
type Bridge struct {
	device gpucore.Device
}

// NewBridge returns a bridge for device.
func NewBridge(device gpucore.Device) *Bridge {
	return &Bridge{device: device}
}

// Snapshot copies b into a new staging buffer and maps it.
//
// The copy waits for all work previously submitted against b, so the
// snapshot observes the results of earlier dispatches. The caller must
// Release the snapshot.
func (br *Bridge) Snapshot(b *resource.Buffer) (*Snapshot, error) {
	if b == nil {
		return nil, fmt.Errorf("readback: %w: nil buffer", gpucore.ErrInvalidArgument)
	}
	label := b.Desc().Label + " staging"
	id, err := br.device.CreateBuffer(&gpucore.BufferDesc{
		Label: label,
		Size:  b.Size(),
		Usage: stagingUsage,
	}, nil)
	if err != nil {
		return nil, gpucore.NewAllocationError("create staging buffer", label, gpucore.StatusOf(err), err)
	}

	s := &Snapshot{device: br.device, id: id}
	if err := br.device.CopyBuffer(id, b.ID()); err != nil {
		s.Release()
		return nil, fmt.Errorf("readback: copy %s: %w", b.Desc().Label, err)
	}
	data, err := br.device.MapRead(id)
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("readback: map %s: %w", label, err)
	}
	s.data = data
	s.mapped = true
	slogger().Debug("readback: snapshot mapped", "buffer", b.Desc().Label, "bytes", len(data))
	return s, nil
}

// Snapshot is a read-only CPU view of a staging copy. Its contents are
// valid until Release.
type Snapshot struct {
	device gpucore.Device
	id     gpucore.BufferID
	data   []byte
	mapped bool
	once   sync.Once
}

// Bytes returns the mapped bytes. The slice must not be modified or
// retained after Release.
func (s *Snapshot) Bytes() []byte { return s.data }

// Len returns the number of 32-bit words in the snapshot.
func (s *Snapshot) Len() int { return len(s.data) / 4 }

// Words decodes the snapshot as little-endian 32-bit words. It returns nil
// after Release.
func (s *Snapshot) Words() []uint32 {
	if s.data == nil {
		return nil
	}
	out := make([]uint32, s.Len())
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(s.data[i*4:])
	}
	return out
}

// Release unmaps and destroys the staging buffer. It is safe to call more
// than once and on a nil snapshot.
func (s *Snapshot) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.mapped {
			s.device.Unmap(s.id)
		}
		s.device.DestroyBuffer(s.id)
		s.data = nil
	})
}
