// Package dispatch binds a kernel and its views and launches the fixed
// check grid.
package dispatch

import (
	"fmt"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/resource"
)

// Thread group counts of every dispatch.
const (
	GridX = 3
	GridY = 3
	GridZ = 3
)

// MaxViews is the number of views a dispatch can bind: an in-place buffer,
// or an input and an output.
const MaxViews = 2

// Engine issues dispatches on a device.
type Engine struct {
	device gpucore.Device
}

// NewEngine returns an engine for device.
func NewEngine(device gpucore.Device) *Engine {
	return &Engine{device: device}
}

// Dispatch binds shader and views, starting at slot 0, and issues one
// GridX x GridY x GridZ dispatch. It does not wait for the work to finish.
//
// The shader and view slots are unbound before Dispatch returns, including
// when the device rejects the dispatch.
func (e *Engine) Dispatch(shader gpucore.ShaderID, views []*resource.View) error {
	if shader == gpucore.InvalidID {
		return fmt.Errorf("dispatch: %w: no shader", gpucore.ErrInvalidArgument)
	}
	if len(views) == 0 || len(views) > MaxViews {
		return fmt.Errorf("dispatch: %w: %d views, want 1 to %d", gpucore.ErrInvalidArgument, len(views), MaxViews)
	}
	ids := make([]gpucore.ViewID, len(views))
	for i, v := range views {
		if v == nil {
			return fmt.Errorf("dispatch: %w: nil view at slot %d", gpucore.ErrInvalidArgument, i)
		}
		ids[i] = v.ID()
	}

	e.device.SetShader(shader)
	e.device.SetViews(0, ids)
	defer func() {
		e.device.SetShader(gpucore.InvalidID)
		e.device.SetViews(0, make([]gpucore.ViewID, len(ids)))
	}()

	if err := e.device.Dispatch(GridX, GridY, GridZ); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	return nil
}
