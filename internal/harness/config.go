// Package harness runs the buffer view check over the configuration
// matrix and reports the outcome of each configuration.
package harness

import (
	"fmt"
	"strings"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/shader"
)

// Grid geometry and the values a check seeds and expects.
const (
	Elements = 729
	RowLen   = 27
	Seed     = 1
	Expected = 3

	// ElementSize is the record size of structured buffers.
	ElementSize = 4
)

// TestConfiguration selects the buffer layout and whether the kernel
// reads and writes the same buffer.
type TestConfiguration struct {
	UseStructuredLayout bool
	UseSplitBuffers     bool
}

// Switches returns the compile switches of c.
func (c TestConfiguration) Switches() shader.Switches {
	return shader.Switches{
		shader.SwitchStructured: c.UseStructuredLayout,
		shader.SwitchSplitInOut: c.UseSplitBuffers,
	}
}

// Layout returns the buffer layout c allocates.
func (c TestConfiguration) Layout() gpucore.Layout {
	if c.UseStructuredLayout {
		return gpucore.LayoutStructured
	}
	return gpucore.LayoutRaw
}

// Views returns the number of views c binds.
func (c TestConfiguration) Views() int {
	if c.UseSplitBuffers {
		return 2
	}
	return 1
}

// String describes c, e.g. "structured buffers, split input/output".
func (c TestConfiguration) String() string {
	layout := "raw buffers"
	if c.UseStructuredLayout {
		layout = "structured buffers"
	}
	mode := "in-place"
	if c.UseSplitBuffers {
		mode = "split input/output"
	}
	return layout + ", " + mode
}

// Matrix returns every configuration in run order.
func Matrix() []TestConfiguration {
	return []TestConfiguration{
		{UseStructuredLayout: true, UseSplitBuffers: true},
		{UseStructuredLayout: true, UseSplitBuffers: false},
		{UseStructuredLayout: false, UseSplitBuffers: true},
		{UseStructuredLayout: false, UseSplitBuffers: false},
	}
}

// ParseConfiguration parses a comma separated list of the words
// "structured", "raw", "split" and "inplace". Layout defaults to raw and
// mode to in-place.
func ParseConfiguration(s string) (TestConfiguration, error) {
	var c TestConfiguration
	for _, word := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(word)) {
		case "":
		case "structured":
			c.UseStructuredLayout = true
		case "raw":
			c.UseStructuredLayout = false
		case "split":
			c.UseSplitBuffers = true
		case "inplace", "in-place":
			c.UseSplitBuffers = false
		default:
			return TestConfiguration{}, fmt.Errorf("harness: unknown configuration word %q", word)
		}
	}
	return c, nil
}
