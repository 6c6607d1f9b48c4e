package shader

import (
	"sort"

	"github.com/gogpu/uavcheck/gpucore"
)

// Feature switches understood by the bundled kernel.
const (
	// SwitchStructured selects arrays of records instead of raw words.
	SwitchStructured = "STRUCTURED_BUFFERS"

	// SwitchSplitInOut selects a separate output buffer at binding 1.
	SwitchSplitInOut = "SPLIT_INOUT"
)

// KnownSwitches lists the switches of the bundled kernel.
var KnownSwitches = []string{SwitchSplitInOut, SwitchStructured}

// defineValue is the value every enabled switch is defined to.
const defineValue = "1"

// Switches is a set of named boolean feature switches.
// An absent switch and a false switch are equivalent.
type Switches map[string]bool

// Defines returns the preprocessor symbols for s, sorted by name.
// Each true switch appears exactly once with value "1"; false switches are
// omitted, never defined as false.
func (s Switches) Defines() []gpucore.Define {
	defines := make([]gpucore.Define, 0, len(s))
	for name, on := range s {
		if on {
			defines = append(defines, gpucore.Define{Name: name, Value: defineValue})
		}
	}
	sort.Slice(defines, func(i, j int) bool { return defines[i].Name < defines[j].Name })
	return defines
}

// set returns the enabled switch names as a lookup set.
func (s Switches) set() map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for name, on := range s {
		if on {
			m[name] = struct{}{}
		}
	}
	return m
}
