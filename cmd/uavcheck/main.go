// Command uavcheck runs the read/write buffer view check against a GPU or
// the CPU reference device.
package main

import (
	"os"

	"github.com/gogpu/uavcheck/cmd/uavcheck/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
