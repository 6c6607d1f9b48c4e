package commands

import (
	"github.com/spf13/cobra"

	"github.com/gogpu/uavcheck/internal/shader"
)

func newKernelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "kernel",
		Short: "Print the embedded check kernel",
		Long: `Kernel writes the embedded WGSL kernel to standard output. Save it,
edit it and pass it to run with --shader to test a modified kernel on a
GPU backend. The cpu backend only runs the embedded kernel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(shader.BuiltinSource())
			return err
		},
	}
}
