package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/uavcheck"
)

func (a *app) newAdaptersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the adapters of a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load(cmd, nil)
			if err != nil {
				return err
			}
			adapters, err := uavcheck.Adapters(cfg.Backend)
			if err != nil {
				return fmt.Errorf("enumerate %s adapters: %w", cfg.Backend, err)
			}
			out := cmd.OutOrStdout()
			for i, info := range adapters {
				fmt.Fprintf(out, "%d: %s (%s, %s)\n", i, info.Name, info.DeviceType, info.Backend)
			}
			return nil
		},
	}
}
