// Package commands implements the uavcheck command tree.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gogpu/uavcheck"
	"github.com/gogpu/uavcheck/internal/config"
)

// app holds the state shared by all subcommands of one command tree.
type app struct {
	cfgFile string
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the uavcheck command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "uavcheck",
		Short: "Check GPU read/write buffer views",
		Long: `uavcheck runs a compute kernel over structured and raw buffers, in place
and with split input/output buffers, and verifies that every element of the
27x27 result grid holds the expected value.`,
		SilenceUsage: true,
		Version:      "0.1.0",
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.uavcheck/config.yaml)")
	root.PersistentFlags().String("backend", "", "device backend: cpu, vulkan or noop")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(a.newRunCommand(), a.newAdaptersCommand(), newKernelCommand())
	return root
}

// globalFlags maps config keys to the persistent flags.
var globalFlags = map[string]string{
	"backend":       "backend",
	"logging.level": "log-level",
}

// load reads the configuration with the flags of cmd, as listed in
// bindings, taking precedence. It installs the configured logger.
func (a *app) load(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	flags := make(map[string]*pflag.Flag, len(globalFlags)+len(bindings))
	for _, m := range []map[string]string{globalFlags, bindings} {
		for key, name := range m {
			if f := cmd.Flags().Lookup(name); f != nil {
				flags[key] = f
			}
		}
	}
	cfg, err := config.Load(a.cfgFile, flags)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cmd.ErrOrStderr(), cfg.Logging.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging routes all package loggers to w at the given level.
func setupLogging(w io.Writer, level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	uavcheck.SetLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
