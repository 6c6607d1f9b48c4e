package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gogpu/uavcheck"
	"github.com/gogpu/uavcheck/internal/config"
	"github.com/gogpu/uavcheck/internal/harness"
	"github.com/gogpu/uavcheck/internal/shader"
	"github.com/gogpu/uavcheck/internal/shadercache"
)

// errChecksFailed is returned under --fail-on-error when a configuration
// did not succeed.
var errChecksFailed = errors.New("configurations did not succeed")

var runFlags = map[string]string{
	"shader.path":          "shader",
	"shader.entry_point":   "entry",
	"report.only":          "only",
	"report.dump":          "dump",
	"report.fail_on_error": "fail-on-error",
	"cache.dir":            "cache-dir",
	"cache.codec":          "cache-codec",
	"gpu.workers":          "workers",
	"gpu.memory_budget_mb": "memory-budget",
	"gpu.wait_timeout":     "timeout",
}

func (a *app) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the buffer view check matrix",
		Long: `Run compiles the kernel once per configuration, allocates and seeds the
buffers, dispatches a 3x3x3 grid, reads the output back and validates it.

Configurations run in the order: structured split, structured in place,
raw split, raw in place. --only selects a single one, for example
--only=raw,split.

The cpu backend runs a Go mirror of the embedded kernel and rejects any
other --shader source.`,
		Args: cobra.NoArgs,
		RunE: a.runCheck,
	}

	f := cmd.Flags()
	f.String("shader", "", "kernel source file (default is the embedded kernel)")
	f.String("entry", "", "kernel entry point (default CSMain)")
	f.String("only", "", "run a single configuration: {structured|raw},{split|inplace}")
	f.Bool("dump", false, "print the result grid of every configuration")
	f.Bool("fail-on-error", false, "exit non-zero if any configuration does not succeed")
	f.String("cache-dir", "", "directory of the compiled kernel cache")
	f.String("cache-codec", "", "cache compression: zstd, lz4 or none")
	f.Int("workers", 0, "goroutines of the cpu backend (default GOMAXPROCS)")
	f.Int("memory-budget", 0, "GPU buffer memory budget in MB (default unlimited)")
	f.Duration("timeout", 0, "GPU wait timeout (default 5s)")
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := a.load(cmd, runFlags)
	if err != nil {
		return err
	}
	log := uavcheck.Logger()

	cfgs := harness.Matrix()
	if cfg.Report.Only != "" {
		c, err := harness.ParseConfiguration(cfg.Report.Only)
		if err != nil {
			return err
		}
		cfgs = []harness.TestConfiguration{c}
	}

	compiler, source, cache, err := newCompiler(cfg)
	if err != nil {
		return err
	}

	dev, err := uavcheck.OpenDevice(uavcheck.DeviceOptions{
		Backend:        cfg.Backend,
		MemoryBudgetMB: cfg.GPU.MemoryBudgetMB,
		WaitTimeout:    cfg.GPU.WaitTimeout,
		Workers:        cfg.GPU.Workers,
	})
	if err != nil {
		return fmt.Errorf("acquire device: %w", err)
	}
	defer dev.Destroy()

	info := dev.Info()
	log.Info("uavcheck: adapter selected", "name", info.Name, "type", info.DeviceType, "backend", info.Backend)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runner := harness.NewRunner(dev, compiler, harness.Options{
		SourcePath: source,
		EntryPoint: cfg.Shader.EntryPoint,
		Reporter:   harness.NewReporter(cmd.OutOrStdout(), cfg.Report.Dump),
	})
	sum := runner.RunConfigs(ctx, cfgs)

	st := cache.Stats()
	log.Debug("uavcheck: shader cache", "hits", st.Hits, "disk_hits", st.DiskHits, "misses", st.Misses, "entries", st.Entries)

	if cfg.Report.FailOnError && !sum.Passed() {
		return fmt.Errorf("%w: %d of %d", errChecksFailed,
			len(sum.Results)-sum.Count(harness.StatusSuccess), len(sum.Results))
	}
	return nil
}

// newCompiler returns a compiler backed by the kernel cache and the path
// of the kernel source it resolves. An empty shader path selects the
// embedded kernel.
func newCompiler(cfg *config.Config) (*shader.Compiler, string, *shadercache.Cache, error) {
	codec, err := shadercache.ParseCodec(cfg.Cache.Codec)
	if err != nil {
		return nil, "", nil, err
	}
	cache, err := shadercache.New(shadercache.Options{
		Entries: cfg.Cache.Entries,
		Dir:     cfg.Cache.Dir,
		Codec:   codec,
	})
	if err != nil {
		return nil, "", nil, err
	}

	c := shader.NewCompiler()
	c.Strict = cfg.Shader.Strict
	c.Cache = cache

	source := cfg.Shader.Path
	if source == "" {
		c.FS = shader.BuiltinFS
		source = shader.BuiltinKernel
	}
	return c, source, cache, nil
}
