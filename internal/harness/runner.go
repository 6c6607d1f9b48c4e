package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/dispatch"
	"github.com/gogpu/uavcheck/internal/logging"
	"github.com/gogpu/uavcheck/internal/readback"
	"github.com/gogpu/uavcheck/internal/resource"
	"github.com/gogpu/uavcheck/internal/shader"
)

var logger logging.Logger

func slogger() *slog.Logger { return logger.Get() }

// SetLogger sets the package logger. Nil disables logging.
func SetLogger(l *slog.Logger) { logger.Set(l) }

// Compiler compiles a kernel for a configuration.
type Compiler interface {
	Compile(sourcePath, entryPoint string, switches shader.Switches) (*gpucore.ShaderBinary, error)
}

// Options configures a Runner.
type Options struct {
	// SourcePath is the kernel source, resolved by the compiler.
	SourcePath string

	// EntryPoint is the kernel function. Empty selects
	// shader.DefaultEntryPoint.
	EntryPoint string

	// Reporter, when set, receives progress and results.
	Reporter *Reporter
}

// Runner runs configurations on one device. A Runner is not safe for
// concurrent use; each configuration completes before the next starts.
type Runner struct {
	device   gpucore.Device
	compiler Compiler
	opts     Options

	factory  *resource.Factory
	engine   *dispatch.Engine
	readback *readback.Bridge
}

// NewRunner returns a runner for device.
func NewRunner(device gpucore.Device, compiler Compiler, opts Options) *Runner {
	if opts.EntryPoint == "" {
		opts.EntryPoint = shader.DefaultEntryPoint
	}
	return &Runner{
		device:   device,
		compiler: compiler,
		opts:     opts,
		factory:  resource.NewFactory(device),
		engine:   dispatch.NewEngine(device),
		readback: readback.NewBridge(device),
	}
}

// RunAll runs every configuration of Matrix in order.
func (r *Runner) RunAll(ctx context.Context) Summary {
	return r.RunConfigs(ctx, Matrix())
}

// RunConfigs runs cfgs in order. Cancellation is observed between
// configurations: once ctx is done the remaining ones are aborted with
// ctx.Err().
func (r *Runner) RunConfigs(ctx context.Context, cfgs []TestConfiguration) Summary {
	var sum Summary
	for _, cfg := range cfgs {
		sum.Results = append(sum.Results, r.Run(ctx, cfg))
	}
	if r.opts.Reporter != nil {
		r.opts.Reporter.Summary(sum)
	}
	return sum
}

// Run compiles, allocates, dispatches, reads back and validates one
// configuration. Every resource it acquires is released before it returns.
func (r *Runner) Run(ctx context.Context, cfg TestConfiguration) (res Result) {
	if rep := r.opts.Reporter; rep != nil {
		rep.Start(cfg)
		defer func() { rep.Result(res) }()
	}
	res.Config = cfg

	if err := ctx.Err(); err != nil {
		return aborted(res, err)
	}
	log := slogger().With("config", cfg.String())

	bin, err := r.compiler.Compile(r.opts.SourcePath, r.opts.EntryPoint, cfg.Switches())
	if err != nil {
		return aborted(res, err)
	}
	sh, err := r.device.CreateShader(bin)
	if err != nil {
		return aborted(res, fmt.Errorf("create shader: %w", err))
	}
	defer r.device.DestroyShader(sh)

	buffers, err := r.createBuffers(cfg)
	if err != nil {
		return aborted(res, fmt.Errorf("create buffers: %w", err))
	}
	defer func() {
		for _, b := range buffers {
			b.Release()
		}
	}()

	views := make([]*resource.View, 0, len(buffers))
	defer func() {
		for _, v := range views {
			v.Release()
		}
	}()
	for _, b := range buffers {
		v, err := r.factory.CreateView(b)
		if err != nil {
			return aborted(res, fmt.Errorf("create views: %w", err))
		}
		views = append(views, v)
	}

	if err := r.engine.Dispatch(sh, views); err != nil {
		return aborted(res, err)
	}

	snap, err := r.readback.Snapshot(buffers[len(buffers)-1])
	if err != nil {
		return aborted(res, err)
	}
	defer snap.Release()

	res.Grid = snap.Words()
	res.Stats = ComputeStats(res.Grid)
	if err := Validate(res.Grid, Expected); err != nil {
		log.Warn("harness: grid mismatch", "error", err,
			"mean", res.Stats.Mean, "min", res.Stats.Min, "max", res.Stats.Max)
		res.Status = StatusError
		res.Err = err
		return res
	}
	log.Debug("harness: grid valid", "elements", len(res.Grid))
	res.Status = StatusSuccess
	return res
}

// createBuffers allocates the in-place buffer, or the input and output
// buffers in split mode. Only inputs are seeded.
func (r *Runner) createBuffers(cfg TestConfiguration) ([]*resource.Buffer, error) {
	seed := resource.SeedWords(Elements, Seed)
	create := func(label string, initial []byte) (*resource.Buffer, error) {
		if cfg.UseStructuredLayout {
			return r.factory.CreateStructured(label, ElementSize, Elements, initial)
		}
		return r.factory.CreateRaw(label, Elements*ElementSize, initial)
	}

	if !cfg.UseSplitBuffers {
		b, err := create("inout", seed)
		if err != nil {
			return nil, err
		}
		b.Role = resource.RoleInOut
		return []*resource.Buffer{b}, nil
	}

	in, err := create("input", seed)
	if err != nil {
		return nil, err
	}
	in.Role = resource.RoleInput
	out, err := create("output", nil)
	if err != nil {
		in.Release()
		return nil, err
	}
	out.Role = resource.RoleOutput
	return []*resource.Buffer{in, out}, nil
}

func aborted(res Result, err error) Result {
	slogger().Warn("harness: configuration aborted", "config", res.Config.String(),
		"status", gpucore.StatusOf(err).String(), "error", err)
	res.Status = StatusAborted
	res.Err = err
	return res
}
