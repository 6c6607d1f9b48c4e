// Package shader compiles WGSL compute kernels with boolean feature switches.
//
// Sources are run through a small conditional preprocessor ([Preprocessor])
// with every enabled switch defined as "1", then compiled to SPIR-V by naga.
// Failures are reported as *gpucore.CompileError carrying the compiler
// diagnostics verbatim.
package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"slices"

	"github.com/gogpu/naga"

	"github.com/gogpu/uavcheck/gpucore"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Cache stores compiled code keyed by preprocessed source, entry point and
// defines. Implementations must be safe for concurrent use.
type Cache interface {
	Load(source []byte, entryPoint string, defines []gpucore.Define) ([]byte, bool)
	Store(source []byte, entryPoint string, defines []gpucore.Define, code []byte)
}

// Compiler compiles kernel sources into gpucore.ShaderBinary values.
type Compiler struct {
	// FS is the filesystem sources are read from. Nil means the OS
	// filesystem.
	FS fs.FS

	// Strict rejects sources that test a switch outside KnownSwitches.
	// Ignored when KnownSwitches is empty.
	Strict bool

	// KnownSwitches lists the switch names a source may test.
	KnownSwitches []string

	// Cache, when set, short-circuits compilation of identical inputs.
	Cache Cache

	// compile turns WGSL into SPIR-V bytes.
	compile func(string) ([]byte, error)
}

// NewCompiler returns a strict compiler for the bundled switch set that
// reads from the OS filesystem.
func NewCompiler() *Compiler {
	return &Compiler{
		Strict:        true,
		KnownSwitches: KnownSwitches,
		compile:       naga.Compile,
	}
}

// Compile compiles the kernel entryPoint in sourcePath with the given
// switches.
//
// sourcePath and entryPoint must be non-empty; otherwise the returned error
// wraps gpucore.ErrInvalidArgument. Every other failure is a
// *gpucore.CompileError. A missing file yields StatusFileNotFound with no
// diagnostics.
func (c *Compiler) Compile(sourcePath, entryPoint string, switches Switches) (*gpucore.ShaderBinary, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("shader: %w: empty source path", gpucore.ErrInvalidArgument)
	}
	if entryPoint == "" {
		return nil, fmt.Errorf("shader: %w: empty entry point", gpucore.ErrInvalidArgument)
	}

	compileErr := func(status gpucore.Status, diag string, err error) error {
		return &gpucore.CompileError{
			Path:        sourcePath,
			EntryPoint:  entryPoint,
			Status:      status,
			Diagnostics: diag,
			Err:         err,
		}
	}

	src, err := c.readSource(sourcePath)
	if err != nil {
		status := gpucore.StatusFail
		if errors.Is(err, fs.ErrNotExist) {
			status = gpucore.StatusFileNotFound
		}
		return nil, compileErr(status, "", err)
	}

	defines := switches.Defines()
	pp := Preprocessor{Defines: switches.set()}
	wgsl, err := pp.Preprocess(src, sourcePath)
	if err != nil {
		return nil, compileErr(gpucore.StatusFail, err.Error(), err)
	}
	if c.Strict && len(c.KnownSwitches) > 0 {
		for _, name := range pp.Switches() {
			if !slices.Contains(c.KnownSwitches, name) {
				diag := fmt.Sprintf("%s: unknown switch %q", sourcePath, name)
				return nil, compileErr(gpucore.StatusFail, diag, nil)
			}
		}
	}
	if !hasComputeEntry(wgsl, entryPoint) {
		diag := fmt.Sprintf("%s: entry point %q not found", sourcePath, entryPoint)
		return nil, compileErr(gpucore.StatusInvalidArg, diag, nil)
	}

	bin := &gpucore.ShaderBinary{
		Label:      path.Base(sourcePath),
		EntryPoint: entryPoint,
		Defines:    defines,
		SourceHash: SourceHash(src),
	}

	if c.Cache != nil {
		if code, ok := c.Cache.Load(wgsl, entryPoint, defines); ok {
			slogger().Debug("shader cache hit", "path", sourcePath, "entry", entryPoint, "defines", defines)
			bin.Code = code
			return bin, nil
		}
	}

	compile := c.compile
	if compile == nil {
		compile = naga.Compile
	}
	code, err := compile(string(wgsl))
	if err != nil {
		slogger().Warn("Compiler error", "path", sourcePath, "diagnostics", err.Error())
		return nil, compileErr(gpucore.StatusFail, err.Error(), err)
	}
	if err := checkSPIRV(code); err != nil {
		return nil, compileErr(gpucore.StatusFail, "", err)
	}

	if c.Cache != nil {
		c.Cache.Store(wgsl, entryPoint, defines, code)
	}
	slogger().Debug("shader compiled",
		"path", sourcePath,
		"entry", entryPoint,
		"defines", defines,
		"bytes", len(code))

	bin.Code = code
	return bin, nil
}

func (c *Compiler) readSource(name string) ([]byte, error) {
	if c.FS != nil {
		return fs.ReadFile(c.FS, name)
	}
	return os.ReadFile(name)
}

// comments matches WGSL line and block comments.
var comments = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)

// hasComputeEntry reports whether wgsl declares a @compute function named
// entry outside comments.
func hasComputeEntry(wgsl []byte, entry string) bool {
	code := comments.ReplaceAll(wgsl, []byte(" "))
	re := regexp.MustCompile(`@compute\b[^;{}]*?\bfn\s+` + regexp.QuoteMeta(entry) + `\s*\(`)
	return re.Match(code)
}

func checkSPIRV(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return fmt.Errorf("shader: invalid SPIR-V size %d", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("shader: invalid SPIR-V magic 0x%08X", magic)
	}
	return nil
}

// Words converts SPIR-V bytes to little-endian 32-bit words.
func Words(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}
