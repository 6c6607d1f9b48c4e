package gpucore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument reports malformed input to a compile, allocation or
// view call. It is always wrapped with context.
var ErrInvalidArgument = errors.New("gpucore: invalid argument")

// CompileError reports a shader that failed to compile.
type CompileError struct {
	// Path is the shader source path.
	Path string

	// EntryPoint is the requested kernel function.
	EntryPoint string

	// Status is the failure code.
	Status Status

	// Diagnostics is the compiler output, verbatim. It may be empty.
	Diagnostics string

	// Err is the underlying error, if any.
	Err error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compile %s (%s): status %s", e.Path, e.EntryPoint, e.Status)
	if e.Diagnostics != "" {
		b.WriteString(": ")
		b.WriteString(strings.TrimRight(e.Diagnostics, "\n"))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }

// AllocationError reports that device memory, a view or a staging buffer
// could not be created.
type AllocationError struct {
	// Op names the failed operation ("create buffer", "create view", ...).
	Op string

	// Label is the debug label of the resource, if any.
	Label string

	// Status is the device status code.
	Status Status

	// Err is the underlying error, if any.
	Err error
}

func (e *AllocationError) Error() string {
	s := e.Op
	if e.Label != "" {
		s += " " + e.Label
	}
	s += ": " + e.Status.String()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *AllocationError) Unwrap() error { return e.Err }

// ValidationError reports readback contents that did not match the
// expected value. It is an outcome, not a system failure.
type ValidationError struct {
	// Expected is the value every element should hold.
	Expected uint32

	// Mismatches is the number of elements that differ.
	Mismatches int

	// FirstIndex is the index of the first mismatching element.
	FirstIndex int

	// FirstValue is the value found at FirstIndex.
	FirstValue uint32
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %d elements differ from %d (first at %d: %d)",
		e.Mismatches, e.Expected, e.FirstIndex, e.FirstValue)
}

// NewAllocationError returns an *AllocationError for op on label.
func NewAllocationError(op, label string, status Status, err error) error {
	return &AllocationError{Op: op, Label: label, Status: status, Err: err}
}

// DeviceError reports a failed device operation that is not an
// allocation, such as a submit or a fence wait.
type DeviceError struct {
	Op     string
	Status Status
	Err    error
}

func (e *DeviceError) Error() string {
	s := e.Op + ": " + e.Status.String()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DeviceError) Unwrap() error { return e.Err }
