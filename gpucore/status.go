package gpucore

import (
	"errors"
	"fmt"
)

// Status is a 32-bit device status code. Failure codes have the high bit
// set. Status values print as eight hex digits.
type Status uint32

// Status codes reported by devices and the compiler.
const (
	StatusOK           Status = 0x00000000
	StatusFail         Status = 0x80004005
	StatusInvalidArg   Status = 0x80070057
	StatusOutOfMemory  Status = 0x8007000E
	StatusFileNotFound Status = 0x80070002
	StatusDeviceLost   Status = 0x887A0005
	StatusWaitTimeout  Status = 0x887A0027
)

// Failed reports whether s is a failure code.
func (s Status) Failed() bool { return s&0x80000000 != 0 }

// String formats the status as eight upper-case hex digits.
func (s Status) String() string {
	return fmt.Sprintf("%08X", uint32(s))
}

// Name returns a short symbolic name for known codes.
func (s Status) Name() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFail:
		return "fail"
	case StatusInvalidArg:
		return "invalid argument"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusFileNotFound:
		return "file not found"
	case StatusDeviceLost:
		return "device lost"
	case StatusWaitTimeout:
		return "wait timeout"
	default:
		return fmt.Sprintf("Unknown(%s)", s.String())
	}
}

// StatusOf extracts the device status carried by err.
// Errors that carry none report StatusFail; nil reports StatusOK.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Status
	}
	var ae *AllocationError
	if errors.As(err, &ae) {
		return ae.Status
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Status
	}
	if errors.Is(err, ErrInvalidArgument) {
		return StatusInvalidArg
	}
	return StatusFail
}
