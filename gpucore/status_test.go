package gpucore

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
		name   string
	}{
		{StatusOK, "00000000", "ok"},
		{StatusFail, "80004005", "fail"},
		{StatusInvalidArg, "80070057", "invalid argument"},
		{StatusOutOfMemory, "8007000E", "out of memory"},
		{StatusFileNotFound, "80070002", "file not found"},
		{StatusDeviceLost, "887A0005", "device lost"},
		{StatusWaitTimeout, "887A0027", "wait timeout"},
		{Status(0x12), "00000012", "Unknown(00000012)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%#x).String() = %q, want %q", uint32(tt.status), got, tt.want)
		}
		if got := tt.status.Name(); got != tt.name {
			t.Errorf("Status(%#x).Name() = %q, want %q", uint32(tt.status), got, tt.name)
		}
	}
}

func TestStatusFailed(t *testing.T) {
	if StatusOK.Failed() {
		t.Error("StatusOK.Failed() = true")
	}
	for _, s := range []Status{StatusFail, StatusInvalidArg, StatusOutOfMemory, StatusDeviceLost} {
		if !s.Failed() {
			t.Errorf("%s.Failed() = false", s)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"plain", errors.New("boom"), StatusFail},
		{"invalid argument", fmt.Errorf("x: %w", ErrInvalidArgument), StatusInvalidArg},
		{"compile", &CompileError{Status: StatusFileNotFound, Err: fs.ErrNotExist}, StatusFileNotFound},
		{"allocation", NewAllocationError("create buffer", "in", StatusOutOfMemory, nil), StatusOutOfMemory},
		{"wrapped allocation", fmt.Errorf("create buffers: %w",
			NewAllocationError("create buffer", "in", StatusOutOfMemory, nil)), StatusOutOfMemory},
		{"device", &DeviceError{Op: "submit", Status: StatusDeviceLost}, StatusDeviceLost},
		{"validation", &ValidationError{Expected: 3, Mismatches: 1}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			&CompileError{Path: "k.wgsl", EntryPoint: "main", Status: StatusFail, Diagnostics: "line 3: bad\n"},
			"compile k.wgsl (main): status 80004005: line 3: bad",
		},
		{
			&CompileError{Path: "k.wgsl", EntryPoint: "main", Status: StatusFileNotFound, Err: fs.ErrNotExist},
			"compile k.wgsl (main): status 80070002: file does not exist",
		},
		{
			NewAllocationError("create view", "out", StatusInvalidArg, nil),
			"create view out: 80070057",
		},
		{
			&DeviceError{Op: "wait", Status: StatusWaitTimeout, Err: errors.New("timeout")},
			"wait: 887A0027: timeout",
		},
		{
			&ValidationError{Expected: 3, Mismatches: 2, FirstIndex: 5, FirstValue: 0},
			"validation: 2 elements differ from 3 (first at 5: 0)",
		},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCompileErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("run: %w", &CompileError{Status: StatusFileNotFound, Err: fs.ErrNotExist})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is(err, fs.ErrNotExist) = false")
	}
}
