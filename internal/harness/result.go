package harness

import (
	"errors"
	"fmt"

	"github.com/gogpu/uavcheck/gpucore"
)

// Status is the outcome of one configuration.
type Status uint8

// Outcomes.
const (
	// StatusSuccess means every element read back as Expected.
	StatusSuccess Status = iota
	// StatusError means the check ran but the grid was wrong.
	StatusError
	// StatusAborted means the check could not run to completion.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusError:
		return "Error"
	case StatusAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Result is the outcome of running one configuration.
type Result struct {
	Config TestConfiguration
	Status Status

	// Err is a *gpucore.ValidationError for StatusError and the failure
	// for StatusAborted.
	Err error

	// Grid is the read back output, when the check got that far.
	Grid []uint32

	// Stats summarizes Grid.
	Stats GridStats
}

// Mismatches returns the number of wrong elements, or 0 when the check
// did not validate.
func (r Result) Mismatches() int {
	var ve *gpucore.ValidationError
	if errors.As(r.Err, &ve) {
		return ve.Mismatches
	}
	return 0
}

// Summary collects the results of a run.
type Summary struct {
	Results []Result
}

// Count returns the number of results with status s.
func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Passed reports whether every configuration succeeded.
func (s Summary) Passed() bool {
	return len(s.Results) > 0 && s.Count(StatusSuccess) == len(s.Results)
}

// Checked returns the number of elements validated.
func (s Summary) Checked() int {
	n := 0
	for _, r := range s.Results {
		if r.Status != StatusAborted {
			n += len(r.Grid)
		}
	}
	return n
}

// Mismatches returns the total number of wrong elements.
func (s Summary) Mismatches() int {
	n := 0
	for _, r := range s.Results {
		n += r.Mismatches()
	}
	return n
}

// Validate checks that every word equals expected.
func Validate(words []uint32, expected uint32) error {
	var ve *gpucore.ValidationError
	for i, w := range words {
		if w == expected {
			continue
		}
		if ve == nil {
			ve = &gpucore.ValidationError{Expected: expected, FirstIndex: i, FirstValue: w}
		}
		ve.Mismatches++
	}
	if len(words) != Elements {
		if ve == nil {
			ve = &gpucore.ValidationError{Expected: expected, FirstIndex: len(words)}
		}
		ve.Mismatches += max(Elements-len(words), 0)
	}
	if ve != nil {
		return ve
	}
	return nil
}
