package harness

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GridStats summarizes the values of a grid.
type GridStats struct {
	Mean float64
	Min  float64
	Max  float64
}

// ComputeStats returns the mean and range of words. An empty grid gives
// the zero value.
func ComputeStats(words []uint32) GridStats {
	if len(words) == 0 {
		return GridStats{}
	}
	xs := make([]float64, len(words))
	for i, w := range words {
		xs[i] = float64(w)
	}
	return GridStats{
		Mean: stat.Mean(xs, nil),
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}
}
