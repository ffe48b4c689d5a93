// Package stats reduces repeated run timings to summary statistics.
package stats

import (
	"errors"

	mstats "github.com/aclements/go-moremath/stats"

	"github.com/heapbench/heapbench/harness"
)

// ErrNoSamples is returned when there is nothing to aggregate.
var ErrNoSamples = errors.New("no samples")

// Summary holds the statistics of one combination, in seconds.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Aggregate computes the mean and the sample (n-1) standard deviation
// of the recorded durations. With a single record the standard deviation
// is 0: no spread is measurable from one sample.
func Aggregate(records []harness.RunRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrNoSamples
	}

	xs := harness.Seconds(records)
	lo, hi := mstats.Bounds(xs)

	s := Summary{
		N:    len(xs),
		Mean: mstats.Mean(xs),
		Min:  lo,
		Max:  hi,
	}

	if s.N > 1 {
		s.StdDev = mstats.StdDev(xs)
	}

	return s, nil
}
