package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapbench/heapbench/harness"
)

func records(secs ...float64) []harness.RunRecord {
	out := make([]harness.RunRecord, len(secs))
	for i, s := range secs {
		out[i] = harness.RunRecord{Run: i + 1, Seconds: s}
	}

	return out
}

func TestAggregateSingle(t *testing.T) {
	for _, v := range []float64{0, 0.0042, 17.5} {
		s, err := Aggregate(records(v))
		require.NoError(t, err)

		assert.Equal(t, v, s.Mean)
		assert.Equal(t, 0.0, s.StdDev)
		assert.Equal(t, 1, s.N)
	}
}

func TestAggregateSampleStdDev(t *testing.T) {
	s, err := Aggregate(records(1.0, 2.0, 3.0))
	require.NoError(t, err)

	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	assert.InDelta(t, 1.0, s.StdDev, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, 3, s.N)
}

func TestAggregateBesselCorrected(t *testing.T) {
	// Population stddev of {2,4,4,4,5,5,7,9} is 2; the sample one is
	// sqrt(32/7).
	s, err := Aggregate(records(2, 4, 4, 4, 5, 5, 7, 9))
	require.NoError(t, err)

	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.138089935299395, s.StdDev, 1e-12)
}

func TestAggregateConstant(t *testing.T) {
	s, err := Aggregate(records(0.25, 0.25, 0.25, 0.25))
	require.NoError(t, err)

	assert.InDelta(t, 0.25, s.Mean, 1e-15)
	assert.InDelta(t, 0.0, s.StdDev, 1e-15)
}

func TestAggregateEmpty(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, ErrNoSamples)
}
