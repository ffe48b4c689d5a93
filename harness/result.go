// Package harness builds the external sort executable and measures sort
// implementations, either in-process or by spawning the executable.
//
// External sort protocol: the executable reads whitespace-separated
// integers from stdin, sorts them, and writes a single line to stdout
// holding the elapsed seconds as a float. The reported time covers the
// sort call only. Parsing stdin and writing stdout fall outside it, so
// process startup and I/O are excluded from every out-of-process
// measurement. A non-zero exit status means the run failed.
package harness

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrToolchainMissing is returned when the compiler cannot be found.
	ErrToolchainMissing = errors.New("toolchain missing")

	// ErrCompile is returned when the compiler exits non-zero.
	ErrCompile = errors.New("compile error")

	// ErrExternalProcessFailed is returned when the external executable
	// cannot be started or exits non-zero.
	ErrExternalProcessFailed = errors.New("external process failed")

	// ErrMalformedTimingOutput is returned when the external executable
	// does not print exactly one non-negative float.
	ErrMalformedTimingOutput = errors.New("malformed timing output")

	// ErrImplementationFailed is returned when an in-process sort routine
	// panics.
	ErrImplementationFailed = errors.New("implementation failed")

	// ErrUnsorted is returned when an in-process sort routine leaves its
	// input out of order.
	ErrUnsorted = errors.New("implementation output not sorted")
)

// RunRecord is one measured execution of one implementation over one
// dataset.
type RunRecord struct {
	Run     int     `json:"run"`
	Seconds float64 `json:"seconds"`
}

// Seconds extracts the durations of records, in order.
func Seconds(records []RunRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Seconds
	}

	return out
}

// TimingOutputError carries the stdout that failed to parse.
type TimingOutputError struct {
	Output string
	Reason string
}

func (e *TimingOutputError) Error() string {
	return fmt.Sprintf("%s: %s (stdout %q)",
		ErrMalformedTimingOutput, e.Reason, e.Output)
}

func (e *TimingOutputError) Unwrap() error { return ErrMalformedTimingOutput }

// parseTiming reads the elapsed seconds reported by the external
// executable.
func parseTiming(stdout string) (float64, error) {
	fields := strings.Fields(strings.TrimSpace(stdout))
	if len(fields) != 1 {
		return 0, &TimingOutputError{
			Output: stdout,
			Reason: fmt.Sprintf("want 1 token, got %d", len(fields)),
		}
	}

	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, &TimingOutputError{Output: stdout, Reason: err.Error()}
	}

	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, &TimingOutputError{
			Output: stdout,
			Reason: "not a finite non-negative duration",
		}
	}

	return secs, nil
}
