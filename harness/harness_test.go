package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/heapbench/heapbench/dataset"
	"github.com/heapbench/heapbench/heapsort"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// helperRunner returns an ExternalRunner that re-executes the test binary
// as the external sort program in the given mode.
func helperRunner(mode string, extraEnv ...string) *ExternalRunner {
	env := append([]string{
		"HEAPBENCH_HELPER_PROCESS=1",
		"HEAPBENCH_HELPER_MODE=" + mode,
	}, extraEnv...)

	return NewExternalRunner(
		"c++", os.Args[0],
		[]string{"-test.run=^TestHelperProcess$"},
		env, discardLogger(),
	)
}

// TestHelperProcess is not a real test. It implements the external sort
// protocol when invoked by helperRunner.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("HEAPBENCH_HELPER_PROCESS") != "1" {
		return
	}

	os.Exit(helperMain(os.Getenv("HEAPBENCH_HELPER_MODE")))
}

func helperMain(mode string) int {
	switch mode {
	case "fail":
		fmt.Fprintln(os.Stdout, "partial")
		fmt.Fprintln(os.Stderr, "segmentation fault")

		return 3
	case "garbage":
		fmt.Println("elapsed: soon")

		return 0
	case "two-tokens":
		fmt.Println("0.1 0.2")

		return 0
	case "negative":
		fmt.Println("-0.5")

		return 0
	}

	var values []int

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	scanner.Split(bufio.ScanWords)

	for scanner.Scan() {
		v, err := strconv.Atoi(scanner.Text())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)

			return 1
		}

		values = append(values, v)
	}

	if want := os.Getenv("HEAPBENCH_HELPER_EXPECT"); want != "" {
		if strconv.Itoa(len(values)) != want {
			fmt.Fprintf(os.Stderr, "got %d values, want %s\n", len(values), want)

			return 2
		}
	}

	start := time.Now()
	heapsort.Sort(values)
	fmt.Printf("%.9f\n", time.Since(start).Seconds())

	return 0
}

func TestParseTiming(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"0.00125\n", 0.00125, false},
		{"  3e-05  \r\n", 3e-05, false},
		{"0", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0.1 0.2", 0, true},
		{"-1", 0, true},
		{"NaN", 0, true},
		{"+Inf", 0, true},
	}

	for _, tt := range tests {
		got, err := parseTiming(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedTimingOutput) {
				t.Errorf("parseTiming(%q) err = %v, want ErrMalformedTimingOutput",
					tt.input, err)
			}

			continue
		}

		if err != nil {
			t.Errorf("parseTiming(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("parseTiming(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestExternalRunnerMeasure(t *testing.T) {
	ds, err := dataset.NewGenerator(5).Generate(2000, dataset.Random)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	runner := helperRunner("sort", "HEAPBENCH_HELPER_EXPECT=2000")

	records, err := runner.Measure(context.Background(), ds, 3)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	for i, r := range records {
		if r.Run != i+1 {
			t.Errorf("records[%d].Run = %d, want %d", i, r.Run, i+1)
		}
		if r.Seconds < 0 {
			t.Errorf("records[%d].Seconds = %v, want >= 0", i, r.Seconds)
		}
	}
}

func TestExternalRunnerProcessFailure(t *testing.T) {
	ds := dataset.FromValues(dataset.Sorted, []int{0, 1, 2})

	records, err := helperRunner("fail").Measure(context.Background(), ds, 5)
	if !errors.Is(err, ErrExternalProcessFailed) {
		t.Fatalf("err = %v, want ErrExternalProcessFailed", err)
	}
	if records != nil {
		t.Errorf("records = %v, want none", records)
	}

	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("err is not a *ProcessError: %T", err)
	}
	if perr.Run != 1 {
		t.Errorf("failed run = %d, want 1", perr.Run)
	}
	if perr.Stderr != "segmentation fault\n" {
		t.Errorf("stderr = %q, want captured stderr", perr.Stderr)
	}
	if perr.Stdout != "partial\n" {
		t.Errorf("stdout = %q, want captured stdout", perr.Stdout)
	}
}

func TestExternalRunnerMalformedOutput(t *testing.T) {
	ds := dataset.FromValues(dataset.Sorted, []int{0, 1})

	for _, mode := range []string{"garbage", "two-tokens", "negative"} {
		t.Run(mode, func(t *testing.T) {
			_, err := helperRunner(mode).Measure(context.Background(), ds, 2)
			if !errors.Is(err, ErrMalformedTimingOutput) {
				t.Errorf("err = %v, want ErrMalformedTimingOutput", err)
			}
		})
	}
}

func TestExternalRunnerMissingBinary(t *testing.T) {
	runner := NewExternalRunner("c++", "/nonexistent/heapsort_cpp",
		nil, nil, discardLogger())

	_, err := runner.Measure(context.Background(),
		dataset.FromValues(dataset.Sorted, []int{1}), 1)
	if !errors.Is(err, ErrExternalProcessFailed) {
		t.Errorf("err = %v, want ErrExternalProcessFailed", err)
	}
}

func TestRunnerRejectsNonPositiveRuns(t *testing.T) {
	ds := dataset.FromValues(dataset.Sorted, []int{1})

	runners := []Runner{
		helperRunner("sort"),
		NewInProcessRunner("go", heapsort.Sort, discardLogger()),
	}

	for _, r := range runners {
		if _, err := r.Measure(context.Background(), ds, 0); err == nil {
			t.Errorf("%s: expected error for zero runs", r.Name())
		}
	}
}
