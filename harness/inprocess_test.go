package harness

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/heapbench/heapbench/dataset"
	"github.com/heapbench/heapbench/heapsort"
)

func TestInProcessRunnerSortsClones(t *testing.T) {
	original := []int{3, 1, 2}
	ds := dataset.FromValues(dataset.Random, original)

	var seen [][]int
	recordingSort := func(a []int) {
		seen = append(seen, slices.Clone(a))
		heapsort.Sort(a)
		seen = append(seen, a)
	}

	runner := NewInProcessRunner("go", recordingSort, discardLogger())

	records, err := runner.Measure(context.Background(), ds, 3)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	if !slices.Equal(ds.Clone(), []int{3, 1, 2}) {
		t.Errorf("dataset mutated: %v", ds.Clone())
	}
	if !slices.Equal(original, []int{3, 1, 2}) {
		t.Errorf("caller slice mutated: %v", original)
	}

	// seen alternates input, output for each run.
	for i := 0; i < len(seen); i += 2 {
		if !slices.Equal(seen[i], []int{3, 1, 2}) {
			t.Errorf("run %d input = %v, want fresh [3 1 2]", i/2+1, seen[i])
		}
		if !slices.Equal(seen[i+1], []int{1, 2, 3}) {
			t.Errorf("run %d output = %v, want [1 2 3]", i/2+1, seen[i+1])
		}
	}

	// Each run gets its own slice.
	if &seen[1][0] == &seen[3][0] {
		t.Error("runs shared the same backing array")
	}
}

func TestInProcessRunnerRecords(t *testing.T) {
	ds, err := dataset.NewGenerator(2).Generate(5000, dataset.Reversed)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	runner := NewInProcessRunner("go", heapsort.Sort, discardLogger())
	if runner.Name() != "go" {
		t.Errorf("name = %q, want go", runner.Name())
	}

	records, err := runner.Measure(context.Background(), ds, 4)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
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

func TestInProcessRunnerPanic(t *testing.T) {
	calls := 0
	panicky := func(a []int) {
		calls++
		if calls == 2 {
			panic("index out of range")
		}
		heapsort.Sort(a)
	}

	runner := NewInProcessRunner("go", panicky, discardLogger())

	records, err := runner.Measure(context.Background(),
		dataset.FromValues(dataset.Random, []int{2, 1}), 3)
	if !errors.Is(err, ErrImplementationFailed) {
		t.Fatalf("err = %v, want ErrImplementationFailed", err)
	}
	if records != nil {
		t.Errorf("records = %v, want none", records)
	}
}

func TestInProcessRunnerUnsorted(t *testing.T) {
	noop := func([]int) {}

	runner := NewInProcessRunner("go", noop, discardLogger())

	_, err := runner.Measure(context.Background(),
		dataset.FromValues(dataset.Reversed, []int{2, 1, 0}), 1)
	if !errors.Is(err, ErrUnsorted) {
		t.Errorf("err = %v, want ErrUnsorted", err)
	}
}

func TestSeconds(t *testing.T) {
	got := Seconds([]RunRecord{{Run: 1, Seconds: 0.5}, {Run: 2, Seconds: 1.5}})
	if !slices.Equal(got, []float64{0.5, 1.5}) {
		t.Errorf("Seconds = %v, want [0.5 1.5]", got)
	}
}
