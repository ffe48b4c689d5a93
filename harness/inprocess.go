package harness

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/heapbench/heapbench/dataset"
)

// SortFunc sorts its argument in place.
type SortFunc func([]int)

// InProcessRunner calls a sort routine directly and times the call.
type InProcessRunner struct {
	name   string
	sort   SortFunc
	Logger *slog.Logger
}

// NewInProcessRunner creates an InProcessRunner for sort.
func NewInProcessRunner(name string, sort SortFunc, logger *slog.Logger) *InProcessRunner {
	return &InProcessRunner{
		name:   name,
		sort:   sort,
		Logger: logger.With(slog.String("language", name)),
	}
}

// Name implements Runner.
func (r *InProcessRunner) Name() string { return r.name }

// Measure implements Runner. Every run sorts a fresh clone: the routine
// mutates its input, and sorting an already sorted slice would measure
// the wrong case.
func (r *InProcessRunner) Measure(
	ctx context.Context,
	ds dataset.Dataset,
	runs int,
) ([]RunRecord, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}

	records := make([]RunRecord, 0, runs)

	r.Logger.InfoContext(ctx, "running in-process implementation",
		slog.Int("size", ds.Len()),
		slog.String("case", ds.Shape().String()),
		slog.Int("runs", runs),
	)

	for i := 1; i <= runs; i++ {
		work := ds.Clone()

		// Collect garbage from the previous run outside the timed region.
		runtime.GC()

		elapsed, err := r.timeSort(work)
		if err != nil {
			return nil, fmt.Errorf("%s run %d: %w", r.name, i, err)
		}

		if !slices.IsSorted(work) {
			return nil, fmt.Errorf("%s run %d: %w", r.name, i, ErrUnsorted)
		}

		secs := elapsed.Seconds()
		records = append(records, RunRecord{Run: i, Seconds: secs})

		r.Logger.DebugContext(ctx, "run finished",
			slog.Int("run", i),
			slog.Float64("seconds", secs),
		)
	}

	return records, nil
}

func (r *InProcessRunner) timeSort(work []int) (elapsed time.Duration, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrImplementationFailed, p)
		}
	}()

	start := time.Now()
	r.sort(work)
	elapsed = time.Since(start)

	return elapsed, nil
}
