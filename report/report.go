// Package report formats a results table into comparison summaries and
// chart pages.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/heapbench/heapbench/results"
)

// ErrNoRows is returned when there is nothing to report.
var ErrNoRows = errors.New("no results to report")

// Generate writes a markdown comparison table. Rows are grouped by case
// and size; the fastest implementation of each group is the 1.00x
// baseline.
func Generate(w io.Writer, rows []results.Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}

	fastest := fastestByGroup(rows)

	fmt.Fprintln(w, "## Heap Sort Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Case | Size | Language | Mean | Std Dev | Relative |")
	fmt.Fprintln(w, "|------|------|----------|------|---------|----------|")

	for _, r := range sortedForTable(rows) {
		relative := 1.0
		if best := fastest[groupOf(r)]; best > 0 {
			relative = r.MeanSec / best
		}

		fmt.Fprintf(w, "| %s | %d | %s | %s | %s | %.2fx |\n",
			r.Case,
			r.Size,
			r.Language,
			formatMs(r.MeanMs()),
			formatMs(r.StdDevMs()),
			relative,
		)
	}

	return nil
}

// GenerateJSON writes v, usually a slice of rows, as indented JSON to w.
func GenerateJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

type group struct {
	kind string
	size int
}

func groupOf(r results.Row) group {
	return group{kind: r.Case, size: r.Size}
}

func fastestByGroup(rows []results.Row) map[group]float64 {
	fastest := make(map[group]float64)

	for _, r := range rows {
		if r.MeanSec <= 0 {
			continue
		}

		g := groupOf(r)
		if cur, ok := fastest[g]; !ok || r.MeanSec < cur {
			fastest[g] = r.MeanSec
		}
	}

	return fastest
}

// sortedForTable orders by case, then size, keeping sweep order within
// a group.
func sortedForTable(rows []results.Row) []results.Row {
	out := slices.Clone(rows)

	slices.SortStableFunc(out, func(a, b results.Row) int {
		if a.Case != b.Case {
			if a.Case < b.Case {
				return -1
			}

			return 1
		}

		return a.Size - b.Size
	})

	return out
}

func formatMs(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.3fms", ms)
	}

	return fmt.Sprintf("%.2fs", ms/1000)
}
