package report

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/moby/sys/atomicwriter"

	"github.com/heapbench/heapbench/results"
)

// Chart page file names written by WriteCharts.
const (
	LogLogChart = "loglog.html"
	LinearChart = "linear.html"
	CasesChart  = "cases.html"
)

// ScalingCase is the case plotted against size.
const ScalingCase = "random"

// ErrLanguageNotFound is returned when the cases chart language has no rows.
var ErrLanguageNotFound = errors.New("language not found in results")

// WriteCharts renders the three chart pages into dir and returns their
// paths. The scaling charts plot the random case for every language; the
// cases chart compares every case of language at its largest size.
func WriteCharts(rows []results.Row, dir, language string) ([]string, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	cases, err := casesChart(rows, language)
	if err != nil {
		return nil, err
	}

	pages := []struct {
		name  string
		chart interface{ Render(io.Writer) error }
	}{
		{LogLogChart, scalingChart(rows, "log")},
		{LinearChart, scalingChart(rows, "value")},
		{CasesChart, cases},
	}

	paths := make([]string, 0, len(pages))

	for _, p := range pages {
		path := filepath.Join(dir, p.name)
		if err := renderTo(path, p.chart); err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

func renderTo(path string, chart interface{ Render(io.Writer) error }) error {
	f, err := atomicwriter.New(path, 0o644)
	if err != nil {
		return fmt.Errorf("create chart %s: %w", path, err)
	}

	if err := chart.Render(f); err != nil {
		f.Close()

		return fmt.Errorf("render chart %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("write chart %s: %w", path, err)
	}

	return nil
}

// scalingChart plots mean time against size, one series per language.
// axisType is "log" or "value".
func scalingChart(rows []results.Row, axisType string) *charts.Line {
	title := "Heap sort scaling (log-log)"
	if axisType != "log" {
		title = "Heap sort scaling"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "Case: " + ScalingCase,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Input size (N)", Type: axisType}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean time (ms)", Type: axisType}),
	)

	for _, lang := range languages(rows) {
		var data []opts.LineData

		for _, r := range rows {
			if r.Language != lang || r.Case != ScalingCase {
				continue
			}

			data = append(data, opts.LineData{Value: []any{r.Size, r.MeanMs()}})
		}

		slices.SortFunc(data, func(a, b opts.LineData) int {
			return a.Value.([]any)[0].(int) - b.Value.([]any)[0].(int)
		})

		line.AddSeries(lang, data)
	}

	return line
}

// casesChart compares every case of language at its largest size.
func casesChart(rows []results.Row, language string) (*charts.Bar, error) {
	largest := 0

	for _, r := range rows {
		if r.Language == language && r.Size > largest {
			largest = r.Size
		}
	}

	if largest == 0 {
		return nil, fmt.Errorf("%w: %q", ErrLanguageNotFound, language)
	}

	var (
		names []string
		data  []opts.BarData
	)

	for _, r := range rows {
		if r.Language != language || r.Size != largest {
			continue
		}

		names = append(names, r.Case)
		data = append(data, opts.BarData{Value: r.MeanMs()})
	}

	title := fmt.Sprintf("Heap sort by case (%s, N=%d)", language, largest)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Case"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean time (ms)"}),
	)

	bar.SetXAxis(names).AddSeries(language, data,
		charts.WithLabelOpts(opts.Label{
			Show:      opts.Bool(true),
			Position:  "top",
			Formatter: "{c} ms",
		}),
	)

	return bar, nil
}

// ChartLanguage picks the cases chart language: preferred when rows
// contain it, otherwise the first language recorded.
func ChartLanguage(rows []results.Row, preferred string) string {
	langs := languages(rows)
	if len(langs) == 0 || slices.Contains(langs, preferred) {
		return preferred
	}

	return langs[0]
}

// languages returns the distinct languages in first-seen order.
func languages(rows []results.Row) []string {
	var out []string

	for _, r := range rows {
		if !slices.Contains(out, r.Language) {
			out = append(out, r.Language)
		}
	}

	return out
}
