// Package results accumulates aggregated benchmark rows and persists them
// as a flat CSV table, the sole input of the reporting stage.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/moby/sys/atomicwriter"
)

// ErrPersistence is returned when the results table cannot be written.
var ErrPersistence = errors.New("persistence error")

// Header is the fixed column schema of the results file.
var Header = []string{"language", "case_type", "size", "mean_time_sec", "std_dev_sec"}

// Row is the aggregate of one (implementation, case, size) combination.
type Row struct {
	Language  string  `json:"language"`
	Case      string  `json:"case_type"`
	Size      int     `json:"size"`
	MeanSec   float64 `json:"mean_time_sec"`
	StdDevSec float64 `json:"std_dev_sec"`
}

// MeanMs returns the mean duration in milliseconds.
func (r Row) MeanMs() float64 { return r.MeanSec * 1000 }

// StdDevMs returns the standard deviation in milliseconds.
func (r Row) StdDevMs() float64 { return r.StdDevSec * 1000 }

func (r Row) record() []string {
	return []string{
		r.Language,
		r.Case,
		strconv.Itoa(r.Size),
		formatFloat(r.MeanSec),
		formatFloat(r.StdDevSec),
	}
}

// formatFloat is locale independent: always '.' and never a thousands
// separator.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is the ordered, in-memory results of one session.
type Table struct {
	rows []Row
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{}
}

// Record appends row in sweep order.
func (t *Table) Record(row Row) {
	t.rows = append(t.rows, row)
}

// Rows returns a copy of the recorded rows.
func (t *Table) Rows() []Row {
	return slices.Clone(t.rows)
}

// Len returns the number of recorded rows.
func (t *Table) Len() int { return len(t.rows) }

// Flush writes the table to path in one atomic replace. On failure the
// previous contents of path, if any, are left untouched.
func (t *Table) Flush(path string) error {
	f, err := atomicwriter.New(path, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrPersistence, path, err)
	}

	if err := Write(f, t.rows); err != nil {
		f.Close()

		return fmt.Errorf("%w: write %s: %v", ErrPersistence, path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", ErrPersistence, path, err)
	}

	return nil
}

// Write encodes rows with the header to w.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// Load reads a results file written by Flush.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a results table from r.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v, want %v", header, Header)
	}

	var rows []Row

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row, err := parseRow(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)

			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	size, err := strconv.Atoi(rec[2])
	if err != nil {
		return Row{}, fmt.Errorf("size: %w", err)
	}

	mean, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Row{}, fmt.Errorf("mean_time_sec: %w", err)
	}

	stddev, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Row{}, fmt.Errorf("std_dev_sec: %w", err)
	}

	return Row{
		Language:  rec[0],
		Case:      rec[1],
		Size:      size,
		MeanSec:   mean,
		StdDevSec: stddev,
	}, nil
}
