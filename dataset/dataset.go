// Package dataset generates integer arrays of a given size and shape for
// the sort benchmarks. A Dataset is immutable once generated; runners
// work on clones.
package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidShape is returned for a shape name other than random,
	// sorted or reversed.
	ErrInvalidShape = errors.New("invalid shape")

	// ErrInvalidSize is returned for a non-positive dataset size.
	ErrInvalidSize = errors.New("invalid size")
)

// Shape is the structural pattern of a dataset before sorting.
type Shape string

const (
	Random   Shape = "random"
	Sorted   Shape = "sorted"
	Reversed Shape = "reversed"
)

// Shapes returns the recognized shapes in sweep order.
func Shapes() []Shape {
	return []Shape{Random, Sorted, Reversed}
}

// ParseShape validates a shape name from configuration.
func ParseShape(s string) (Shape, error) {
	shape := Shape(strings.ToLower(strings.TrimSpace(s)))
	if !shape.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidShape, s)
	}

	return shape, nil
}

// Valid reports whether s is one of the recognized shapes.
func (s Shape) Valid() bool {
	switch s {
	case Random, Sorted, Reversed:
		return true
	default:
		return false
	}
}

func (s Shape) String() string { return string(s) }

// Dataset is an ordered sequence of integers generated under a Shape.
type Dataset struct {
	shape  Shape
	values []int
}

// FromValues builds a Dataset from a copy of values.
func FromValues(shape Shape, values []int) Dataset {
	return Dataset{shape: shape, values: append([]int(nil), values...)}
}

// Shape returns the shape the dataset was generated under.
func (d Dataset) Shape() Shape { return d.shape }

// Len returns the number of elements.
func (d Dataset) Len() int { return len(d.values) }

// Clone returns an independent copy of the elements. Callers may mutate
// the returned slice freely.
func (d Dataset) Clone() []int {
	out := make([]int, len(d.values))
	copy(out, d.values)

	return out
}

// WriteText writes the elements as space-separated decimal integers,
// the input format of the external sort protocol.
func (d Dataset) WriteText(w io.Writer) error {
	buf := make([]byte, 0, 64*1024)

	for i, v := range d.values {
		if i > 0 {
			buf = append(buf, ' ')
		}

		buf = strconv.AppendInt(buf, int64(v), 10)

		if len(buf) >= 60*1024 {
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("write dataset: %w", err)
			}

			buf = buf[:0]
		}
	}

	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}

	return nil
}

// Text returns the WriteText encoding as a byte slice.
func (d Dataset) Text() []byte {
	var buf bytes.Buffer
	// bytes.Buffer never returns a write error.
	_ = d.WriteText(&buf)

	return buf.Bytes()
}

// Generator produces datasets. Only the random shape consumes the seed.
type Generator struct {
	seed int64
	rng  *mrand.Rand
}

// NewGenerator creates a Generator. A zero seed picks a fresh seed from
// the clock, so every session draws different random data.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		seed: seed,
		rng:  mrand.New(mrand.NewSource(seed)),
	}
}

// Seed returns the seed in use.
func (g *Generator) Seed() int64 { return g.seed }

// Generate returns a dataset of size elements shaped by shape.
func (g *Generator) Generate(size int, shape Shape) (Dataset, error) {
	if size <= 0 {
		return Dataset{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	values := make([]int, size)

	switch shape {
	case Random:
		for i := range values {
			values[i] = g.rng.Intn(size * 10)
		}

	case Sorted:
		for i := range values {
			values[i] = i
		}

	case Reversed:
		for i := range values {
			values[i] = size - 1 - i
		}

	default:
		return Dataset{}, fmt.Errorf("%w: %q", ErrInvalidShape, shape)
	}

	return Dataset{shape: shape, values: values}, nil
}
