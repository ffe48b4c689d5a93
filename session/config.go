package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/heapbench/heapbench/dataset"
)

// Config describes one benchmark session.
type Config struct {
	Sizes       []int
	Cases       []dataset.Shape
	Runs        int
	ResultsPath string
	SourcePath  string

	// Implementations lists the identifiers to measure, in the order
	// they run within each combination.
	Implementations []string

	// Compiler overrides the C++ compiler command.
	Compiler string
	// BuildDir is where the executable is written.
	BuildDir string
	// Binary, when set, is a prebuilt executable used instead of
	// compiling SourcePath. The session does not remove it.
	Binary string

	// Seed for random datasets; 0 picks a fresh one.
	Seed int64

	// HistoryPath, when set, is a SQLite database the session is
	// appended to after the results file is written.
	HistoryPath string
}

// DefaultConfig returns the standard sweep.
func DefaultConfig() Config {
	return Config{
		Sizes:           []int{1000, 10000, 50000, 100000, 250000},
		Cases:           dataset.Shapes(),
		Runs:            30,
		ResultsPath:     "benchmark_results.csv",
		SourcePath:      "harnesses/cpp/heapsort.cpp",
		Implementations: []string{LanguageGo, LanguageCpp},
		BuildDir:        ".",
	}
}

// Validate checks the configuration before anything is built or run.
func (c Config) Validate() error {
	if len(c.Sizes) == 0 {
		return errors.New("at least one size is required")
	}

	for _, size := range c.Sizes {
		if size <= 0 {
			return fmt.Errorf("size must be positive, got %d", size)
		}
	}

	if len(c.Cases) == 0 {
		return errors.New("at least one case is required")
	}

	for _, shape := range c.Cases {
		if !shape.Valid() {
			return fmt.Errorf("%w: %q", dataset.ErrInvalidShape, shape)
		}
	}

	if c.Runs <= 0 {
		return fmt.Errorf("runs must be positive, got %d", c.Runs)
	}

	if c.ResultsPath == "" {
		return errors.New("results path is required")
	}

	if len(c.Implementations) == 0 {
		return errors.New("at least one implementation is required")
	}

	if len(c.Implementations) > 2 {
		return fmt.Errorf("at most two implementations, got %d",
			len(c.Implementations))
	}

	for i, lang := range c.Implementations {
		if lang != LanguageGo && lang != LanguageCpp {
			return fmt.Errorf("%w: %q", ErrUnknownImplementation, lang)
		}

		if slices.Contains(c.Implementations[:i], lang) {
			return fmt.Errorf("duplicate implementation %q", lang)
		}
	}

	if c.needsExecutable() && c.Binary == "" && c.SourcePath == "" {
		return errors.New("source path is required to build the executable")
	}

	return nil
}

func (c Config) needsExecutable() bool {
	return slices.Contains(c.Implementations, LanguageCpp)
}
