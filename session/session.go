// Package session runs a benchmark session: build the external
// implementation, sweep every size and case through each runner,
// aggregate, and persist the results table.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/heapbench/heapbench/dataset"
	"github.com/heapbench/heapbench/harness"
	"github.com/heapbench/heapbench/heapsort"
	"github.com/heapbench/heapbench/results"
	"github.com/heapbench/heapbench/stats"
)

// Implementation identifiers, as written to the language column.
const (
	LanguageGo  = "go"
	LanguageCpp = "c++"
)

var (
	// ErrUnknownImplementation is returned for an identifier with no runner.
	ErrUnknownImplementation = errors.New("unknown implementation")

	// ErrNoResults is returned when every combination failed, so there
	// is nothing to persist.
	ErrNoResults = errors.New("no results were produced")
)

// BuildFunc compiles the external implementation.
type BuildFunc func(
	ctx context.Context,
	logger *slog.Logger,
	cfg harness.BuildConfig,
) (*harness.Artifact, error)

// RunnerFactory returns the runner for an implementation identifier.
// artifact is nil when no implementation needs an external executable.
type RunnerFactory func(
	language string,
	artifact *harness.Artifact,
	logger *slog.Logger,
) (harness.Runner, error)

// Failure is a combination that was skipped.
type Failure struct {
	Language string
	Case     dataset.Shape
	Size     int
	Err      error
}

// Outcome is what a completed session produced.
type Outcome struct {
	ID         string
	Seed       int64
	StartedAt  time.Time
	FinishedAt time.Time
	Table      *results.Table
	Failures   []Failure
}

// Session drives one sweep.
type Session struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
	build     BuildFunc
	newRunner RunnerFactory
}

// Option customizes a Session.
type Option func(*Session)

// WithBuildFunc replaces the compiler invocation.
func WithBuildFunc(fn BuildFunc) Option {
	return func(s *Session) { s.build = fn }
}

// WithRunnerFactory replaces the identifier to runner mapping.
func WithRunnerFactory(fn RunnerFactory) Option {
	return func(s *Session) { s.newRunner = fn }
}

// WithMetrics records session metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// New creates a Session for cfg.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		cfg:       cfg,
		logger:    logger,
		build:     harness.Build,
		newRunner: DefaultRunnerFactory,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	return s
}

// Metrics returns the collectors the session records into.
func (s *Session) Metrics() *Metrics { return s.metrics }

// DefaultRunnerFactory maps "go" to the in-process heap sort and "c++"
// to the compiled executable.
func DefaultRunnerFactory(
	language string,
	artifact *harness.Artifact,
	logger *slog.Logger,
) (harness.Runner, error) {
	switch language {
	case LanguageGo:
		return harness.NewInProcessRunner(language, heapsort.Sort, logger), nil

	case LanguageCpp:
		if artifact == nil {
			return nil, fmt.Errorf("%s: no executable available", language)
		}

		return harness.NewExternalRunner(language, artifact.Path, nil, nil, logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownImplementation, language)
	}
}

// Run executes the session. Build failures abort before any measurement;
// a failing combination is logged and skipped; a persistence failure
// aborts with no results file guaranteed. The build artifact is removed
// on every return path.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	out := &Outcome{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Table:     results.NewTable(),
	}

	logger := s.logger.With(slog.String("session", out.ID))

	artifact, err := s.acquireArtifact(ctx, logger)
	if err != nil {
		return nil, err
	}

	defer func() {
		if !artifact.Owned() {
			return
		}

		if err := artifact.Cleanup(); err != nil {
			logger.WarnContext(ctx, "failed to remove build artifact",
				slog.String("error", err.Error()),
			)

			return
		}

		logger.InfoContext(ctx, "build artifact removed",
			slog.String("binary", artifact.Path),
		)
	}()

	runners := make([]harness.Runner, 0, len(s.cfg.Implementations))

	for _, lang := range s.cfg.Implementations {
		r, err := s.newRunner(lang, artifact, logger)
		if err != nil {
			return nil, fmt.Errorf("runner %s: %w", lang, err)
		}

		runners = append(runners, r)
	}

	gen := dataset.NewGenerator(s.cfg.Seed)
	out.Seed = gen.Seed()

	logger.InfoContext(ctx, "starting sweep",
		slog.Any("sizes", s.cfg.Sizes),
		slog.Any("cases", s.cfg.Cases),
		slog.Int("runs", s.cfg.Runs),
		slog.Any("implementations", s.cfg.Implementations),
		slog.Int64("seed", out.Seed),
	)

	for _, size := range s.cfg.Sizes {
		for _, shape := range s.cfg.Cases {
			ds, err := gen.Generate(size, shape)
			if err != nil {
				return nil, fmt.Errorf("generate %s/%d: %w", shape, size, err)
			}

			for _, r := range runners {
				row, err := s.measure(ctx, logger, r, ds)
				if err != nil {
					s.skip(ctx, logger, r.Name(), ds, err)
					out.Failures = append(out.Failures, Failure{
						Language: r.Name(),
						Case:     shape,
						Size:     size,
						Err:      err,
					})

					continue
				}

				out.Table.Record(row)
			}
		}
	}

	out.FinishedAt = time.Now()

	if out.Table.Len() == 0 {
		logger.ErrorContext(ctx, "no results to save",
			slog.Int("failures", len(out.Failures)),
		)

		return out, ErrNoResults
	}

	if err := out.Table.Flush(s.cfg.ResultsPath); err != nil {
		return out, err
	}

	logger.InfoContext(ctx, "results saved",
		slog.String("path", s.cfg.ResultsPath),
		slog.Int("rows", out.Table.Len()),
		slog.Int("skipped", len(out.Failures)),
	)

	if s.cfg.HistoryPath != "" {
		if err := s.saveHistory(ctx, out); err != nil {
			logger.WarnContext(ctx, "failed to record session history",
				slog.String("path", s.cfg.HistoryPath),
				slog.String("error", err.Error()),
			)
		}
	}

	return out, nil
}

// acquireArtifact builds the external executable, or wraps the prebuilt
// one, when any configured implementation runs out of process.
func (s *Session) acquireArtifact(
	ctx context.Context,
	logger *slog.Logger,
) (*harness.Artifact, error) {
	if !s.cfg.needsExecutable() {
		return nil, nil
	}

	if s.cfg.Binary != "" {
		binary, err := filepath.Abs(s.cfg.Binary)
		if err != nil {
			return nil, fmt.Errorf("resolve binary: %w", err)
		}

		logger.InfoContext(ctx, "using prebuilt executable",
			slog.String("binary", binary),
		)

		return harness.PrebuiltArtifact(binary), nil
	}

	start := time.Now()

	artifact, err := s.build(ctx, logger, harness.BuildConfig{
		Compiler:  s.cfg.Compiler,
		Source:    s.cfg.SourcePath,
		OutputDir: s.cfg.BuildDir,
	})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	s.metrics.BuildSeconds.Set(time.Since(start).Seconds())

	return artifact, nil
}

func (s *Session) measure(
	ctx context.Context,
	logger *slog.Logger,
	r harness.Runner,
	ds dataset.Dataset,
) (results.Row, error) {
	records, err := r.Measure(ctx, ds, s.cfg.Runs)
	if err != nil {
		return results.Row{}, err
	}

	for _, rec := range records {
		s.metrics.RunSeconds.
			WithLabelValues(r.Name(), ds.Shape().String()).
			Observe(rec.Seconds)
	}

	s.metrics.RunsTotal.WithLabelValues(r.Name()).Add(float64(len(records)))

	sum, err := stats.Aggregate(records)
	if err != nil {
		return results.Row{}, fmt.Errorf("aggregate: %w", err)
	}

	s.metrics.CombinationsTotal.WithLabelValues(r.Name(), "ok").Inc()

	logger.InfoContext(ctx, "combination measured",
		slog.String("language", r.Name()),
		slog.String("case", ds.Shape().String()),
		slog.Int("size", ds.Len()),
		slog.Float64("mean_sec", sum.Mean),
		slog.Float64("std_dev_sec", sum.StdDev),
		slog.Float64("min_sec", sum.Min),
		slog.Float64("max_sec", sum.Max),
	)

	return results.Row{
		Language:  r.Name(),
		Case:      ds.Shape().String(),
		Size:      ds.Len(),
		MeanSec:   sum.Mean,
		StdDevSec: sum.StdDev,
	}, nil
}

func (s *Session) skip(
	ctx context.Context,
	logger *slog.Logger,
	language string,
	ds dataset.Dataset,
	err error,
) {
	s.metrics.CombinationsTotal.WithLabelValues(language, "failed").Inc()

	attrs := []any{
		slog.String("language", language),
		slog.String("case", ds.Shape().String()),
		slog.Int("size", ds.Len()),
		slog.String("error", err.Error()),
	}

	var perr *harness.ProcessError
	if errors.As(err, &perr) {
		attrs = append(attrs,
			slog.String("stdout", perr.Stdout),
			slog.String("stderr", perr.Stderr),
		)
	}

	logger.ErrorContext(ctx, "combination skipped", attrs...)
}

func (s *Session) saveHistory(ctx context.Context, out *Outcome) error {
	h, err := results.OpenHistory(s.cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer h.Close()

	cases := make([]string, len(s.cfg.Cases))
	for i, c := range s.cfg.Cases {
		cases[i] = c.String()
	}

	return h.Append(ctx, results.SessionRecord{
		ID:         out.ID,
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
		Runs:       s.cfg.Runs,
		Seed:       out.Seed,
		Cases:      cases,
		Sizes:      s.cfg.Sizes,
		Rows:       out.Table.Rows(),
	})
}
