package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/heapbench/heapbench/dataset"
)

// Runner measures one sort implementation over a dataset. Both the
// in-process and the out-of-process variants satisfy it, so the sweep
// does not care which one it is driving.
type Runner interface {
	// Name is the implementation identifier written to the results.
	Name() string

	// Measure executes the implementation runs times over independent
	// copies of ds. On error no records are returned.
	Measure(ctx context.Context, ds dataset.Dataset, runs int) ([]RunRecord, error)
}

// ProcessError carries the captured output of a failed external run.
type ProcessError struct {
	Name   string
	Run    int
	Stdout string
	Stderr string
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %s run %d: %v\nstdout: %s\nstderr: %s",
		ErrExternalProcessFailed, e.Name, e.Run, e.Err, e.Stdout, e.Stderr)
}

func (e *ProcessError) Unwrap() []error {
	return []error{ErrExternalProcessFailed, e.Err}
}

// ExternalRunner spawns an executable that speaks the external sort
// protocol and records the time it reports.
type ExternalRunner struct {
	name       string
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	Logger     *slog.Logger
}

// NewExternalRunner creates an ExternalRunner. Env is appended to the
// inherited environment.
func NewExternalRunner(
	name, binaryPath string,
	extraArgs, env []string,
	logger *slog.Logger,
) *ExternalRunner {
	return &ExternalRunner{
		name:       name,
		BinaryPath: binaryPath,
		ExtraArgs:  extraArgs,
		Env:        env,
		Logger:     logger.With(slog.String("language", name)),
	}
}

// Name implements Runner.
func (r *ExternalRunner) Name() string { return r.name }

// Measure implements Runner. The dataset is serialized once and the
// same bytes are fed to every run.
func (r *ExternalRunner) Measure(
	ctx context.Context,
	ds dataset.Dataset,
	runs int,
) ([]RunRecord, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}

	payload := ds.Text()
	records := make([]RunRecord, 0, runs)

	r.Logger.InfoContext(ctx, "running external implementation",
		slog.String("binary", r.BinaryPath),
		slog.Int("size", ds.Len()),
		slog.String("case", ds.Shape().String()),
		slog.Int("runs", runs),
	)

	for i := 1; i <= runs; i++ {
		secs, err := r.runOnce(ctx, i, payload)
		if err != nil {
			return nil, err
		}

		records = append(records, RunRecord{Run: i, Seconds: secs})

		r.Logger.DebugContext(ctx, "run finished",
			slog.Int("run", i),
			slog.Float64("seconds", secs),
		)
	}

	return records, nil
}

func (r *ExternalRunner) runOnce(
	ctx context.Context,
	run int,
	payload []byte,
) (float64, error) {
	cmd := exec.CommandContext(ctx, r.BinaryPath, r.ExtraArgs...)

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, &ProcessError{
			Name:   r.name,
			Run:    run,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	secs, err := parseTiming(stdout.String())
	if err != nil {
		return 0, fmt.Errorf("%s run %d: %w", r.name, run, err)
	}

	return secs, nil
}
