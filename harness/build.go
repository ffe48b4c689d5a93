package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// BinaryBaseName is the fixed base name of the compiled executable.
const BinaryBaseName = "heapsort_cpp"

// BuildConfig describes how to compile the external sort executable.
type BuildConfig struct {
	// Compiler is the C++ compiler command. Defaults to $CXX, then g++.
	Compiler string
	Source   string
	// OutputDir is where the executable is written. Defaults to ".".
	OutputDir string
	// Standard is the language standard passed as -std. Defaults to c++11.
	Standard string
	Flags    []string
}

// CompileError carries the compiler diagnostics of a failed build.
type CompileError struct {
	Compiler string
	Output   string
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %v\n%s", ErrCompile, e.Compiler, e.Err, e.Output)
}

func (e *CompileError) Unwrap() []error { return []error{ErrCompile, e.Err} }

// Artifact is a compiled executable owned by a benchmark session.
type Artifact struct {
	Path  string
	owned bool
}

// NewArtifact wraps an executable owned by the caller. Cleanup removes it.
func NewArtifact(path string) *Artifact {
	return &Artifact{Path: path, owned: true}
}

// Owned reports whether Cleanup will remove the executable.
func (a *Artifact) Owned() bool { return a != nil && a.owned }

// PrebuiltArtifact wraps an executable the session did not build.
// Cleanup leaves it in place.
func PrebuiltArtifact(path string) *Artifact {
	return &Artifact{Path: path}
}

// Cleanup removes the executable if the session built it. Calling it
// more than once, or after the file is gone, is not an error.
func (a *Artifact) Cleanup() error {
	if a == nil || !a.owned {
		return nil
	}

	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", a.Path, err)
	}

	a.owned = false

	return nil
}

// ResolveBinary returns the executable path for the host platform.
func ResolveBinary(outputDir string) string {
	name := BinaryBaseName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	return filepath.Join(outputDir, name)
}

func (c BuildConfig) withDefaults() BuildConfig {
	if c.Compiler == "" {
		c.Compiler = os.Getenv("CXX")
	}
	if c.Compiler == "" {
		c.Compiler = "g++"
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Standard == "" {
		c.Standard = "c++11"
	}

	return c
}

// Build compiles the external sort executable with optimizations
// enabled and returns the session-owned artifact. The artifact path is
// absolute.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	cfg BuildConfig,
) (*Artifact, error) {
	cfg = cfg.withDefaults()

	if _, err := os.Stat(cfg.Source); err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Source, err)
	}

	compiler, err := exec.LookPath(cfg.Compiler)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolchainMissing, cfg.Compiler, err)
	}

	// exec resolves a bare name through $PATH, so the output path must
	// carry a directory even when OutputDir is ".".
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	binPath := ResolveBinary(outputDir)

	args := make([]string, 0, len(cfg.Flags)+5)
	args = append(args, "-o", binPath, cfg.Source, "-std="+cfg.Standard, "-O3")
	args = append(args, cfg.Flags...)

	logger.InfoContext(ctx, "compiling external implementation",
		slog.String("compiler", compiler),
		slog.String("source", cfg.Source),
		slog.String("binary", binPath),
	)

	cmd := exec.CommandContext(ctx, compiler, args...)

	var diag bytes.Buffer
	cmd.Stdout = &diag
	cmd.Stderr = &diag

	start := time.Now()

	if err := cmd.Run(); err != nil {
		return nil, &CompileError{
			Compiler: cfg.Compiler,
			Output:   diag.String(),
			Err:      err,
		}
	}

	if _, err := os.Stat(binPath); err != nil {
		return nil, fmt.Errorf("build: binary not found at %s: %w", binPath, err)
	}

	logger.InfoContext(ctx, "external implementation built",
		slog.String("binary", binPath),
		slog.Duration("took", time.Since(start)),
	)

	return NewArtifact(binPath), nil
}
