// Package main provides the CLI entry point for heapbench, a heap sort
// benchmark comparing an in-process Go implementation with a compiled
// C++ executable.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/heapbench/heapbench/config"
	"github.com/heapbench/heapbench/harness"
	"github.com/heapbench/heapbench/report"
	"github.com/heapbench/heapbench/results"
	"github.com/heapbench/heapbench/session"
)

func main() {
	app := &app{stdout: os.Stdout, stderr: os.Stderr}

	root := newRootCmd(app)
	if err := root.ExecuteContext(context.Background()); err != nil {
		app.log().Error("heapbench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// app carries state shared by the subcommands.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgFile   string
	logFormat string
	debug     bool

	logger *slog.Logger
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		a.logger = newLogger(a.stderr, a.logFormat, a.debug)
	}

	return a.logger
}

func newLogger(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}

	return slog.New(slog.NewTextHandler(w, hopts))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "heapbench",
		Short: "Heap sort benchmark across implementations",
		Long: `Heapbench compiles a C++ heap sort, runs it alongside the in-process Go
heap sort over every configured input size and shape, and records the mean
and standard deviation of each combination in a CSV table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			switch a.logFormat {
			case "text", "json":
			default:
				return fmt.Errorf("unknown log format %q", a.logFormat)
			}

			a.logger = newLogger(a.stderr, a.logFormat, a.debug)

			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"YAML config file")
	pf.StringVar(&a.logFormat, "log-format", "text",
		"Log format: text, json")
	pf.BoolVar(&a.debug, "debug", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(a), newReportCmd(a), newHistoryCmd(a))

	return root
}

func newRunCmd(a *app) *cobra.Command {
	var (
		metricsAddr   string
		chartsDir     string
		chartLanguage string
		skipBuild     bool
		outputJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, benchmark and save results",
		Long: `Compile the external implementation, sweep every size and case through
each implementation, and write the aggregated results table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			if skipBuild && cfg.Binary == "" {
				cfg.Binary = harness.ResolveBinary(cfg.BuildDir)
			}

			return runBenchmark(cmd.Context(), a, cfg, runOptions{
				metricsAddr:   metricsAddr,
				chartsDir:     chartsDir,
				chartLanguage: chartLanguage,
				outputJSON:    outputJSON,
			})
		},
	}

	flags := cmd.Flags()
	config.RegisterFlags(flags)
	flags.StringVar(&metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address while running (e.g. :2112)")
	flags.StringVar(&chartsDir, "charts-dir", "",
		"Also render chart pages into this directory")
	flags.StringVar(&chartLanguage, "chart-language", "",
		"Language shown in the per-case chart (default: c++ when present, else the first recorded)")
	flags.BoolVar(&skipBuild, "skip-build", false,
		"Use the executable already in --build-dir instead of compiling")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")

	return cmd
}

type runOptions struct {
	metricsAddr   string
	chartsDir     string
	chartLanguage string
	outputJSON    bool
}

func runBenchmark(
	ctx context.Context,
	a *app,
	cfg session.Config,
	opts runOptions,
) error {
	logger := a.log()
	metrics := session.NewMetrics()

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(logger, opts.metricsAddr, metrics)
		if err != nil {
			return err
		}
		defer stop()
	}

	out, err := session.New(cfg, logger, session.WithMetrics(metrics)).Run(ctx)
	if err != nil {
		return err
	}

	rows := out.Table.Rows()

	if err := printSummary(a.stdout, rows, opts.outputJSON); err != nil {
		return err
	}

	if opts.chartsDir != "" {
		if err := renderCharts(logger, rows, opts.chartsDir, opts.chartLanguage); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "benchmark complete",
		slog.String("session", out.ID),
		slog.Int("rows", len(rows)),
		slog.Int("skipped", len(out.Failures)),
		slog.Duration("took", out.FinishedAt.Sub(out.StartedAt)),
	)

	return nil
}

// serveMetrics exposes the session registry until stop is called.
func serveMetrics(
	logger *slog.Logger,
	addr string,
	metrics *session.Metrics,
) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}, nil
}

func printSummary(w io.Writer, rows []results.Row, asJSON bool) error {
	if asJSON {
		if err := report.GenerateJSON(w, rows); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}

		return nil
	}

	if err := report.Generate(w, rows); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	return nil
}

func renderCharts(logger *slog.Logger, rows []results.Row, dir, language string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create charts dir: %w", err)
	}

	if language == "" {
		language = report.ChartLanguage(rows, session.LanguageCpp)
	}

	paths, err := report.WriteCharts(rows, dir, language)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}

	logger.Info("charts written", slog.String("files", strings.Join(paths, ", ")))

	return nil
}

func newReportCmd(a *app) *cobra.Command {
	var (
		resultsPath string
		chartsDir   string
		language    string
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize and chart a saved results table",
		RunE: func(*cobra.Command, []string) error {
			rows, err := results.Load(resultsPath)
			if err != nil {
				return err
			}

			if err := printSummary(a.stdout, rows, outputJSON); err != nil {
				return err
			}

			return renderCharts(a.log(), rows, chartsDir, language)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&resultsPath, "results", session.DefaultConfig().ResultsPath,
		"Results CSV to read")
	flags.StringVar(&chartsDir, "charts-dir", ".",
		"Directory for the chart pages")
	flags.StringVar(&language, "language", "",
		"Language shown in the per-case chart (default: c++ when present, else the first recorded)")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")

	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		historyPath string
		sessionID   string
		limit       int
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, or show the rows of one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := results.OpenHistory(historyPath)
			if err != nil {
				return err
			}
			defer h.Close()

			if sessionID != "" {
				rows, err := h.Rows(cmd.Context(), sessionID)
				if err != nil {
					return err
				}

				return printSummary(a.stdout, rows, outputJSON)
			}

			sessions, err := h.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if outputJSON {
				return report.GenerateJSON(a.stdout, sessions)
			}

			printSessions(a.stdout, sessions)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&historyPath, "history", "heapbench.db",
		"SQLite history database")
	flags.StringVar(&sessionID, "session", "",
		"Show the rows of this session")
	flags.IntVar(&limit, "limit", 10,
		"Number of sessions to list")
	flags.BoolVar(&outputJSON, "json", false,
		"Output as JSON")

	return cmd
}

func printSessions(w io.Writer, sessions []results.SessionRecord) {
	fmt.Fprintln(w, "| Session | Started | Took | Runs | Seed | Rows |")
	fmt.Fprintln(w, "|---------|---------|------|------|------|------|")

	for _, s := range sessions {
		fmt.Fprintf(w, "| %s | %s | %s | %d | %d | %d |\n",
			s.ID,
			s.StartedAt.Format(time.RFC3339),
			s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond),
			s.Runs,
			s.Seed,
			s.RowCount,
		)
	}
}
