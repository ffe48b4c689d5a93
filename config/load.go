// Package config loads session configuration from defaults, an optional
// YAML file, a .env file, HEAPBENCH_* environment variables and command
// line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/heapbench/heapbench/dataset"
	"github.com/heapbench/heapbench/session"
)

// EnvPrefix prefixes every environment variable, e.g. HEAPBENCH_RUNS.
const EnvPrefix = "HEAPBENCH"

// Keys shared by flags, the config file and the environment.
const (
	KeySizes           = "sizes"
	KeyCases           = "cases"
	KeyRuns            = "runs"
	KeyResults         = "results"
	KeySource          = "source"
	KeyImplementations = "implementations"
	KeyCompiler        = "compiler"
	KeyBuildDir        = "build-dir"
	KeyBinary          = "binary"
	KeySeed            = "seed"
	KeyHistory         = "history"
)

// RegisterFlags defines the session flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	def := session.DefaultConfig()

	fs.StringSlice(KeySizes, sizesToStrings(def.Sizes),
		"Input sizes to benchmark")
	fs.StringSlice(KeyCases, shapesToStrings(def.Cases),
		"Input shapes: random, sorted, reversed")
	fs.Int(KeyRuns, def.Runs,
		"Timed runs per combination")
	fs.String(KeyResults, def.ResultsPath,
		"Results CSV path")
	fs.String(KeySource, def.SourcePath,
		"C++ source of the external implementation")
	fs.StringSlice(KeyImplementations, def.Implementations,
		"Implementations to measure, in order (go, c++)")
	fs.String(KeyCompiler, "",
		"C++ compiler (default: $CXX, then g++)")
	fs.String(KeyBuildDir, def.BuildDir,
		"Directory for the compiled executable")
	fs.String(KeyBinary, "",
		"Prebuilt executable to use instead of compiling (skips the build)")
	fs.Int64(KeySeed, 0,
		"Random seed (0 = use current time)")
	fs.String(KeyHistory, "",
		"SQLite database that records every session")
}

// Load resolves the session configuration. cfgFile may be empty; flags
// may be nil. The result is not validated.
func Load(cfgFile string, flags *pflag.FlagSet) (session.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return session.Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	def := session.DefaultConfig()
	v.SetDefault(KeySizes, sizesToStrings(def.Sizes))
	v.SetDefault(KeyCases, shapesToStrings(def.Cases))
	v.SetDefault(KeyRuns, def.Runs)
	v.SetDefault(KeyResults, def.ResultsPath)
	v.SetDefault(KeySource, def.SourcePath)
	v.SetDefault(KeyImplementations, def.Implementations)
	v.SetDefault(KeyBuildDir, def.BuildDir)
	v.SetDefault(KeySeed, 0)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)

		if err := v.ReadInConfig(); err != nil {
			return session.Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return session.Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	sizes, err := parseSizes(list(v, KeySizes))
	if err != nil {
		return session.Config{}, err
	}

	cases, err := parseCases(list(v, KeyCases))
	if err != nil {
		return session.Config{}, err
	}

	return session.Config{
		Sizes:           sizes,
		Cases:           cases,
		Runs:            v.GetInt(KeyRuns),
		ResultsPath:     v.GetString(KeyResults),
		SourcePath:      v.GetString(KeySource),
		Implementations: list(v, KeyImplementations),
		Compiler:        v.GetString(KeyCompiler),
		BuildDir:        v.GetString(KeyBuildDir),
		Binary:          v.GetString(KeyBinary),
		Seed:            v.GetInt64(KeySeed),
		HistoryPath:     v.GetString(KeyHistory),
	}, nil
}

// list reads a string list that may arrive as a YAML sequence, a flag
// slice or a comma separated environment value.
func list(v *viper.Viper, key string) []string {
	var out []string

	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func parseSizes(raw []string) ([]int, error) {
	sizes := make([]int, 0, len(raw))

	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid size %q: %w", KeySizes, s, err)
		}

		sizes = append(sizes, n)
	}

	return sizes, nil
}

func parseCases(raw []string) ([]dataset.Shape, error) {
	cases := make([]dataset.Shape, 0, len(raw))

	for _, s := range raw {
		shape, err := dataset.ParseShape(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyCases, err)
		}

		cases = append(cases, shape)
	}

	return cases, nil
}

func sizesToStrings(sizes []int) []string {
	out := make([]string, len(sizes))
	for i, n := range sizes {
		out[i] = strconv.Itoa(n)
	}

	return out
}

func shapesToStrings(shapes []dataset.Shape) []string {
	out := make([]string, len(shapes))
	for i, s := range shapes {
		out[i] = s.String()
	}

	return out
}
