package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heapbench/heapbench/dataset"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		ok      bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "no sizes", mutate: func(c *Config) { c.Sizes = nil }},
		{name: "zero size", mutate: func(c *Config) { c.Sizes = []int{10, 0} }},
		{name: "no cases", mutate: func(c *Config) { c.Cases = nil }},
		{
			name:    "unknown case",
			mutate:  func(c *Config) { c.Cases = []dataset.Shape{"nearly-sorted"} },
			wantErr: dataset.ErrInvalidShape,
		},
		{name: "zero runs", mutate: func(c *Config) { c.Runs = 0 }},
		{name: "no results path", mutate: func(c *Config) { c.ResultsPath = "" }},
		{name: "no implementations", mutate: func(c *Config) { c.Implementations = nil }},
		{
			name:    "unknown implementation",
			mutate:  func(c *Config) { c.Implementations = []string{"rust"} },
			wantErr: ErrUnknownImplementation,
		},
		{
			name:   "too many implementations",
			mutate: func(c *Config) { c.Implementations = []string{"go", "c++", "go"} },
		},
		{
			name:   "duplicate implementation",
			mutate: func(c *Config) { c.Implementations = []string{"go", "go"} },
		},
		{
			name:   "external without source",
			mutate: func(c *Config) { c.SourcePath = "" },
		},
		{
			name: "external with prebuilt binary",
			mutate: func(c *Config) {
				c.SourcePath = ""
				c.Binary = "/opt/heapsort_cpp"
			},
			ok: true,
		},
		{
			name: "in-process only needs no source",
			mutate: func(c *Config) {
				c.SourcePath = ""
				c.Implementations = []string{LanguageGo}
			},
			ok: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)

				return
			}

			assert.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
