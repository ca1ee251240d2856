// Package config loads the TOML configuration of the duchain tools.
package config

import (
	"time"
)

// DefaultFileName is looked up in the project root when no config path is
// given.
const DefaultFileName = "duchain.toml"

type Config struct {
	Version       int           `toml:"version"`
	Language      string        `toml:"language"`
	Index         Index         `toml:"index"`
	Builtins      Builtins      `toml:"builtins"`
	Scan          Scan          `toml:"scan"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

// Index selects the symbol table backend.
type Index struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	ProjectKey string `toml:"project_key"`
	CacheSize  int    `toml:"cache_size"`
}

// Builtins optionally replaces the embedded builtin declaration stubs.
type Builtins struct {
	InternalStub string `toml:"internal_stub"`
	TestingStub  string `toml:"testing_stub"`
}

type Scan struct {
	Paths        []string `toml:"paths"`
	Extensions   []string `toml:"extensions"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	Rate     float64       `toml:"rate"` // re-index batches per second
	Burst    int           `toml:"burst"`
}

type Observability struct {
	LogLevel     string `toml:"log_level"`
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
