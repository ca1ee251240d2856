package config

import (
	"log/slog"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"version", func(c *Config) { c.Version = 3 }, "unsupported config version"},
		{"language", func(c *Config) { c.Language = "go" }, `language "go" is not supported`},
		{"backend", func(c *Config) { c.Index.Backend = "redis" }, "index.backend must be one of"},
		{"sqlite path", func(c *Config) { c.Index.Backend = BackendSQLite; c.Index.Path = "" }, "index.path must not be empty"},
		{"cache size", func(c *Config) { c.Index.CacheSize = -1 }, "index.cache_size"},
		{"extensions", func(c *Config) { c.Scan.Extensions = nil }, "scan.extensions"},
		{"exclude glob", func(c *Config) { c.Scan.ExcludeFiles = []string{"[unclosed"} }, "invalid scan exclude pattern"},
		{"rate", func(c *Config) { c.Watch.Rate = -1 }, "watch.rate"},
		{"burst", func(c *Config) { c.Watch.Burst = 0 }, "watch.burst"},
		{"log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "observability.log_level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			errs := Validate(cfg)
			if len(errs) != 1 {
				t.Fatalf("expected exactly one error, got %v", errs)
			}
			if !strings.Contains(errs[0].Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, errs[0])
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLogLevel("trace"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
