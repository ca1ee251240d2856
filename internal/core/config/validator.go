package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
)

var supportedLanguages = map[string]bool{"php": true}

// Validate returns every problem found in cfg.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validateLanguage,
		validateIndex,
		validateScan,
		validateWatch,
		validateObservability,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateLanguage(cfg *Config) error {
	if !supportedLanguages[cfg.Language] {
		return fmt.Errorf("language %q is not supported", cfg.Language)
	}
	return nil
}

func validateIndex(cfg *Config) error {
	switch cfg.Index.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Index.Path == "" {
			return fmt.Errorf("index.path must not be empty for the sqlite backend")
		}
		if cfg.Index.ProjectKey == "" {
			return fmt.Errorf("index.project_key must not be empty")
		}
	default:
		return fmt.Errorf("index.backend must be one of: %s, %s; got %q", BackendMemory, BackendSQLite, cfg.Index.Backend)
	}
	if cfg.Index.CacheSize < 0 {
		return fmt.Errorf("index.cache_size must be >= 0, got %d", cfg.Index.CacheSize)
	}
	return nil
}

func validateScan(cfg *Config) error {
	if len(cfg.Scan.Extensions) == 0 {
		return fmt.Errorf("scan.extensions must not be empty")
	}
	for _, pattern := range append(append([]string(nil), cfg.Scan.ExcludeDirs...), cfg.Scan.ExcludeFiles...) {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid scan exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0, got %s", cfg.Watch.Debounce)
	}
	if cfg.Watch.Rate <= 0 {
		return fmt.Errorf("watch.rate must be > 0, got %v", cfg.Watch.Rate)
	}
	if cfg.Watch.Burst < 1 {
		return fmt.Errorf("watch.burst must be >= 1, got %d", cfg.Watch.Burst)
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if _, err := ParseLogLevel(cfg.Observability.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps the configured level name to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("observability.log_level must be one of: debug, info, warn, error; got %q", level)
	}
}
