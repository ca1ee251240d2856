package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: DUCHAIN_[SECTION]_[KEY] (e.g., DUCHAIN_INDEX_BACKEND).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Language, "DUCHAIN_LANGUAGE")

	setEnvString(&cfg.Index.Backend, "DUCHAIN_INDEX_BACKEND")
	setEnvString(&cfg.Index.Path, "DUCHAIN_INDEX_PATH")
	setEnvString(&cfg.Index.ProjectKey, "DUCHAIN_INDEX_PROJECT_KEY")
	setEnvInt(&cfg.Index.CacheSize, "DUCHAIN_INDEX_CACHE_SIZE")

	setEnvString(&cfg.Builtins.InternalStub, "DUCHAIN_BUILTINS_INTERNAL_STUB")
	setEnvString(&cfg.Builtins.TestingStub, "DUCHAIN_BUILTINS_TESTING_STUB")

	setEnvDuration(&cfg.Watch.Debounce, "DUCHAIN_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.Rate, "DUCHAIN_WATCH_RATE")
	setEnvInt(&cfg.Watch.Burst, "DUCHAIN_WATCH_BURST")

	setEnvString(&cfg.Observability.LogLevel, "DUCHAIN_OBSERVABILITY_LOG_LEVEL")
	setEnvString(&cfg.Observability.MetricsAddr, "DUCHAIN_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "DUCHAIN_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
