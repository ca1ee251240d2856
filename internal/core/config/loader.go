package config

import (
	"duchain/internal/core/errors"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "decode config"), errors.CtxPath, path)
	}

	ApplyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	normalize(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.AddContext(errors.Wrap(errs[0], errors.CodeValidationError, "invalid config"), errors.CtxPath, path)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "php"
	}

	if strings.TrimSpace(cfg.Index.Backend) == "" {
		cfg.Index.Backend = BackendMemory
	}
	if strings.TrimSpace(cfg.Index.Path) == "" {
		cfg.Index.Path = ".duchain/index.db"
	}
	if strings.TrimSpace(cfg.Index.ProjectKey) == "" {
		cfg.Index.ProjectKey = "default"
	}
	if cfg.Index.CacheSize == 0 {
		cfg.Index.CacheSize = 1024
	}

	if len(cfg.Scan.Paths) == 0 {
		cfg.Scan.Paths = []string{"."}
	}
	if len(cfg.Scan.Extensions) == 0 {
		cfg.Scan.Extensions = []string{".php"}
	}
	if cfg.Scan.ExcludeDirs == nil {
		cfg.Scan.ExcludeDirs = []string{".git", "node_modules", ".duchain"}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.Rate == 0 {
		cfg.Watch.Rate = 4
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 8
	}

	if strings.TrimSpace(cfg.Observability.LogLevel) == "" {
		cfg.Observability.LogLevel = "info"
	}
}

func normalize(cfg *Config) {
	cfg.Language = strings.ToLower(strings.TrimSpace(cfg.Language))
	cfg.Index.Backend = strings.ToLower(strings.TrimSpace(cfg.Index.Backend))
	cfg.Index.Path = strings.TrimSpace(cfg.Index.Path)
	cfg.Index.ProjectKey = strings.TrimSpace(cfg.Index.ProjectKey)
	cfg.Observability.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Observability.LogLevel))
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)

	exts := make([]string, 0, len(cfg.Scan.Extensions))
	for _, ext := range cfg.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.Scan.Extensions = exts
}
