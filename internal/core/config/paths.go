package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePaths makes the file paths in cfg absolute. Relative index, stub
// and scan paths are taken relative to base, normally the directory of the
// config file.
func ResolvePaths(cfg *Config, base string) error {
	if strings.TrimSpace(base) == "" {
		return fmt.Errorf("base directory must not be empty")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("resolve base directory %q: %w", base, err)
	}

	if cfg.Index.Backend == BackendSQLite {
		cfg.Index.Path = ResolveRelative(abs, cfg.Index.Path)
	}
	if cfg.Builtins.InternalStub != "" {
		cfg.Builtins.InternalStub = ResolveRelative(abs, cfg.Builtins.InternalStub)
	}
	if cfg.Builtins.TestingStub != "" {
		cfg.Builtins.TestingStub = ResolveRelative(abs, cfg.Builtins.TestingStub)
	}
	for i, p := range cfg.Scan.Paths {
		cfg.Scan.Paths[i] = ResolveRelative(abs, p)
	}
	return nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate until it finds a directory
// holding a project marker. It falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFileName,
		"composer.json",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

// Discover loads the config file named explicitly, or DefaultFileName in
// the detected project root, or the defaults when neither exists. The
// second result is the directory relative paths were resolved against.
func Discover(explicit string) (*Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		if err != nil {
			return nil, "", err
		}
		base := filepath.Dir(explicit)
		if err := ResolvePaths(cfg, base); err != nil {
			return nil, "", err
		}
		return cfg, base, nil
	}

	root, err := DetectProjectRoot([]string{"."})
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(root, DefaultFileName)
	cfg := DefaultConfig()
	if _, statErr := os.Stat(path); statErr == nil {
		if cfg, err = Load(path); err != nil {
			return nil, "", err
		}
	} else {
		ApplyEnvOverrides(cfg)
		normalize(cfg)
		if errs := Validate(cfg); len(errs) > 0 {
			return nil, "", errs[0]
		}
	}
	if err := ResolvePaths(cfg, root); err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}
