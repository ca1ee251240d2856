// Package app wires configuration, the symbol table backend, the chain
// store and the PHP indexer into the operations the command line and the
// explorer call.
package app

import (
	"context"
	"duchain/internal/core/config"
	"duchain/internal/core/errors"
	"duchain/internal/core/watcher"
	"duchain/internal/engine/duchain"
	"duchain/internal/engine/phpindex"
	"duchain/internal/engine/symtab"
	"duchain/internal/shared/util"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

type App struct {
	Config *config.Config

	index   symtab.Index
	store   *duchain.ChainStore
	indexer *phpindex.Indexer

	// indexMu serializes indexing runs; resolution does not take it.
	indexMu sync.Mutex
	limiter *util.Limiter

	filterMu     sync.RWMutex
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	extensions   map[string]bool

	watchMu       sync.Mutex
	activeWatcher *watcher.Watcher
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Files      int
	Indexed    int
	Removed    int
	SecondPass int
	Unresolved int
	Failed     map[string]string
	Duration   time.Duration
}

func newReport() IndexReport {
	return IndexReport{Failed: make(map[string]string)}
}

// New opens the configured symbol table, builds the chain store and loads
// the builtin declarations.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	index, err := openIndex(cfg.Index)
	if err != nil {
		return nil, err
	}

	store := duchain.NewChainStore(index)
	a := &App{
		Config:  cfg,
		index:   index,
		store:   store,
		indexer: phpindex.NewIndexer(store, phpindex.Options{InternalStub: cfg.Builtins.InternalStub, TestingStub: cfg.Builtins.TestingStub}),
		limiter: util.NewLimiter(cfg.Watch.Rate, cfg.Watch.Burst),
	}
	if err := a.setFilters(cfg.Scan); err != nil {
		index.Close()
		return nil, err
	}
	if err := a.indexer.LoadBuiltins(ctx); err != nil {
		index.Close()
		return nil, err
	}
	slog.Debug("app ready", "backend", cfg.Index.Backend, "language", cfg.Language)
	return a, nil
}

func openIndex(cfg config.Index) (symtab.Index, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		index, err := symtab.OpenSQLiteIndex(cfg.Path, cfg.ProjectKey, cfg.CacheSize)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "open symbol index"), errors.CtxPath, cfg.Path)
		}
		return index, nil
	case config.BackendMemory, "":
		return symtab.NewMemoryIndex(), nil
	default:
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unknown index backend"), "backend", cfg.Backend)
	}
}

func (a *App) setFilters(scan config.Scan) error {
	dirs, err := compileGlobs(scan.ExcludeDirs)
	if err != nil {
		return err
	}
	files, err := compileGlobs(scan.ExcludeFiles)
	if err != nil {
		return err
	}
	exts := make(map[string]bool, len(scan.Extensions))
	for _, ext := range scan.Extensions {
		exts[ext] = true
	}

	a.filterMu.Lock()
	defer a.filterMu.Unlock()
	a.excludeDirs = dirs
	a.excludeFiles = files
	a.extensions = exts
	return nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid exclude pattern"), "pattern", p)
		}
		out = append(out, g)
	}
	return out, nil
}

// ApplyConfig takes over the reloadable parts of cfg: scan filters, watch
// throttling and debounce. Index and builtin settings need a restart.
func (a *App) ApplyConfig(cfg *config.Config) error {
	if err := a.setFilters(cfg.Scan); err != nil {
		return err
	}
	a.indexMu.Lock()
	a.limiter = util.NewLimiter(cfg.Watch.Rate, cfg.Watch.Burst)
	a.Config.Scan = cfg.Scan
	a.Config.Watch = cfg.Watch
	a.indexMu.Unlock()

	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher != nil {
		a.activeWatcher.SetDebounce(cfg.Watch.Debounce)
		a.activeWatcher.SetExtensions(cfg.Scan.Extensions)
		if err := a.activeWatcher.SetExcludes(cfg.Scan.ExcludeDirs, cfg.Scan.ExcludeFiles); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Store() *duchain.ChainStore { return a.store }
func (a *App) Indexer() *phpindex.Indexer { return a.indexer }
func (a *App) Resolver() *duchain.Resolver { return a.indexer.Resolver() }

// unitID is the canonical unit id of a source path.
func unitID(path string) duchain.UnitID {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return duchain.UnitID(filepath.Clean(path))
}

func (a *App) Close() error {
	a.watchMu.Lock()
	if a.activeWatcher != nil {
		a.activeWatcher.Close()
		a.activeWatcher = nil
	}
	a.watchMu.Unlock()
	return a.index.Close()
}
