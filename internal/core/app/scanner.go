package app

import (
	"context"
	"duchain/internal/core/errors"
	"duchain/internal/engine/duchain"
	"duchain/internal/shared/observability"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ScanDirectories lists the source files under paths, skipping excluded
// directories and files. A path naming a file is returned as is when it
// passes the filters.
func (a *App) ScanDirectories(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, root := range paths {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != abs && a.excludedDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.isSourcePath(path) || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (a *App) excludedDir(path string) bool {
	a.filterMu.RLock()
	defer a.filterMu.RUnlock()
	base := filepath.Base(path)
	for _, g := range a.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// isSourcePath applies the extension filter and the file exclusion globs.
func (a *App) isSourcePath(path string) bool {
	a.filterMu.RLock()
	defer a.filterMu.RUnlock()
	base := strings.ToLower(filepath.Base(path))
	if !a.extensions[filepath.Ext(base)] {
		return false
	}
	for _, g := range a.excludeFiles {
		if g.Match(base) {
			return false
		}
	}
	return true
}

// IndexPaths indexes every source file under paths, or under the configured
// scan paths when none are given. Units left with unbound base classes are
// indexed a second time once all files are in, which binds forward
// references across files.
func (a *App) IndexPaths(ctx context.Context, paths []string) (IndexReport, error) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	start := time.Now()
	report := newReport()
	fullScan := len(paths) == 0
	if fullScan {
		paths = a.Config.Scan.Paths
	}

	files, err := a.ScanDirectories(paths)
	if err != nil {
		return report, err
	}
	report.Files = len(files)

	batch := make(map[duchain.UnitID]bool, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := unitID(path)
		batch[id] = true
		if a.indexFile(ctx, id, &report) {
			report.Indexed++
		}
	}

	if err := a.secondPass(ctx, batch, &report); err != nil {
		return report, err
	}
	if fullScan {
		if err := a.pruneIndex(); err != nil {
			return report, err
		}
	}
	report.Unresolved = a.countUnresolved()
	report.Duration = time.Since(start)
	slog.Info("indexing finished",
		"files", report.Files,
		"indexed", report.Indexed,
		"second_pass", report.SecondPass,
		"unresolved", report.Unresolved,
		"failed", len(report.Failed),
		"duration", report.Duration,
	)
	return report, nil
}

func (a *App) indexFile(ctx context.Context, id duchain.UnitID, report *IndexReport) bool {
	if _, err := a.indexer.IndexFile(ctx, string(id)); err != nil {
		slog.Warn("failed to index file", "path", id, "error", err)
		report.Failed[string(id)] = err.Error()
		return false
	}
	delete(report.Failed, string(id))
	return true
}

// secondPass re-indexes the units of batch that still have unbound
// references.
func (a *App) secondPass(ctx context.Context, batch map[duchain.UnitID]bool, report *IndexReport) error {
	for _, id := range a.store.UnresolvedUnits() {
		if !batch[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.indexFile(ctx, id, report) {
			report.SecondPass++
		}
	}
	return nil
}

func (a *App) countUnresolved() int {
	total := 0
	for _, id := range a.store.UnresolvedUnits() {
		if meta, ok := a.store.UnitMeta(id); ok {
			total += meta.Unresolved
		}
	}
	return total
}

// ReindexFiles brings the store up to date after paths changed on disk.
// Deleted files are removed, changed files re-indexed, and units that
// imported a changed unit or still have unbound references are re-indexed
// afterwards. Runs are throttled by the watch rate limit.
func (a *App) ReindexFiles(ctx context.Context, paths []string) (IndexReport, error) {
	a.indexMu.Lock()
	defer a.indexMu.Unlock()

	start := time.Now()
	report := newReport()

	throttled, err := a.limiter.Acquire(ctx)
	if throttled {
		observability.ReindexThrottledTotal.Inc()
	}
	if err != nil {
		return report, err
	}

	batch := make(map[duchain.UnitID]bool, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		id := unitID(path)
		if a.store.IsInternalUnit(id) || !a.isSourcePath(string(id)) {
			continue
		}
		report.Files++

		if _, statErr := os.Stat(string(id)); os.IsNotExist(statErr) {
			if _, known := a.store.UnitMeta(id); known {
				if err := a.store.Remove(id); err != nil {
					report.Failed[string(id)] = err.Error()
					continue
				}
				report.Removed++
			}
			continue
		}
		batch[id] = true
		if a.indexFile(ctx, id, &report) {
			report.Indexed++
		}
	}

	dependents := make(map[duchain.UnitID]bool)
	for _, id := range a.store.StaleUnits() {
		dependents[id] = true
	}
	for _, id := range a.store.UnresolvedUnits() {
		dependents[id] = true
	}
	_, testing := a.store.BuiltinUnits()
	for id := range dependents {
		if batch[id] || id == testing || a.store.IsInternalUnit(id) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, statErr := os.Stat(string(id)); os.IsNotExist(statErr) {
			if err := a.store.Remove(id); err == nil {
				report.Removed++
			}
			continue
		}
		if a.indexFile(ctx, id, &report) {
			report.SecondPass++
		}
	}

	report.Unresolved = a.countUnresolved()
	report.Duration = time.Since(start)
	slog.Info("re-index finished",
		"changed", report.Files,
		"indexed", report.Indexed,
		"removed", report.Removed,
		"dependents", report.SecondPass,
		"duration", report.Duration,
	)
	return report, nil
}

// pruneIndex drops handles a persistent index kept for units that are not
// loaded in this process, such as files deleted while nothing was watching.
func (a *App) pruneIndex() error {
	loaded := a.store.Units()
	keep := make([]string, 0, len(loaded))
	for _, id := range loaded {
		keep = append(keep, string(id))
	}
	var err error
	a.store.Update(func() { err = a.index.PruneToUnits(keep) })
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "prune symbol index")
	}
	return nil
}
