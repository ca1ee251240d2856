package app

import (
	"context"
	"duchain/internal/core/watcher"
	"log/slog"
)

// Watch re-indexes changed files until ctx ends.
func (a *App) Watch(ctx context.Context) error {
	if err := a.StartWatcher(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.StopWatcher()
	return nil
}

func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Scan.ExcludeDirs,
		a.Config.Scan.ExcludeFiles,
		func(paths []string) { a.handleChanges(ctx, paths) },
	)
	if err != nil {
		return err
	}
	w.SetExtensions(a.Config.Scan.Extensions)
	if err := w.Watch(a.Config.Scan.Paths); err != nil {
		w.Close()
		return err
	}

	a.watchMu.Lock()
	a.activeWatcher = w
	a.watchMu.Unlock()
	slog.Info("watching for changes", "paths", a.Config.Scan.Paths)
	return nil
}

func (a *App) StopWatcher() {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher != nil {
		a.activeWatcher.Close()
		a.activeWatcher = nil
	}
}

func (a *App) handleChanges(ctx context.Context, paths []string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.ReindexFiles(ctx, paths); err != nil {
		slog.Warn("re-index failed", "files", len(paths), "error", err)
	}
}
