package cli

import (
	"context"
	"duchain/internal/core/app"
	"duchain/internal/core/config"
	"duchain/internal/shared/observability"
	"duchain/internal/shared/util"
	"duchain/internal/ui/explorer"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
)

const defaultMetricsAddr = "127.0.0.1:9464"

// session is the state shared by every command: configuration, logging,
// tracing and the opened application.
type session struct {
	cfg     *config.Config
	cfgPath string
	app     *app.App
	closers []func()
}

func openSession(c *cli.Context, uiMode bool) (*session, error) {
	cfg, base, err := config.Discover(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	s := &session{cfg: cfg}
	s.closers = append(s.closers, configureLogging(level, uiMode, c.App.ErrWriter))
	if explicit := c.String("config"); explicit != "" {
		s.cfgPath = explicit
	} else {
		s.cfgPath = filepath.Join(base, config.DefaultFileName)
	}

	shutdown, err := observability.InitTracing(c.Context, cfg.Observability.OTLPEndpoint)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	})

	a, err := app.New(c.Context, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.app = a
	s.closers = append(s.closers, func() {
		if err := a.Close(); err != nil {
			slog.Warn("failed to close index", "error", err)
		}
	})
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func absPaths(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func printReport(w io.Writer, report app.IndexReport) {
	fmt.Fprintf(w, "files: %d  indexed: %d  second pass: %d  unresolved: %d  took: %s\n",
		report.Files, report.Indexed, report.SecondPass, report.Unresolved, report.Duration.Round(time.Millisecond))
	for _, path := range util.SortedStringKeys(report.Failed) {
		fmt.Fprintf(w, "failed: %s: %s\n", path, report.Failed[path])
	}
}

func runIndex(c *cli.Context) error {
	s, err := openSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	paths, err := absPaths(c.Args().Slice())
	if err != nil {
		return err
	}
	report, err := s.app.IndexPaths(c.Context, paths)
	if err != nil {
		return err
	}
	printReport(c.App.Writer, report)
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed to index", len(report.Failed))
	}
	return nil
}

func runResolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("resolve requires exactly one identifier, got %d", c.NArg())
	}
	s, err := openSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if !c.Bool("no-scan") {
		if _, err := s.app.IndexPaths(c.Context, nil); err != nil {
			return err
		}
	}

	file, err := filepath.Abs(c.String("file"))
	if err != nil {
		return err
	}
	res, err := s.app.Lookup(c.Context, app.Query{
		File:       file,
		Line:       c.Int("line"),
		Identifier: c.Args().First(),
		Kind:       c.String("kind"),
	})
	if err != nil {
		return err
	}
	return printResult(c.App.Writer, res, c.Bool("json"))
}

func printResult(w io.Writer, res app.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.Found {
		fmt.Fprintln(w, "not found")
		return nil
	}
	fmt.Fprintf(w, "%s\n  %s\n  %s:%d\n", res.Declaration, res.Qualified, res.Unit, res.Line)
	if res.AliasOf != "" {
		fmt.Fprintf(w, "  alias of %s\n", res.AliasOf)
	}
	if res.Exception {
		fmt.Fprintln(w, "  exception class")
	}
	return nil
}

// startConfigReload applies edits of the config file to the running app.
func startConfigReload(ctx context.Context, s *session) func() {
	w := config.NewWatcher(s.cfgPath, func(cfg *config.Config) {
		if err := s.app.ApplyConfig(cfg); err != nil {
			slog.Warn("config reload rejected", "error", err)
			return
		}
		s.app.StopWatcher()
		if err := s.app.StartWatcher(ctx); err != nil {
			slog.Error("failed to restart watcher", "error", err)
		}
	})
	if err := w.Start(ctx); err != nil {
		slog.Warn("config reload disabled", "path", s.cfgPath, "error", err)
		return func() {}
	}
	return w.Stop
}

func runWatch(c *cli.Context) error {
	s, err := openSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.app.IndexPaths(c.Context, nil)
	if err != nil {
		return err
	}
	printReport(c.App.Writer, report)

	stopReload := startConfigReload(c.Context, s)
	defer stopReload()
	return s.app.Watch(c.Context)
}

func runExplore(c *cli.Context) error {
	s, err := openSession(c, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.app.IndexPaths(c.Context, nil); err != nil {
		return err
	}
	file, err := filepath.Abs(c.String("file"))
	if err != nil {
		return err
	}
	return explorer.Run(s.app, file, c.Int("line"))
}

func runServe(c *cli.Context) error {
	s, err := openSession(c, false)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := s.cfg.Observability.MetricsAddr
	if addr == "" {
		addr = defaultMetricsAddr
	}
	server := observability.NewServer(addr, app.NewHealthService(s.app))
	if err := server.Start(c.Context); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			slog.Warn("failed to stop observability server", "error", err)
		}
	}()

	if _, err := s.app.IndexPaths(c.Context, nil); err != nil {
		return err
	}
	stopReload := startConfigReload(c.Context, s)
	defer stopReload()
	return s.app.Watch(c.Context)
}
