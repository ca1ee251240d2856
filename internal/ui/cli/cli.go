// Package cli is the duchain command line: indexing, one-shot resolution,
// watch mode, the interactive explorer and the observability server.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

const versionString = "1.0.0"

// NewApp builds the command tree. Command output goes to stdout, logs to
// stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "duchain",
		Usage:     "Resolve PHP identifiers through the declaration chain",
		Version:   versionString,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: duchain.toml in the project root)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index PHP sources and report unresolved bases",
				ArgsUsage: "[paths...]",
				Action:    runIndex,
			},
			{
				Name:      "resolve",
				Aliases:   []string{"r"},
				Usage:     "Resolve an identifier at a position",
				ArgsUsage: "<identifier>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Source file", Required: true},
					&cli.IntFlag{Name: "line", Aliases: []string{"l"}, Usage: "1-based line", Value: 1},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "class, function, constant, variable or namespace", Value: "class"},
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "no-scan", Usage: "Only index the queried file"},
				},
				Action: runResolve,
			},
			{
				Name:   "watch",
				Usage:  "Index, then re-index changed files until interrupted",
				Action: runWatch,
			},
			{
				Name:  "explore",
				Usage: "Browse resolutions interactively",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Source file", Required: true},
					&cli.IntFlag{Name: "line", Aliases: []string{"l"}, Usage: "Default line for lookups", Value: 1},
				},
				Action: runExplore,
			},
			{
				Name:   "serve",
				Usage:  "Index, watch and expose /metrics and /health",
				Action: runServe,
			},
		},
	}
}

// Run executes args and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewApp(os.Stdout, os.Stderr).RunContext(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
