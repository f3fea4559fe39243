// Package command provides CLI command definitions for nox-cli.
//
// It uses urfave/cli/v2 for command parsing and supports both
// single-command mode and interactive REPL mode.
package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/noxkv/nox-go/internal/cli/connection"
	"github.com/noxkv/nox-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "nox-cli",
		Usage:   "nox key-value store command-line client",
		Version: buildinfo.Get().String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			DelCommand(),
			PingCommand(),
			PublishCommand(),
			SubscribeCommand(),
			ReplCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "nox server address",
			EnvVars: []string{"NOX_SERVER"},
			Value:   "127.0.0.1:6380",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "command timeout",
			Value:   connection.DefaultTimeout,
		},
	}
}

// DialClient connects to the server named by the global flags.
func DialClient(c *cli.Context) (*connection.Client, error) {
	client, err := connection.DialTimeout(c.String("server"), c.Duration("timeout"))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.String("server"), err)
	}
	return client, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// parseTTL resolves the --ex and --px flags into one duration.
func parseTTL(c *cli.Context) (time.Duration, bool, error) {
	ex := c.Int64("ex")
	px := c.Int64("px")
	switch {
	case ex != 0 && px != 0:
		return 0, false, fmt.Errorf("--ex and --px are mutually exclusive")
	case ex != 0:
		return time.Duration(ex) * time.Second, true, nil
	case px != 0:
		return time.Duration(px) * time.Millisecond, true, nil
	default:
		return 0, false, nil
	}
}
