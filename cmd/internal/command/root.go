// Package command defines the webapp-cli commands.
package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"webapp/cmd/internal/client"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "webapp-cli",
		Usage:   "Headless webapp client and session administration",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ConnectCommand(),
			TokenCommand(),
			ForgetCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "credentials",
			Aliases: []string{"c"},
			Usage:   "Path to the local credential database (SQLite)",
			EnvVars: []string{"WEBAPP_CREDENTIALS_DB"},
			Value:   "webapp-credentials.db",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"WEBAPP_LOG_LEVEL"},
			Value:   "warn",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Shorthand for --log-level=debug",
		},
	}
}

// newLogger logs to the app's error writer so stdout stays parseable.
func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errWriter(c), &slog.HandlerOptions{Level: level}))
}

func openCredentials(c *cli.Context) (*client.SQLiteCredentials, error) {
	return client.OpenSQLiteCredentials(c.String("credentials"))
}

func outWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func ctxOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
