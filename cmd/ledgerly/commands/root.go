package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ledgerly/internal/app"
	"github.com/florianilch/ledgerly/internal/gateway"
	"github.com/florianilch/ledgerly/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(os.Stdout, os.Stderr).Run(ctx, args)
}

func newRootCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "ledgerly",
		Usage:     "Personal finance tracker client",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "OpenTelemetry log exporter (none|stdout|otlp-http|otlp-grpc)",
				Value: app.DefaultConfigLogExporter,
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "output format (text|json)",
				Value: outputText,
			},
			&cli.StringFlag{
				Name:  "api--base-url",
				Usage: "finance API base URL",
				Value: app.DefaultConfigAPIBaseURL,
			},
			&cli.StringFlag{
				Name:  "session--storage",
				Usage: "where the session is kept (file|keyring|env|memory)",
				Value: string(app.DefaultConfigSessionStorage),
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			signupCommand(),
			statusCommand(),
			transactionsCommand(),
			categoriesCommand(),
			budgetsCommand(),
			reportsCommand(),
			serveCommand(),
		},
	}
}

// appAction is a command body that needs a configured application.
type appAction func(ctx context.Context, cmd *cli.Command, a *app.App) error

// withApp loads the configuration, sets up logging and builds the App before
// running action. Logging is flushed when the action returns.
func withApp(action appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat),
			observability.WithWriter(errWriter(cmd)),
			observability.WithExporter(cfg.LogExporter),
		)
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				fmt.Fprintln(errWriter(cmd), "failed to flush logs:", err)
			}
		}()

		application, err := app.New(cfg, app.WithRedirector(loginHint(cmd)))
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return action(ctx, cmd, application)
	}
}

// loginHint tells the user to log in again once the session is gone.
func loginHint(cmd *cli.Command) gateway.LoginRedirector {
	return gateway.RedirectFunc(func(context.Context) {
		fmt.Fprintln(errWriter(cmd), "Your session has expired. Run `ledgerly login` to sign in again.")
	})
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
