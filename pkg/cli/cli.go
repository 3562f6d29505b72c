package cli

import (
	"context"

	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "quakead",
		Usage: "Earthquake-driven insurance outreach over a resource/tool bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("QUAKEAD_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-output",
				Usage:   "Log output: stdout, stderr, - or a file path",
				Value:   "stderr",
				Sources: cli.EnvVars("QUAKEAD_LOG_OUTPUT"),
			},
		},
		Commands: []*cli.Command{
			seedCommand(),
			workerCommand(),
			mcpCommand(),
			statsCommand(),
			quakesCommand(),
			previewCommand(),
			targetsCommand(),
			emailCommand(),
			historyCommand(),
			consoleCommand(),
			askCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// withLogger sets up the logger from the root flags before running action.
func withLogger(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		w, closer, err := logging.Open(c.Root().String("log-output"))
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()

		logger := logging.New(c.Root().String("log-level"), w)
		logging.SetDefault(logger)
		return action(logging.With(ctx, logger), c)
	}
}
