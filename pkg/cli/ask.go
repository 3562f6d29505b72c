package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/tool"
	"github.com/m-mizutani/quakead/pkg/usecase/ask"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		maxRounds int64
		verbose   bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "max-rounds",
			Usage:       "Maximum number of function calling rounds",
			Value:       ask.DefaultMaxRounds,
			Destination: &maxRounds,
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "Print every function call before the answer",
			Destination: &verbose,
		},
	}
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, bridgeFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a question with Gemini using the bridge resources and tools",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			question := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(question) == "" {
				return goerr.New("question is required")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			b, closer, err := cfg.openBridge(ctx, c)
			if err != nil {
				return err
			}
			defer closer()

			bridgeTools, err := tool.NewBridgeTools(ctx, b)
			if err != nil {
				return err
			}
			uc := ask.New(gemini, tool.New(bridgeTools), ask.WithMaxRounds(int(maxRounds)))

			w := c.Root().Writer
			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			sp.Suffix = " thinking..."
			sp.Start()
			answer, err := uc.Ask(ctx, question)
			sp.Stop()
			if err != nil {
				return err
			}

			if verbose {
				for _, call := range answer.Calls {
					printCall(w, call)
				}
				if len(answer.Calls) > 0 {
					fmt.Fprintf(w, "\n")
				}
			}
			fmt.Fprintf(w, "%s\n", answer.Text)
			return nil
		}),
	}
}

func printCall(w io.Writer, call ask.ToolCall) {
	if call.Error != "" {
		fmt.Fprintf(w, "> %s %v (error: %s)\n", call.Name, call.Args, call.Error)
		return
	}
	fmt.Fprintf(w, "> %s %v\n", call.Name, call.Args)
}
