package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "offset",
			Aliases:     []string{"o"},
			Usage:       "Number of campaigns to skip",
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of campaigns to display",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, campaignFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List, clear or export saved campaigns",
		Flags: flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := cfg.newCampaign(ctx, false)
			if err != nil {
				return err
			}
			defer closer()

			campaigns, err := uc.History(ctx, int(offset), int(limit))
			if err != nil {
				return err
			}
			printCampaigns(c.Root().Writer, campaigns)
			return nil
		}),
		Commands: []*cli.Command{
			historyClearCommand(),
			historyExportCommand(),
		},
	}
}

func historyClearCommand() *cli.Command {
	var cfg config

	flags := append(dataFlags(&cfg), campaignFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every saved campaign",
		Flags: flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			uc, closer, err := cfg.newCampaign(ctx, false)
			if err != nil {
				return err
			}
			defer closer()

			if err := uc.ClearHistory(ctx); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Campaign history cleared\n")
			return nil
		}),
	}
}

func historyExportCommand() *cli.Command {
	var cfg config

	flags := append(dataFlags(&cfg), campaignFlags(&cfg)...)

	return &cli.Command{
		Name:      "export",
		Usage:     "Export a saved campaign as a plain-text email",
		ArgsUsage: "<campaign-id>",
		Flags:     flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one campaign ID is required")
			}

			uc, closer, err := cfg.newCampaign(ctx, false)
			if err != nil {
				return err
			}
			defer closer()

			location, err := uc.Export(ctx, model.CampaignID(c.Args().First()))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Exported to %s\n", location)
			return nil
		}),
	}
}
