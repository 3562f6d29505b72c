package cli

import (
	"context"

	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/usecase/campaign"
	"github.com/urfave/cli/v3"
)

// criteriaFlags returns the targeting filters with the find_targets defaults
func criteriaFlags(c *model.Criteria) []cli.Flag {
	def := model.DefaultCriteria()
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "min-magnitude",
			Usage:       "Minimum earthquake magnitude",
			Value:       def.MinMagnitude,
			Destination: &c.MinMagnitude,
		},
		&cli.FloatFlag{
			Name:        "max-distance",
			Usage:       "Maximum distance from the epicenter in km",
			Value:       def.MaxDistanceKm,
			Destination: &c.MaxDistanceKm,
		},
		&cli.FloatFlag{
			Name:        "min-house-value",
			Usage:       "Minimum home value in USD",
			Value:       def.MinHouseValue,
			Destination: &c.MinHouseValue,
		},
		&cli.BoolFlag{
			Name:        "require-uninsured",
			Usage:       "Only target households without earthquake insurance",
			Value:       def.RequireUninsured,
			Destination: &c.RequireUninsured,
		},
	}
}

// sessionAction opens a bridge, wraps it in a session and hands it to fn. The
// bridge is stopped on every path.
func (cfg *config) sessionAction(fn func(ctx context.Context, c *cli.Command, uc *campaign.UseCase, s *campaign.Session) error) cli.ActionFunc {
	return withLogger(func(ctx context.Context, c *cli.Command) error {
		b, closer, err := cfg.openBridge(ctx, c)
		if err != nil {
			return err
		}
		defer closer()

		s := campaign.NewSession(b)
		return fn(ctx, c, campaign.New(nil), s)
	})
}

func statsCommand() *cli.Command {
	var cfg config

	flags := append(dataFlags(&cfg), bridgeFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show earthquake and household statistics",
		Flags: flags,
		Action: cfg.sessionAction(func(ctx context.Context, c *cli.Command, uc *campaign.UseCase, s *campaign.Session) error {
			stats, err := uc.Stats(ctx, s)
			if err != nil {
				return err
			}
			printStats(c.Root().Writer, stats)
			return nil
		}),
	}
}

func quakesCommand() *cli.Command {
	var (
		cfg    config
		days   int64
		minMag float64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "days",
			Aliases:     []string{"d"},
			Usage:       "Look back this many days",
			Value:       7,
			Destination: &days,
		},
		&cli.FloatFlag{
			Name:        "min-mag",
			Aliases:     []string{"m"},
			Usage:       "Minimum magnitude",
			Destination: &minMag,
		},
	}
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, bridgeFlags(&cfg)...)

	return &cli.Command{
		Name:  "quakes",
		Usage: "List recent earthquakes, newest first",
		Flags: flags,
		Action: cfg.sessionAction(func(ctx context.Context, c *cli.Command, uc *campaign.UseCase, s *campaign.Session) error {
			events, err := uc.RecentEarthquakes(ctx, s, int(days), minMag)
			if err != nil {
				return err
			}
			printEvents(c.Root().Writer, events)
			return nil
		}),
	}
}

func previewCommand() *cli.Command {
	var (
		cfg      config
		criteria model.Criteria
	)

	flags := criteriaFlags(&criteria)
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, bridgeFlags(&cfg)...)

	return &cli.Command{
		Name:  "preview",
		Usage: "Preview the first targets matching the criteria",
		Flags: flags,
		Action: cfg.sessionAction(func(ctx context.Context, c *cli.Command, uc *campaign.UseCase, s *campaign.Session) error {
			preview, err := uc.Preview(ctx, s, criteria)
			if err != nil {
				return err
			}
			printPreview(c.Root().Writer, preview)
			return nil
		}),
	}
}

func targetsCommand() *cli.Command {
	var (
		cfg      config
		criteria model.Criteria
	)

	flags := criteriaFlags(&criteria)
	flags = append(flags, dataFlags(&cfg)...)
	flags = append(flags, bridgeFlags(&cfg)...)

	return &cli.Command{
		Name:  "targets",
		Usage: "Find every household near a qualifying earthquake",
		Flags: flags,
		Action: cfg.sessionAction(func(ctx context.Context, c *cli.Command, uc *campaign.UseCase, s *campaign.Session) error {
			result, err := uc.FindTargets(ctx, s, criteria)
			if err != nil {
				return err
			}
			printTargetResult(c.Root().Writer, result)
			return nil
		}),
	}
}
