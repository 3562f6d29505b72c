package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/adapter"
	"github.com/m-mizutani/quakead/pkg/usecase/seed"
	"github.com/urfave/cli/v3"
)

func seedCommand() *cli.Command {
	var (
		cfg        config
		csvPath    string
		households int64
		seedValue  int64
		bqProject  string
		bqLocation string
		bqQuery    string
		bqMaxBytes int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "csv",
			Usage:       "USGS earthquake CSV to load",
			Value:       "all_month.csv",
			Sources:     cli.EnvVars("QUAKEAD_SEED_CSV"),
			Destination: &csvPath,
		},
		&cli.IntFlag{
			Name:        "households",
			Usage:       "Number of synthetic households to generate",
			Value:       seed.DefaultHouseholds,
			Destination: &households,
		},
		&cli.IntFlag{
			Name:        "seed",
			Usage:       "Random seed for reproducible households (0 picks one)",
			Destination: &seedValue,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID to run the earthquake import query in",
			Sources:     cli.EnvVars("QUAKEAD_BIGQUERY_PROJECT"),
			Destination: &bqProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-location",
			Usage:       "BigQuery job location",
			Sources:     cli.EnvVars("QUAKEAD_BIGQUERY_LOCATION"),
			Destination: &bqLocation,
		},
		&cli.StringFlag{
			Name:        "bigquery-query",
			Usage:       "Query returning USGS columns (time, latitude, longitude, mag, id, ...)",
			Sources:     cli.EnvVars("QUAKEAD_BIGQUERY_QUERY"),
			Destination: &bqQuery,
		},
		&cli.IntFlag{
			Name:        "bigquery-max-bytes",
			Usage:       "Refuse import queries scanning more than this many bytes (0 disables)",
			Destination: &bqMaxBytes,
		},
	}
	flags = append(flags, dataFlags(&cfg)...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Create the database and fill it with earthquakes and synthetic households",
		Flags: flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			store, err := cfg.openSQLite()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			opts := seed.Options{
				CSVPath:    csvPath,
				Households: int(households),
				Seed:       uint64(seedValue),
			}

			if bqQuery != "" {
				if bqProject == "" {
					return goerr.New("bigquery-project is required with bigquery-query")
				}
				var bqOpts []adapter.BigQueryOption
				if bqLocation != "" {
					bqOpts = append(bqOpts, adapter.WithLocation(bqLocation))
				}
				if bqMaxBytes > 0 {
					bqOpts = append(bqOpts, adapter.WithMaxBytesBilled(bqMaxBytes))
				}

				bq, err := adapter.NewBigQuery(ctx, bqProject, bqOpts...)
				if err != nil {
					return err
				}
				opts.BigQuery = bq
				opts.Query = bqQuery
			}

			result, err := seed.Run(ctx, store, opts)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Database: %s\n", cfg.dbPath)
			if result.SampleEvents {
				fmt.Fprintf(w, "Earthquakes: %d (built-in samples)\n", result.Events)
			} else {
				fmt.Fprintf(w, "Earthquakes: %d\n", result.Events)
			}
			fmt.Fprintf(w, "Households: %d (seed %d)\n", result.Households, result.Seed)
			return nil
		}),
	}
}
