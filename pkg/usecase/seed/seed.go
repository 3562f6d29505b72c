package seed

import (
	"context"
	"math/rand/v2"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/adapter"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
)

const DefaultHouseholds = 1000

type Options struct {
	// CSVPath is a USGS earthquake CSV. Empty skips the CSV.
	CSVPath string

	// BigQuery and Query import additional events. Both must be set.
	BigQuery adapter.BigQuery
	Query    string

	Households int

	// Seed makes household generation reproducible. Zero picks a random seed.
	Seed uint64
}

type Result struct {
	Events       int
	Households   int
	SampleEvents bool
	Seed         uint64
}

// Run populates store. Events come from the CSV and the BigQuery query;
// when neither yields any event the built-in samples are inserted instead.
func Run(ctx context.Context, store repository.DataStore, opts Options) (*Result, error) {
	logger := logging.From(ctx)
	result := &Result{}

	var events []*model.SeismicEvent
	if opts.CSVPath != "" {
		loaded, err := loadCSVFile(opts.CSVPath)
		if err != nil {
			logger.Warn("failed to load earthquake CSV", "path", opts.CSVPath, "error", err)
		} else {
			logger.Info("loaded earthquake CSV", "path", opts.CSVPath, "events", len(loaded))
			events = append(events, loaded...)
		}
	}

	if opts.BigQuery != nil && opts.Query != "" {
		imported, err := importBigQuery(ctx, opts.BigQuery, opts.Query)
		if err != nil {
			return nil, err
		}
		events = append(events, imported...)
	}

	if len(events) == 0 {
		logger.Info("no earthquake feed loaded, inserting sample events")
		events = SampleEvents()
		result.SampleEvents = true
	}

	if err := store.PutEvents(ctx, events); err != nil {
		return nil, goerr.Wrap(err, "failed to store events")
	}
	result.Events = len(events)

	n := opts.Households
	if n <= 0 {
		n = DefaultHouseholds
	}
	result.Seed = opts.Seed
	if result.Seed == 0 {
		result.Seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(result.Seed, result.Seed^0x9e3779b97f4a7c15))

	if err := store.PutHouseholds(ctx, GenerateHouseholds(rng, n)); err != nil {
		return nil, goerr.Wrap(err, "failed to store households")
	}
	result.Households = n

	logger.Info("database seeded",
		"events", result.Events,
		"households", result.Households,
		"sample_events", result.SampleEvents,
		"seed", result.Seed)
	return result, nil
}

func loadCSVFile(path string) ([]*model.SeismicEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open CSV", goerr.V("path", path))
	}
	defer f.Close()

	return LoadCSV(f)
}

func importBigQuery(ctx context.Context, bq adapter.BigQuery, query string) ([]*model.SeismicEvent, error) {
	logger := logging.From(ctx)

	scanned, err := bq.DryRun(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "earthquake query dry run failed")
	}
	logger.Info("running earthquake query", "bytes_scanned", scanned)

	rows, err := bq.Query(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "earthquake query failed")
	}

	events, err := EventsFromRows(rows)
	if err != nil {
		return nil, err
	}
	logger.Info("imported events from BigQuery", "events", len(events))
	return events, nil
}
