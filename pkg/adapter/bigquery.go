package adapter

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// BigQuery runs import queries against BigQuery
type BigQuery interface {
	// DryRun executes a query in dry-run mode and returns the number of bytes that will be scanned
	DryRun(ctx context.Context, query string) (int64, error)

	// Query executes a query, waits for it and returns every row keyed by column name
	Query(ctx context.Context, query string) ([]map[string]any, error)
}

type bigqueryClient struct {
	client   *bigquery.Client
	location string
	maxBytes int64
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithLocation sets the location jobs run in.
func WithLocation(location string) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.location = location
	}
}

// WithMaxBytesBilled fails queries that would scan more than n bytes.
func WithMaxBytesBilled(n int64) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.maxBytes = n
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client", goerr.V("project", projectID))
	}

	bq := &bigqueryClient{
		client: client,
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

func (bq *bigqueryClient) query(sql string) *bigquery.Query {
	q := bq.client.Query(sql)
	if bq.location != "" {
		q.Location = bq.location
	}
	if bq.maxBytes > 0 {
		q.MaxBytesBilled = bq.maxBytes
	}
	return q
}

func (bq *bigqueryClient) DryRun(ctx context.Context, query string) (int64, error) {
	q := bq.query(query)
	q.DryRun = true

	job, err := q.Run(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run dry-run query")
	}

	status := job.LastStatus()
	if status == nil || status.Statistics == nil {
		return 0, goerr.New("no statistics available from dry-run")
	}

	return status.Statistics.TotalBytesProcessed, nil
}

func (bq *bigqueryClient) Query(ctx context.Context, query string) ([]map[string]any, error) {
	job, err := bq.query(query).Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run query")
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to wait for query completion", goerr.V("job_id", job.ID()))
	}
	if status.Err() != nil {
		return nil, goerr.Wrap(status.Err(), "query execution failed", goerr.V("job_id", job.ID()))
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read query result", goerr.V("job_id", job.ID()))
	}

	var results []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate query result", goerr.V("job_id", job.ID()))
		}

		rowMap := make(map[string]any, len(row))
		for k, v := range row {
			rowMap[k] = v
		}
		results = append(results, rowMap)
	}

	return results, nil
}
