package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/adapter"
)

func TestBigQuery(t *testing.T) {
	projectID := os.Getenv("TEST_BIGQUERY_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_BIGQUERY_PROJECT_ID is not set")
	}

	query := os.Getenv("TEST_BIGQUERY_QUERY")
	if query == "" {
		query = "SELECT 'ev1' AS id, 4.5 AS mag"
	}

	ctx := context.Background()
	client, err := adapter.NewBigQuery(ctx, projectID, adapter.WithMaxBytesBilled(1<<30))
	gt.NoError(t, err)

	t.Run("DryRun", func(t *testing.T) {
		bytes, err := client.DryRun(ctx, query)
		gt.NoError(t, err)
		t.Logf("Bytes scanned: %d", bytes)
	})

	t.Run("Query", func(t *testing.T) {
		rows, err := client.Query(ctx, query)
		gt.NoError(t, err)
		gt.True(t, len(rows) > 0)
		t.Logf("Result count: %d", len(rows))
	})
}
