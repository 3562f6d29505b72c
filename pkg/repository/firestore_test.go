package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.NewFirestore(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestFirestoreCampaigns(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	c := &model.Campaign{
		ID:         model.NewCampaignID(),
		TargetName: "Firestore Target",
		RiskLevel:  model.RiskMedium,
		Subject:    "Protect your home",
		Body:       "Hello",
		CreatedAt:  time.Now().UTC(),
	}
	gt.NoError(t, repo.PutCampaign(ctx, c))

	got, err := repo.GetCampaign(ctx, c.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.TargetName, c.TargetName)

	list, err := repo.ListCampaigns(ctx, 0, 10)
	gt.NoError(t, err)
	gt.True(t, len(list) >= 1)
}
