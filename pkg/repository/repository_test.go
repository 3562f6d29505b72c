package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
)

type store interface {
	repository.DataStore
	repository.CampaignStore
}

func newSQLite(t *testing.T) store {
	t.Helper()
	db, err := repository.NewSQLite(filepath.Join(t.TempDir(), "db", "test.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func stores(t *testing.T) map[string]func(t *testing.T) store {
	return map[string]func(t *testing.T) store{
		"sqlite": newSQLite,
		"memory": func(t *testing.T) store { return repository.NewMemory() },
	}
}

func event(id string, at time.Time, mag float64) *model.SeismicEvent {
	return &model.SeismicEvent{
		EventID:   model.EventID(id),
		Time:      at,
		Latitude:  34.05,
		Longitude: -118.24,
		Depth:     10.5,
		Magnitude: mag,
		MagType:   "ml",
		Place:     "Los Angeles, CA",
		Network:   "ci",
		Updated:   at.Add(5 * time.Minute),
		Status:    "reviewed",
	}
}

func household(id, email string) *model.Household {
	return &model.Household{
		PersonID:     model.PersonID(id),
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		City:         "Los Angeles",
		State:        "CA",
		Latitude:     34.1,
		Longitude:    -118.3,
		HouseValue:   750000,
		HasInsurance: false,
		IncomeLevel:  "high",
		AgeGroup:     "36-45",
	}
}

func TestEventsRoundTrip(t *testing.T) {
	base := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			gt.NoError(t, s.PutEvents(ctx, []*model.SeismicEvent{
				event("ev-old", base, 3.1),
				event("ev-new", base.Add(2*time.Hour), 4.4),
			}))

			events, err := s.ListEvents(ctx)
			gt.NoError(t, err)
			gt.A(t, events).Length(2)
			gt.Equal(t, events[0].EventID, model.EventID("ev-new"))
			gt.Equal(t, events[0].Magnitude, 4.4)
			gt.True(t, events[0].Time.Equal(base.Add(2*time.Hour)))
			gt.Equal(t, events[1].Place, "Los Angeles, CA")
		})
	}
}

func TestEventsReplaceByID(t *testing.T) {
	base := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			gt.NoError(t, s.PutEvents(ctx, []*model.SeismicEvent{event("ev-1", base, 3.0)}))
			gt.NoError(t, s.PutEvents(ctx, []*model.SeismicEvent{event("ev-1", base, 5.2)}))

			events, err := s.ListEvents(ctx)
			gt.NoError(t, err)
			gt.A(t, events).Length(1)
			gt.Equal(t, events[0].Magnitude, 5.2)
		})
	}
}

func TestHouseholds(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			gt.NoError(t, s.PutHouseholds(ctx, []*model.Household{
				household("P10001", "b@example.com"),
				household("P10000", "a@example.com"),
			}))

			households, err := s.ListHouseholds(ctx)
			gt.NoError(t, err)
			gt.A(t, households).Length(2)
			gt.Equal(t, households[0].PersonID, model.PersonID("P10000"))
			gt.Equal(t, households[0].HouseValue, 750000.0)
			gt.False(t, households[0].HasInsurance)

			// email is unique across people
			gt.Error(t, s.PutHouseholds(ctx, []*model.Household{household("P10002", "a@example.com")}))
		})
	}
}

func TestInvalidRecordsRejected(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			gt.Error(t, s.PutEvents(ctx, []*model.SeismicEvent{{EventID: "no-time"}}))
			gt.Error(t, s.PutHouseholds(ctx, []*model.Household{{PersonID: "P1"}}))
		})
	}
}

func TestCampaigns(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			for i := 0; i < 3; i++ {
				gt.NoError(t, s.PutCampaign(ctx, &model.Campaign{
					ID:         model.NewCampaignID(),
					TargetName: "Jane Doe",
					RiskLevel:  model.RiskHigh,
					Subject:    "subject",
					Body:       "body",
					CreatedAt:  base.Add(time.Duration(i) * time.Hour),
				}))
			}

			all, err := s.ListCampaigns(ctx, 0, 0)
			gt.NoError(t, err)
			gt.A(t, all).Length(3)
			gt.True(t, all[0].CreatedAt.After(all[1].CreatedAt))

			page, err := s.ListCampaigns(ctx, 1, 1)
			gt.NoError(t, err)
			gt.A(t, page).Length(1)
			gt.Equal(t, page[0].ID, all[1].ID)

			got, err := s.GetCampaign(ctx, all[2].ID)
			gt.NoError(t, err)
			gt.Equal(t, got.Subject, "subject")
			gt.Equal(t, got.RiskLevel, model.RiskHigh)

			_, err = s.GetCampaign(ctx, "missing")
			gt.True(t, errors.Is(err, repository.ErrNotFound))

			gt.NoError(t, s.DeleteCampaigns(ctx))
			all, err = s.ListCampaigns(ctx, 0, 0)
			gt.NoError(t, err)
			gt.A(t, all).Length(0)
		})
	}
}
