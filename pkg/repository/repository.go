package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
)

var ErrNotFound = goerr.New("not found")

// DataStore holds the two independent record sets. It is populated by the
// offline generator and only read while serving.
type DataStore interface {
	// PutEvents inserts events, replacing rows with the same EventID
	PutEvents(ctx context.Context, events []*model.SeismicEvent) error

	// PutHouseholds inserts households, replacing rows with the same PersonID
	PutHouseholds(ctx context.Context, households []*model.Household) error

	// ListEvents returns all events, newest first
	ListEvents(ctx context.Context) ([]*model.SeismicEvent, error)

	// ListHouseholds returns all households ordered by PersonID
	ListHouseholds(ctx context.Context) ([]*model.Household, error)
}

// CampaignStore persists the campaign history.
type CampaignStore interface {
	// PutCampaign saves a campaign
	PutCampaign(ctx context.Context, campaign *model.Campaign) error

	// GetCampaign returns ErrNotFound when id is unknown
	GetCampaign(ctx context.Context, id model.CampaignID) (*model.Campaign, error)

	// ListCampaigns returns campaigns newest first
	ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, error)

	// DeleteCampaigns removes the whole history
	DeleteCampaigns(ctx context.Context) error
}
