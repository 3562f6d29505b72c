package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const campaignCollection = "campaigns"

// Firestore keeps the campaign history in a Firestore collection. Seismic and
// household data stay in SQLite.
type Firestore struct {
	client *firestore.Client
}

var _ CampaignStore = (*Firestore)(nil)

// NewFirestore creates a Firestore campaign store
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("firestore project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		return goerr.New("campaign id is empty")
	}
	if _, err := r.client.Collection(campaignCollection).Doc(string(c.ID)).Set(ctx, c); err != nil {
		return goerr.Wrap(err, "failed to put campaign", goerr.V("campaign_id", c.ID))
	}
	return nil
}

func (r *Firestore) GetCampaign(ctx context.Context, id model.CampaignID) (*model.Campaign, error) {
	doc, err := r.client.Collection(campaignCollection).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "campaign not found", goerr.V("campaign_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get campaign", goerr.V("campaign_id", id))
	}

	var c model.Campaign
	if err := doc.DataTo(&c); err != nil {
		return nil, goerr.Wrap(err, "failed to decode campaign", goerr.V("campaign_id", id))
	}
	return &c, nil
}

func (r *Firestore) ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	q := r.client.Collection(campaignCollection).OrderBy("created_at", firestore.Desc)
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var campaigns []*model.Campaign
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate campaigns")
		}

		var c model.Campaign
		if err := doc.DataTo(&c); err != nil {
			return nil, goerr.Wrap(err, "failed to decode campaign", goerr.V("doc", doc.Ref.ID))
		}
		campaigns = append(campaigns, &c)
	}

	return campaigns, nil
}

func (r *Firestore) DeleteCampaigns(ctx context.Context) error {
	refs := r.client.Collection(campaignCollection).DocumentRefs(ctx)
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to list campaign documents")
		}
		if _, err := ref.Delete(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete campaign", goerr.V("doc", ref.ID))
		}
	}
	return nil
}
