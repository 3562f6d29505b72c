package campaign

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
)

// Save stores the session draft in the campaign history.
func (u *UseCase) Save(ctx context.Context, s *Session) (*model.Campaign, error) {
	d := s.Draft
	if d == nil || d.Target == nil || d.Target.Person == nil {
		return nil, goerr.Wrap(ErrNoDraft, "generate an email before saving")
	}

	c := &model.Campaign{
		ID:         model.NewCampaignID(),
		TargetName: d.Target.Person.FullName(),
		PersonID:   d.Target.Person.PersonID,
		RiskLevel:  d.Target.RiskLevel,
		Subject:    d.Subject,
		Body:       d.Body,
		CreatedAt:  u.now(),
	}
	if d.Target.Earthquake != nil {
		c.EventID = d.Target.Earthquake.EventID
	}

	if err := u.store.PutCampaign(ctx, c); err != nil {
		return nil, goerr.Wrap(err, "failed to save campaign")
	}
	return c, nil
}

// History returns saved campaigns, newest first.
func (u *UseCase) History(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	campaigns, err := u.store.ListCampaigns(ctx, offset, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list campaigns")
	}
	return campaigns, nil
}

func (u *UseCase) ClearHistory(ctx context.Context) error {
	if err := u.store.DeleteCampaigns(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear campaign history")
	}
	return nil
}

// ExportKey is the storage key of an exported campaign.
func ExportKey(id model.CampaignID) string {
	return "emails/" + string(id) + ".txt"
}

// Export writes the campaign as a plain-text email and returns where it was
// stored.
func (u *UseCase) Export(ctx context.Context, id model.CampaignID) (string, error) {
	if u.storage == nil {
		return "", goerr.Wrap(ErrNotConfig, "export storage is not configured")
	}

	c, err := u.store.GetCampaign(ctx, id)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get campaign", goerr.V("campaign_id", id))
	}

	key := ExportKey(id)
	w, err := u.storage.Put(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open export object", goerr.V("key", key))
	}
	if _, err := io.WriteString(w, c.Text()); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write export object", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to commit export object", goerr.V("key", key))
	}

	return u.storage.Location(key), nil
}
