package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
)

// Memory is an in-process DataStore and CampaignStore, used by tests and by
// runs that do not need persistence.
type Memory struct {
	mu         sync.RWMutex
	events     map[model.EventID]*model.SeismicEvent
	households map[model.PersonID]*model.Household
	campaigns  map[model.CampaignID]*model.Campaign
}

var (
	_ DataStore     = (*Memory)(nil)
	_ CampaignStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		events:     make(map[model.EventID]*model.SeismicEvent),
		households: make(map[model.PersonID]*model.Household),
		campaigns:  make(map[model.CampaignID]*model.Campaign),
	}
}

func (m *Memory) PutEvents(ctx context.Context, events []*model.SeismicEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
		copied := *e
		m.events[e.EventID] = &copied
	}
	return nil
}

func (m *Memory) PutHouseholds(ctx context.Context, households []*model.Household) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range households {
		if err := h.Validate(); err != nil {
			return err
		}
		if h.Email != "" {
			for id, existing := range m.households {
				if id != h.PersonID && existing.Email == h.Email {
					return goerr.New("duplicate email",
						goerr.V("person_id", h.PersonID),
						goerr.V("email", h.Email))
				}
			}
		}
		copied := *h
		m.households[h.PersonID] = &copied
	}
	return nil
}

func (m *Memory) ListEvents(ctx context.Context) ([]*model.SeismicEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*model.SeismicEvent, 0, len(m.events))
	for _, e := range m.events {
		copied := *e
		events = append(events, &copied)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.After(events[j].Time)
		}
		return events[i].EventID < events[j].EventID
	})
	return events, nil
}

func (m *Memory) ListHouseholds(ctx context.Context) ([]*model.Household, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	households := make([]*model.Household, 0, len(m.households))
	for _, h := range m.households {
		copied := *h
		households = append(households, &copied)
	}
	sort.Slice(households, func(i, j int) bool {
		return households[i].PersonID < households[j].PersonID
	})
	return households, nil
}

func (m *Memory) PutCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		return goerr.New("campaign id is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	m.campaigns[c.ID] = &copied
	return nil
}

func (m *Memory) GetCampaign(ctx context.Context, id model.CampaignID) (*model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "campaign not found", goerr.V("campaign_id", id))
	}
	copied := *c
	return &copied, nil
}

func (m *Memory) ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	campaigns := make([]*model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		copied := *c
		campaigns = append(campaigns, &copied)
	}
	sort.Slice(campaigns, func(i, j int) bool {
		if !campaigns[i].CreatedAt.Equal(campaigns[j].CreatedAt) {
			return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
		}
		return campaigns[i].ID < campaigns[j].ID
	})

	return paginate(campaigns, offset, limit), nil
}

func (m *Memory) DeleteCampaigns(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns = make(map[model.CampaignID]*model.Campaign)
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
