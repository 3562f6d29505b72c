package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/adapter"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/usecase/campaign"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"google.golang.org/genai"
)

var now = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

type mockGemini struct {
	reply string
	calls int
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(m.reply, genai.RoleModel)},
		},
	}, nil
}

func newTestConsole(t *testing.T) (*console, *bytes.Buffer, *mockGemini, string) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemory()

	gt.NoError(t, store.PutEvents(ctx, []*model.SeismicEvent{
		{EventID: "la", Time: now.Add(-24 * time.Hour), Latitude: 34.05, Longitude: -118.24, Magnitude: 6.0, Place: "Los Angeles, CA"},
		{EventID: "old", Time: now.Add(-30 * 24 * time.Hour), Latitude: 37.77, Longitude: -122.42, Magnitude: 3.8, Place: "San Francisco, CA"},
	}))
	gt.NoError(t, store.PutHouseholds(ctx, []*model.Household{
		{PersonID: "P10000", FirstName: "Jane", LastName: "Doe", Email: "jane.doe@email.com", City: "Pasadena", State: "CA", Latitude: 34.14, Longitude: -118.24, HouseValue: 600000},
		{PersonID: "P10001", FirstName: "Ken", LastName: "Ito", Email: "ken.ito@email.com", City: "Glendale", State: "CA", Latitude: 34.20, Longitude: -118.24, HouseValue: 850000},
	}))

	cat, err := catalog.New(store, catalog.WithClock(func() time.Time { return now }))
	gt.NoError(t, err)
	b := bridge.NewInProcess(cat)
	gt.NoError(t, b.Start(ctx))

	dir := t.TempDir()
	storage, err := adapter.NewLocalStorage(dir)
	gt.NoError(t, err)

	gemini := &mockGemini{reply: `{"subject": "Protect your home", "body": "Hi there,"}`}
	uc := campaign.New(store,
		campaign.WithGemini(gemini),
		campaign.WithStorage(storage),
		campaign.WithClock(func() time.Time { return now }),
	)

	s := campaign.NewSession(b)
	t.Cleanup(func() { _ = s.Close() })

	buf := &bytes.Buffer{}
	return &console{w: buf, uc: uc, session: s}, buf, gemini, dir
}

func TestConsoleWorkflow(t *testing.T) {
	ctx := context.Background()
	con, buf, gemini, dir := newTestConsole(t)

	gt.NoError(t, con.execute(ctx, "stats"))
	gt.S(t, buf.String()).Contains("Earthquakes:       2")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "quakes 7"))
	gt.S(t, buf.String()).Contains("Los Angeles, CA")
	gt.S(t, buf.String()).NotContains("San Francisco, CA")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "find km=50"))
	gt.S(t, buf.String()).Contains("Targets: 2")
	gt.S(t, buf.String()).Contains("1. Jane Doe")
	gt.Equal(t, con.session.Criteria.MaxDistanceKm, 50.0)
	gt.Equal(t, con.session.Criteria.MinMagnitude, model.DefaultCriteria().MinMagnitude)

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "show 2"))
	gt.S(t, buf.String()).Contains("Ken Ito")
	gt.S(t, buf.String()).Contains("$850,000")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "select 1"))
	gt.S(t, buf.String()).Contains("Selected Jane Doe")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "email spring discount"))
	gt.S(t, buf.String()).Contains("Subject: Protect your home")
	gt.Equal(t, con.session.CampaignContext, "spring discount")

	gt.NoError(t, con.execute(ctx, "regen"))
	gt.Equal(t, gemini.calls, 2)
	gt.Equal(t, con.session.CampaignContext, "spring discount")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "save"))
	gt.S(t, buf.String()).Contains("Saved campaign")
	gt.True(t, con.lastSaved != "")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "history"))
	gt.S(t, buf.String()).Contains("Jane Doe")

	buf.Reset()
	gt.NoError(t, con.execute(ctx, "export"))
	gt.S(t, buf.String()).Contains("Exported to")

	data, err := os.ReadFile(filepath.Join(dir, campaign.ExportKey(con.lastSaved)))
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains("Subject: Protect your home")

	gt.NoError(t, con.execute(ctx, "reset"))
	gt.Equal(t, len(con.session.Targets), 0)
	gt.True(t, con.session.Draft == nil)
	gt.Equal(t, con.session.CampaignContext, "")
}

func TestConsoleErrors(t *testing.T) {
	ctx := context.Background()
	con, _, _, _ := newTestConsole(t)

	testCases := []struct {
		name string
		line string
		want error
	}{
		{"select before find", "select 1", campaign.ErrNoTarget},
		{"email without target", "email", campaign.ErrNoTarget},
		{"regen without draft", "regen", campaign.ErrNoDraft},
		{"save without draft", "save", campaign.ErrNoDraft},
		{"ask without gemini", "ask how many?", campaign.ErrNotConfig},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := con.execute(ctx, tc.line)
			gt.True(t, errors.Is(err, tc.want))
		})
	}

	gt.Error(t, con.execute(ctx, "launch"))
	gt.Error(t, con.execute(ctx, "quakes soon"))
	gt.Error(t, con.execute(ctx, "find km"))
	gt.Error(t, con.execute(ctx, "export"))
	gt.NoError(t, con.execute(ctx, "   "))
	gt.True(t, errors.Is(con.execute(ctx, "exit"), errQuit))
}

func TestParseCriteria(t *testing.T) {
	base := model.DefaultCriteria()

	got, err := parseCriteria(base, []string{"mag=4.5", "km=20", "value=1000000", "uninsured=false"})
	gt.NoError(t, err)
	gt.Equal(t, got, model.Criteria{
		MinMagnitude:     4.5,
		MaxDistanceKm:    20,
		MinHouseValue:    1000000,
		RequireUninsured: false,
	})

	got, err = parseCriteria(base, nil)
	gt.NoError(t, err)
	gt.Equal(t, got, base)

	_, err = parseCriteria(base, []string{"depth=10"})
	gt.Error(t, err)
	_, err = parseCriteria(base, []string{"uninsured=maybe"})
	gt.Error(t, err)
	_, err = parseCriteria(base, []string{"mag=high"})
	gt.Error(t, err)
}
