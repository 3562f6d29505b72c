package catalog

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/usecase/targeting"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	ResourceStats   = "stats/overview"
	ResourceRecent  = "earthquakes/recent"
	ResourcePreview = "targets/preview"

	ToolFindTargets = "find_targets"

	// DefaultPreviewLimit is the number of targets returned by targets/preview.
	DefaultPreviewLimit = 20

	highValueThreshold = 500000
)

var (
	ErrUnknownTool      = goerr.New("unknown tool")
	ErrInvalidArguments = goerr.New("invalid arguments")
	ErrInvalidParameter = goerr.New("invalid resource parameter")
)

// Catalog computes the fixed set of resources and tools over a DataStore.
// It holds no state besides its configuration, so the same store contents
// always produce the same text.
type Catalog struct {
	store        repository.DataStore
	now          func() time.Time
	previewLimit int
	validator    *sjsonschema.Schema
}

type Option func(*Catalog)

// WithClock sets the clock used for "recent" windows.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

func WithPreviewLimit(limit int) Option {
	return func(c *Catalog) {
		c.previewLimit = limit
	}
}

func New(store repository.DataStore, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		store:        store,
		now:          time.Now,
		previewLimit: DefaultPreviewLimit,
	}
	for _, opt := range opts {
		opt(c)
	}

	validator, err := compileSchema(findTargetsSchema())
	if err != nil {
		return nil, err
	}
	c.validator = validator

	return c, nil
}

// Resources returns the descriptors of every readable resource.
func (c *Catalog) Resources() []model.ResourceDescriptor {
	return []model.ResourceDescriptor{
		{URI: ResourceStats, Name: "Statistics Overview", Description: "Earthquake and demographic statistics"},
		{URI: ResourceRecent, Name: "Recent Earthquakes", Description: "Recent earthquake events, filter with ?days=N&min_mag=F"},
		{URI: ResourcePreview, Name: "Target Preview", Description: "Preview of potential campaign targets, filter with ?min_mag=F&max_km=F&min_value=F&uninsured=true|false"},
	}
}

// Tools returns the descriptors of every callable tool.
func (c *Catalog) Tools() []model.ToolDescriptor {
	return []model.ToolDescriptor{
		{
			Name:        ToolFindTargets,
			Description: "Find people who should be targeted for earthquake insurance ads",
			InputSchema: findTargetsSchemaMap(),
		},
	}
}

// Read renders the resource as indented JSON. The boolean is false when the
// path is not a known resource.
func (c *Catalog) Read(ctx context.Context, id model.ResourceID) (string, bool, error) {
	var (
		payload any
		err     error
	)

	switch id.Path {
	case ResourceStats:
		payload, err = c.stats(ctx)
	case ResourceRecent:
		payload, err = c.recent(ctx, id)
	case ResourcePreview:
		payload, err = c.preview(ctx, id)
	default:
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read resource", goerr.V("uri", id.String()))
	}

	text, err := render(payload)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Call runs the named tool. args is the decoded JSON argument object and may
// be nil.
func (c *Catalog) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	if name != ToolFindTargets {
		return "", goerr.Wrap(ErrUnknownTool, "tool is not in catalog", goerr.V("tool", name))
	}

	criteria, err := c.criteriaFromArgs(ctx, args)
	if err != nil {
		return "", err
	}

	result, err := c.FindTargets(ctx, criteria)
	if err != nil {
		return "", err
	}
	return render(result)
}

// FindTargets runs the targeting query over the current store contents.
func (c *Catalog) FindTargets(ctx context.Context, criteria model.Criteria) (*model.TargetResult, error) {
	events, err := c.store.ListEvents(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list events")
	}
	households, err := c.store.ListHouseholds(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list households")
	}

	return targeting.Find(events, households, criteria), nil
}

func (c *Catalog) stats(ctx context.Context) (*model.Stats, error) {
	events, err := c.store.ListEvents(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list events")
	}
	households, err := c.store.ListHouseholds(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list households")
	}

	var stats model.Stats

	since := c.now().Add(-7 * 24 * time.Hour)
	var sum float64
	for i, e := range events {
		stats.EarthquakeStats.TotalEarthquakes++
		if !e.Time.Before(since) {
			stats.EarthquakeStats.RecentEarthquakes7Day++
		}
		if i == 0 || e.Magnitude > stats.EarthquakeStats.MaxMagnitude {
			stats.EarthquakeStats.MaxMagnitude = e.Magnitude
		}
		sum += e.Magnitude
	}
	if len(events) > 0 {
		stats.EarthquakeStats.AvgMagnitude = round(sum/float64(len(events)), 2)
	}

	for _, h := range households {
		stats.DemographicStats.TotalPeople++
		if h.HouseValue > highValueThreshold {
			stats.DemographicStats.HighValueHomes++
		}
		if !h.HasInsurance {
			stats.DemographicStats.UninsuredHomes++
		}
	}
	if n := stats.DemographicStats.TotalPeople; n > 0 {
		pct := float64(stats.DemographicStats.UninsuredHomes) / float64(n) * 100
		stats.DemographicStats.UninsuredPercentage = round(pct, 1)
	}

	return &stats, nil
}

func (c *Catalog) recent(ctx context.Context, id model.ResourceID) ([]*model.SeismicEvent, error) {
	days, err := strconv.Atoi(id.Param("days", "7"))
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidParameter, "days must be an integer", goerr.V("days", id.Query["days"]))
	}
	minMag, err := parseFloatParam(id, "min_mag", 0)
	if err != nil {
		return nil, err
	}

	events, err := c.store.ListEvents(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list events")
	}

	since := c.now().Add(-time.Duration(days) * 24 * time.Hour)
	recent := make([]*model.SeismicEvent, 0)
	for _, e := range events {
		if e.Time.Before(since) || e.Magnitude < minMag {
			continue
		}
		recent = append(recent, e)
	}
	sortRecent(recent)

	return recent, nil
}

func (c *Catalog) preview(ctx context.Context, id model.ResourceID) (*model.TargetPreview, error) {
	defaults := model.DefaultCriteria()
	criteria := model.Criteria{}

	var err error
	if criteria.MinMagnitude, err = parseFloatParam(id, "min_mag", defaults.MinMagnitude); err != nil {
		return nil, err
	}
	if criteria.MaxDistanceKm, err = parseFloatParam(id, "max_km", defaults.MaxDistanceKm); err != nil {
		return nil, err
	}
	if criteria.MinHouseValue, err = parseFloatParam(id, "min_value", defaults.MinHouseValue); err != nil {
		return nil, err
	}
	criteria.RequireUninsured = strings.EqualFold(id.Param("uninsured", "true"), "true")

	result, err := c.FindTargets(ctx, criteria)
	if err != nil {
		return nil, err
	}

	targets := result.Targets
	if c.previewLimit >= 0 && len(targets) > c.previewLimit {
		targets = targets[:c.previewLimit]
	}

	return &model.TargetPreview{
		PreviewCount:   len(targets),
		TotalAvailable: len(result.Targets),
		Criteria:       result.Summary.Criteria,
		Targets:        targets,
	}, nil
}

func parseFloatParam(id model.ResourceID, key string, def float64) (float64, error) {
	raw, ok := id.Query[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !finite(v) {
		return 0, goerr.Wrap(ErrInvalidParameter, "parameter must be a number", goerr.V("key", key), goerr.V("value", raw))
	}
	return v, nil
}

func render(payload any) (string, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal payload")
	}
	return string(raw), nil
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
