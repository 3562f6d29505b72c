package campaign

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
)

func (u *UseCase) read(ctx context.Context, s *Session, id model.ResourceID, v any) error {
	text, ok := s.bridge.ReadResource(ctx, id)
	if !ok {
		return goerr.Wrap(ErrUnavailable, "resource is not available",
			goerr.V("uri", id.String()),
			goerr.V("transport", s.bridge.Transport()),
			goerr.V("cause", s.bridge.LastError()))
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return goerr.Wrap(err, "failed to decode resource", goerr.V("uri", id.String()))
	}
	return nil
}

// Stats reads the stats/overview resource.
func (u *UseCase) Stats(ctx context.Context, s *Session) (*model.Stats, error) {
	var stats model.Stats
	if err := u.read(ctx, s, model.ResourceID{Path: catalog.ResourceStats}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecentEarthquakes reads events of the last days with at least minMag.
func (u *UseCase) RecentEarthquakes(ctx context.Context, s *Session, days int, minMag float64) ([]*model.SeismicEvent, error) {
	id := model.ResourceID{
		Path: catalog.ResourceRecent,
		Query: map[string]string{
			"days":    strconv.Itoa(days),
			"min_mag": strconv.FormatFloat(minMag, 'f', -1, 64),
		},
	}

	var events []*model.SeismicEvent
	if err := u.read(ctx, s, id, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// FindTargets runs the find_targets tool and makes the result the session's
// current target list.
func (u *UseCase) FindTargets(ctx context.Context, s *Session, criteria model.Criteria) (*model.TargetResult, error) {
	text, err := s.bridge.CallTool(ctx, catalog.ToolFindTargets, map[string]any{
		"min_magnitude":     criteria.MinMagnitude,
		"max_distance_km":   criteria.MaxDistanceKm,
		"min_house_value":   criteria.MinHouseValue,
		"require_uninsured": criteria.RequireUninsured,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find targets")
	}

	var result model.TargetResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode find_targets result")
	}

	s.Criteria = criteria
	s.Targets = result.Targets
	s.Selected = nil
	s.Draft = nil
	return &result, nil
}

// Preview reads the truncated targets/preview resource. It does not touch
// the session's target list.
func (u *UseCase) Preview(ctx context.Context, s *Session, criteria model.Criteria) (*model.TargetPreview, error) {
	id := model.ResourceID{
		Path: catalog.ResourcePreview,
		Query: map[string]string{
			"min_mag":   strconv.FormatFloat(criteria.MinMagnitude, 'f', -1, 64),
			"max_km":    strconv.FormatFloat(criteria.MaxDistanceKm, 'f', -1, 64),
			"min_value": strconv.FormatFloat(criteria.MinHouseValue, 'f', -1, 64),
			"uninsured": strconv.FormatBool(criteria.RequireUninsured),
		},
	}

	var preview model.TargetPreview
	if err := u.read(ctx, s, id, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}
