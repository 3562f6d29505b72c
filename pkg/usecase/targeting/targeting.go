package targeting

import (
	"math"
	"sort"

	"github.com/m-mizutani/quakead/pkg/model"
)

// EarthRadiusKm is the mean radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometers between two
// coordinates given in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// RiskLevelOf labels a household by the magnitude of its paired event and
// the distance to it.
func RiskLevelOf(magnitude, distanceKm float64) model.RiskLevel {
	switch {
	case distanceKm <= 50 && magnitude >= 5.0,
		distanceKm <= 25 && magnitude >= 4.0:
		return model.RiskHigh
	case distanceKm <= 100 && magnitude >= 4.0,
		distanceKm <= 50 && magnitude >= 3.0:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Find pairs every household that passes the value and insurance filters
// with its nearest event at or above the minimum magnitude, keeps pairs
// within the maximum distance and ranks them. Inputs are not modified and
// the returned targets point at the given records.
func Find(events []*model.SeismicEvent, households []*model.Household, criteria model.Criteria) *model.TargetResult {
	qualifying := make([]*model.SeismicEvent, 0, len(events))
	for _, e := range events {
		if e.Magnitude >= criteria.MinMagnitude {
			qualifying = append(qualifying, e)
		}
	}

	targets := make([]*model.Target, 0)
	for _, h := range households {
		if h.HouseValue < criteria.MinHouseValue {
			continue
		}
		if criteria.RequireUninsured && h.HasInsurance {
			continue
		}

		nearest, distance := nearestEvent(h, qualifying)
		if nearest == nil || distance > criteria.MaxDistanceKm {
			continue
		}

		targets = append(targets, &model.Target{
			Person:     h,
			Earthquake: nearest,
			DistanceKm: math.Min(round2(distance), criteria.MaxDistanceKm),
			RiskLevel:  RiskLevelOf(nearest.Magnitude, distance),
		})
	}

	sort.SliceStable(targets, func(i, j int) bool {
		a, b := targets[i], targets[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Person.HouseValue != b.Person.HouseValue {
			return a.Person.HouseValue > b.Person.HouseValue
		}
		return a.Person.PersonID < b.Person.PersonID
	})

	return &model.TargetResult{
		Summary: Summarize(targets, criteria),
		Targets: targets,
	}
}

// Summarize counts targets per risk level.
func Summarize(targets []*model.Target, criteria model.Criteria) model.Summary {
	s := model.Summary{
		TotalTargets: len(targets),
		Criteria:     criteria,
	}
	for _, t := range targets {
		switch t.RiskLevel {
		case model.RiskHigh:
			s.HighRiskTargets++
		case model.RiskMedium:
			s.MediumRiskTargets++
		default:
			s.LowRiskTargets++
		}
	}
	return s
}

func nearestEvent(h *model.Household, events []*model.SeismicEvent) (*model.SeismicEvent, float64) {
	var (
		nearest *model.SeismicEvent
		best    = math.Inf(1)
	)
	for _, e := range events {
		d := Distance(h.Latitude, h.Longitude, e.Latitude, e.Longitude)
		switch {
		case nearest == nil, d < best:
		case d == best && e.Magnitude > nearest.Magnitude:
		case d == best && e.Magnitude == nearest.Magnitude && e.EventID < nearest.EventID:
		default:
			continue
		}
		nearest, best = e, d
	}
	return nearest, best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
