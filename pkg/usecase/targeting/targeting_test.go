package targeting_test

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/usecase/targeting"
)

// kmPerDegreeLat is the length of one degree of latitude on the haversine sphere.
const kmPerDegreeLat = targeting.EarthRadiusKm * math.Pi / 180

func quake(id string, lat, lon, mag float64) *model.SeismicEvent {
	return &model.SeismicEvent{
		EventID:   model.EventID(id),
		Time:      time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Latitude:  lat,
		Longitude: lon,
		Magnitude: mag,
		Place:     id,
	}
}

func home(id string, lat, lon, value float64, insured bool) *model.Household {
	return &model.Household{
		PersonID:     model.PersonID(id),
		FirstName:    "First" + id,
		LastName:     "Last",
		Latitude:     lat,
		Longitude:    lon,
		HouseValue:   value,
		HasInsurance: insured,
	}
}

func TestDistance(t *testing.T) {
	gt.Equal(t, targeting.Distance(34.05, -118.24, 34.05, -118.24), 0.0)

	d := targeting.Distance(34.05, -118.24, 34.05+10/kmPerDegreeLat, -118.24)
	gt.True(t, math.Abs(d-10) < 1e-6)

	// Los Angeles to San Francisco is about 559 km
	d = targeting.Distance(34.0522, -118.2437, 37.7749, -122.4194)
	gt.True(t, d > 550 && d < 570)

	gt.True(t, math.Abs(targeting.Distance(1, 2, 3, 4)-targeting.Distance(3, 4, 1, 2)) < 1e-9)
}

func TestRiskLevelOf(t *testing.T) {
	testCases := []struct {
		mag      float64
		distance float64
		want     model.RiskLevel
	}{
		{6.0, 10, model.RiskHigh},
		{5.0, 50, model.RiskHigh},
		{4.0, 25, model.RiskHigh},
		{4.5, 30, model.RiskMedium},
		{4.0, 100, model.RiskMedium},
		{3.0, 50, model.RiskMedium},
		{5.5, 100.5, model.RiskLow},
		{3.5, 60, model.RiskLow},
		{2.9, 1, model.RiskLow},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("M%.1f_%.1fkm", tc.mag, tc.distance), func(t *testing.T) {
			gt.Equal(t, targeting.RiskLevelOf(tc.mag, tc.distance), tc.want)
		})
	}
}

func TestFindSingleTarget(t *testing.T) {
	events := []*model.SeismicEvent{quake("ev1", 34.05, -118.24, 6.0)}
	households := []*model.Household{home("P10000", 34.05+10/kmPerDegreeLat, -118.24, 600000, false)}

	result := targeting.Find(events, households, model.Criteria{
		MinMagnitude:     5.0,
		MaxDistanceKm:    50,
		MinHouseValue:    500000,
		RequireUninsured: true,
	})

	gt.A(t, result.Targets).Length(1)
	target := result.Targets[0]
	gt.Equal(t, target.Person.PersonID, model.PersonID("P10000"))
	gt.Equal(t, target.Earthquake.EventID, model.EventID("ev1"))
	gt.Equal(t, target.DistanceKm, 10.0)
	gt.Equal(t, target.RiskLevel, model.RiskHigh)

	gt.Equal(t, result.Summary.TotalTargets, 1)
	gt.Equal(t, result.Summary.HighRiskTargets, 1)
	gt.Equal(t, result.Summary.Criteria.MaxDistanceKm, 50.0)
}

func TestFindFilters(t *testing.T) {
	events := []*model.SeismicEvent{
		quake("small", 34.0, -118.0, 2.0),
		quake("big", 36.0, -118.0, 5.0),
	}
	households := []*model.Household{
		home("near-small", 34.0, -118.0, 900000, false), // nearest qualifying is "big", far away
		home("near-big", 36.0, -118.0, 900000, false),
		home("cheap", 36.0, -118.0, 100000, false),
		home("insured", 36.0, -118.0, 900000, true),
	}

	result := targeting.Find(events, households, model.Criteria{
		MinMagnitude:     3.0,
		MaxDistanceKm:    100,
		MinHouseValue:    500000,
		RequireUninsured: true,
	})
	gt.A(t, result.Targets).Length(1)
	gt.Equal(t, result.Targets[0].Person.PersonID, model.PersonID("near-big"))

	result = targeting.Find(events, households, model.Criteria{
		MinMagnitude:  3.0,
		MaxDistanceKm: 100,
		MinHouseValue: 500000,
	})
	gt.A(t, result.Targets).Length(2)
}

func TestFindPairsNearestEvent(t *testing.T) {
	events := []*model.SeismicEvent{
		quake("far", 34.5, -118.0, 6.5),
		quake("near", 34.1, -118.0, 4.0),
		quake("near-bigger", 34.1, -118.0, 4.5),
	}
	households := []*model.Household{home("P1", 34.0, -118.0, 700000, false)}

	result := targeting.Find(events, households, model.DefaultCriteria())
	gt.A(t, result.Targets).Length(1)
	gt.Equal(t, result.Targets[0].Earthquake.EventID, model.EventID("near-bigger"))
}

func TestFindRanking(t *testing.T) {
	events := []*model.SeismicEvent{quake("ev", 34.0, -118.0, 5.0)}
	households := []*model.Household{
		home("P3", 34.3, -118.0, 800000, false),
		home("P2", 34.1, -118.0, 600000, false),
		home("P1", 34.1, -118.0, 900000, false),
		home("P0", 34.1, -118.0, 900000, false),
	}

	result := targeting.Find(events, households, model.DefaultCriteria())
	ids := make([]model.PersonID, 0, len(result.Targets))
	for _, target := range result.Targets {
		ids = append(ids, target.Person.PersonID)
	}
	gt.Equal(t, ids, []model.PersonID{"P0", "P1", "P2", "P3"})
}

func TestFindEmpty(t *testing.T) {
	result := targeting.Find(nil, nil, model.DefaultCriteria())
	gt.NotNil(t, result.Targets)
	gt.A(t, result.Targets).Length(0)
	gt.Equal(t, result.Summary.TotalTargets, 0)
}

func TestFindProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	events := make([]*model.SeismicEvent, 0, 40)
	for i := 0; i < 40; i++ {
		events = append(events, quake(fmt.Sprintf("ev%02d", i),
			33+rng.Float64()*5, -122+rng.Float64()*5, 1+rng.Float64()*6))
	}
	households := make([]*model.Household, 0, 300)
	for i := 0; i < 300; i++ {
		households = append(households, home(fmt.Sprintf("P%05d", i),
			33+rng.Float64()*5, -122+rng.Float64()*5, 200000+rng.Float64()*1800000, rng.Intn(2) == 0))
	}

	criteriaSet := []model.Criteria{
		model.DefaultCriteria(),
		{MinMagnitude: 5.0, MaxDistanceKm: 50, MinHouseValue: 500000, RequireUninsured: true},
		{MinMagnitude: 2.0, MaxDistanceKm: 250, MinHouseValue: 0, RequireUninsured: false},
		{MinMagnitude: 4.0, MaxDistanceKm: 10, MinHouseValue: 1000000, RequireUninsured: false},
	}

	for _, criteria := range criteriaSet {
		t.Run(fmt.Sprintf("%+v", criteria), func(t *testing.T) {
			result := targeting.Find(events, households, criteria)

			s := result.Summary
			gt.Equal(t, s.TotalTargets, len(result.Targets))
			gt.Equal(t, s.HighRiskTargets+s.MediumRiskTargets+s.LowRiskTargets, s.TotalTargets)

			for i, target := range result.Targets {
				gt.True(t, target.DistanceKm <= criteria.MaxDistanceKm)
				gt.True(t, target.Earthquake.Magnitude >= criteria.MinMagnitude)
				gt.True(t, target.Person.HouseValue >= criteria.MinHouseValue)
				if criteria.RequireUninsured {
					gt.False(t, target.Person.HasInsurance)
				}
				if i > 0 {
					gt.True(t, result.Targets[i-1].DistanceKm <= target.DistanceKm)
				}
			}
		})
	}
}
