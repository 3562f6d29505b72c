package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/m-mizutani/quakead/pkg/model"
)

var (
	firstNames = []string{"John", "Jane", "Michael", "Sarah", "David", "Lisa", "Robert", "Emily", "James", "Jennifer",
		"William", "Ashley", "Christopher", "Jessica", "Daniel", "Amanda", "Matthew", "Stephanie", "Anthony", "Melissa"}
	lastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin"}
	cities = []string{"Los Angeles", "San Francisco", "San Diego", "Sacramento", "Fresno",
		"Oakland", "Long Beach", "Bakersfield", "Anaheim", "Santa Ana"}
	streets      = []string{"Main", "Oak", "Pine", "Cedar", "Elm"}
	incomeLevels = []string{"low", "medium", "high"}
	ageGroups    = []string{"18-25", "26-35", "36-45", "46-55", "56-65", "65+"}
)

type area struct {
	lat, lon, spread float64
}

var (
	losAngeles = area{34.0522, -118.2437, 0.5}
	cityAreas  = map[string]area{
		"Los Angeles":   losAngeles,
		"San Francisco": {37.7749, -122.4194, 0.3},
		"San Diego":     {32.7157, -117.1611, 0.3},
	}
	// remaining cities are scattered widely around Los Angeles
	defaultArea = area{losAngeles.lat, losAngeles.lon, 2}
)

const (
	minHouseValue = 200000
	maxHouseValue = 2000000
)

func pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// GenerateHouseholds creates n synthetic California homeowners. Person ids
// are P10000 upward and emails are unique.
func GenerateHouseholds(rng *rand.Rand, n int) []*model.Household {
	households := make([]*model.Household, 0, n)
	emails := make(map[string]int, n)

	for i := 0; i < n; i++ {
		first := pick(rng, firstNames)
		last := pick(rng, lastNames)
		city := pick(rng, cities)

		a, ok := cityAreas[city]
		if !ok {
			a = defaultArea
		}

		local := strings.ToLower(first) + "." + strings.ToLower(last)
		emails[local]++
		if c := emails[local]; c > 1 {
			local = fmt.Sprintf("%s%d", local, c)
		}

		households = append(households, &model.Household{
			PersonID:     model.PersonID(fmt.Sprintf("P%d", 10000+i)),
			FirstName:    first,
			LastName:     last,
			Email:        local + "@email.com",
			Phone:        fmt.Sprintf("555-%d-%d", 100+rng.IntN(900), 1000+rng.IntN(9000)),
			Address:      fmt.Sprintf("%d %s St", 100+rng.IntN(9900), pick(rng, streets)),
			City:         city,
			State:        "CA",
			ZipCode:      fmt.Sprintf("%d", 90000+rng.IntN(10000)),
			Latitude:     a.lat + between(rng, -a.spread, a.spread),
			Longitude:    a.lon + between(rng, -a.spread, a.spread),
			HouseValue:   between(rng, minHouseValue, maxHouseValue),
			HasInsurance: rng.IntN(2) == 0,
			IncomeLevel:  pick(rng, incomeLevels),
			AgeGroup:     pick(rng, ageGroups),
		})
	}

	return households
}
