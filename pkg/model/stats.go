package model

type EarthquakeStats struct {
	TotalEarthquakes      int     `json:"total_earthquakes"`
	RecentEarthquakes7Day int     `json:"recent_earthquakes_7_days"`
	MaxMagnitude          float64 `json:"max_magnitude"`
	AvgMagnitude          float64 `json:"avg_magnitude"`
}

type DemographicStats struct {
	TotalPeople         int     `json:"total_people"`
	HighValueHomes      int     `json:"high_value_homes"`
	UninsuredHomes      int     `json:"uninsured_homes"`
	UninsuredPercentage float64 `json:"uninsured_percentage"`
}

// Stats is the payload of the stats/overview resource.
type Stats struct {
	EarthquakeStats  EarthquakeStats  `json:"earthquake_stats"`
	DemographicStats DemographicStats `json:"demographic_stats"`
}
