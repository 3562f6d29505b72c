package model

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Criteria are the targeting filters. The zero value is not the default set;
// use DefaultCriteria.
type Criteria struct {
	MinMagnitude     float64 `json:"min_magnitude"`
	MaxDistanceKm    float64 `json:"max_distance_km"`
	MinHouseValue    float64 `json:"min_house_value"`
	RequireUninsured bool    `json:"require_uninsured"`
}

// DefaultCriteria returns the defaults of the find_targets tool.
func DefaultCriteria() Criteria {
	return Criteria{
		MinMagnitude:     3.5,
		MaxDistanceKm:    100,
		MinHouseValue:    500000,
		RequireUninsured: true,
	}
}

// Target pairs a household with its nearest qualifying event. Targets are
// built per query and never persisted.
type Target struct {
	Person     *Household    `json:"person"`
	Earthquake *SeismicEvent `json:"earthquake"`
	DistanceKm float64       `json:"distance_km"`
	RiskLevel  RiskLevel     `json:"risk_level"`
}

type Summary struct {
	TotalTargets      int      `json:"total_targets"`
	HighRiskTargets   int      `json:"high_risk_targets"`
	MediumRiskTargets int      `json:"medium_risk_targets"`
	LowRiskTargets    int      `json:"low_risk_targets"`
	Criteria          Criteria `json:"criteria"`
}

// TargetResult is the payload of the find_targets tool.
type TargetResult struct {
	Summary Summary   `json:"summary"`
	Targets []*Target `json:"targets"`
}

// TargetPreview is the payload of the targets/preview resource: at most a
// page of targets plus the size of the full result.
type TargetPreview struct {
	PreviewCount   int       `json:"preview_count"`
	TotalAvailable int       `json:"total_available"`
	Criteria       Criteria  `json:"criteria"`
	Targets        []*Target `json:"targets"`
}
