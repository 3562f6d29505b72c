package model

import "github.com/m-mizutani/goerr/v2"

type PersonID string

// Household is a synthetic homeowner record used for ad targeting.
type Household struct {
	PersonID     PersonID `json:"person_id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	ZipCode      string   `json:"zip_code"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	HouseValue   float64  `json:"house_value"`
	HasInsurance bool     `json:"has_insurance"`
	IncomeLevel  string   `json:"income_level"`
	AgeGroup     string   `json:"age_group"`
}

// FullName returns "First Last".
func (h *Household) FullName() string {
	return h.FirstName + " " + h.LastName
}

func (h *Household) Validate() error {
	if h.PersonID == "" {
		return goerr.New("person_id is empty")
	}
	if h.FirstName == "" || h.LastName == "" {
		return goerr.New("name is empty", goerr.V("person_id", h.PersonID))
	}
	if h.HouseValue < 0 {
		return goerr.New("negative house value", goerr.V("person_id", h.PersonID))
	}
	return nil
}
