package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// EventID is the external identifier assigned by the source network (e.g. "us7000abcd").
type EventID string

// SeismicEvent is one earthquake record. Records are immutable once stored;
// re-ingesting the same EventID replaces the previous row.
type SeismicEvent struct {
	EventID   EventID   `json:"event_id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Depth     float64   `json:"depth"`
	Magnitude float64   `json:"magnitude"`
	MagType   string    `json:"mag_type"`
	Place     string    `json:"place"`
	Network   string    `json:"network"`
	Updated   time.Time `json:"updated"`
	Status    string    `json:"status"`
}

// Validate checks the fields the data store requires.
func (e *SeismicEvent) Validate() error {
	if e.EventID == "" {
		return goerr.New("event_id is empty")
	}
	if e.Time.IsZero() {
		return goerr.New("event time is empty", goerr.V("event_id", e.EventID))
	}
	if e.Latitude < -90 || e.Latitude > 90 || e.Longitude < -180 || e.Longitude > 180 {
		return goerr.New("event coordinate out of range",
			goerr.V("event_id", e.EventID),
			goerr.V("latitude", e.Latitude),
			goerr.V("longitude", e.Longitude))
	}
	return nil
}
