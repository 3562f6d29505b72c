package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/quakead/pkg/model"
)

const timestampLayout = "2006-01-02 15:04:05"

func dollars(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(v)))
}

func printStats(w io.Writer, s *model.Stats) {
	e, d := s.EarthquakeStats, s.DemographicStats
	fmt.Fprintf(w, "Earthquakes:       %d (%d in the last 7 days)\n", e.TotalEarthquakes, e.RecentEarthquakes7Day)
	fmt.Fprintf(w, "Max magnitude:     %.1f\n", e.MaxMagnitude)
	fmt.Fprintf(w, "Avg magnitude:     %.2f\n", e.AvgMagnitude)
	fmt.Fprintf(w, "Households:        %s\n", humanize.Comma(int64(d.TotalPeople)))
	fmt.Fprintf(w, "High value homes:  %s\n", humanize.Comma(int64(d.HighValueHomes)))
	fmt.Fprintf(w, "Uninsured homes:   %s (%.1f%%)\n", humanize.Comma(int64(d.UninsuredHomes)), d.UninsuredPercentage)
}

func printEvents(w io.Writer, events []*model.SeismicEvent) {
	if len(events) == 0 {
		fmt.Fprintf(w, "No earthquakes found\n")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "M%.1f\t%s\t%s\t(%.3f, %.3f)\t%s\n",
			e.Magnitude,
			e.Time.UTC().Format(timestampLayout),
			e.Place,
			e.Latitude,
			e.Longitude,
			e.EventID,
		)
	}
}

func printCriteria(w io.Writer, c model.Criteria) {
	fmt.Fprintf(w, "Criteria: magnitude >= %.1f, distance <= %.0f km, home value >= %s, uninsured only: %t\n",
		c.MinMagnitude, c.MaxDistanceKm, dollars(c.MinHouseValue), c.RequireUninsured)
}

func printTargets(w io.Writer, targets []*model.Target) {
	for i, t := range targets {
		p, e := t.Person, t.Earthquake
		if p == nil || e == nil {
			continue
		}
		fmt.Fprintf(w, "%d. %s <%s>\t%s, %s\t%s\t%.2f km from M%.1f %s\t[%s]\n",
			i+1,
			p.FullName(),
			p.Email,
			p.City,
			p.State,
			dollars(p.HouseValue),
			t.DistanceKm,
			e.Magnitude,
			e.Place,
			strings.ToUpper(string(t.RiskLevel)),
		)
	}
}

func printTargetResult(w io.Writer, r *model.TargetResult) {
	s := r.Summary
	printCriteria(w, s.Criteria)
	fmt.Fprintf(w, "Targets: %d (high %d, medium %d, low %d)\n\n",
		s.TotalTargets, s.HighRiskTargets, s.MediumRiskTargets, s.LowRiskTargets)
	printTargets(w, r.Targets)
}

func printPreview(w io.Writer, p *model.TargetPreview) {
	printCriteria(w, p.Criteria)
	fmt.Fprintf(w, "Showing %d of %d targets\n\n", p.PreviewCount, p.TotalAvailable)
	printTargets(w, p.Targets)
}

func printTarget(w io.Writer, t *model.Target) {
	p, e := t.Person, t.Earthquake
	fmt.Fprintf(w, "Name:       %s (%s)\n", p.FullName(), p.PersonID)
	fmt.Fprintf(w, "Email:      %s\n", p.Email)
	fmt.Fprintf(w, "Phone:      %s\n", p.Phone)
	fmt.Fprintf(w, "Address:    %s, %s, %s %s\n", p.Address, p.City, p.State, p.ZipCode)
	fmt.Fprintf(w, "Home value: %s\n", dollars(p.HouseValue))
	fmt.Fprintf(w, "Insured:    %t\n", p.HasInsurance)
	fmt.Fprintf(w, "Income:     %s, age %s\n", p.IncomeLevel, p.AgeGroup)
	fmt.Fprintf(w, "Earthquake: M%.1f %s at %s\n", e.Magnitude, e.Place, e.Time.UTC().Format(timestampLayout))
	fmt.Fprintf(w, "Distance:   %.2f km\n", t.DistanceKm)
	fmt.Fprintf(w, "Risk:       %s\n", t.RiskLevel)
}

func printDraft(w io.Writer, d *model.EmailDraft) {
	if !d.Structured {
		fmt.Fprintf(w, "(the model did not return JSON, the draft was built from plain text)\n")
	}
	fmt.Fprintf(w, "%s\n", d.Text())
}

func printCampaigns(w io.Writer, campaigns []*model.Campaign) {
	if len(campaigns) == 0 {
		fmt.Fprintf(w, "No saved campaigns\n")
		return
	}
	for _, c := range campaigns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			c.CreatedAt.Local().Format(timestampLayout),
			c.TargetName,
			c.RiskLevel,
			c.Subject,
		)
	}
}
