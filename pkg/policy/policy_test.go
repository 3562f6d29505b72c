package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/policy"
)

const outreachPolicy = `package outreach

deny contains "state is excluded" if {
	input.target.person.state == "NV"
}

deny contains "low risk targets need a campaign context" if {
	input.target.risk_level == "low"
	input.campaign_context == ""
}

deny contains "do not contact homes over 1.5M" if {
	input.target.person.house_value > 1500000
}
`

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "outreach.rego"), []byte(body), 0o644))
	return dir
}

func target(state string, value float64, risk model.RiskLevel) *model.Target {
	return &model.Target{
		Person: &model.Household{
			PersonID:   "P10001",
			FirstName:  "Sam",
			LastName:   "Lee",
			State:      state,
			HouseValue: value,
		},
		Earthquake: &model.SeismicEvent{EventID: "ev1", Magnitude: 5.2},
		DistanceKm: 12.5,
		RiskLevel:  risk,
	}
}

func TestDeny(t *testing.T) {
	ctx := context.Background()
	p, err := policy.Load(ctx, writePolicy(t, outreachPolicy))
	gt.NoError(t, err)
	gt.NotNil(t, p)

	testCases := []struct {
		name    string
		target  *model.Target
		context string
		want    []string
	}{
		{"allowed", target("CA", 700000, model.RiskHigh), "", []string{}},
		{"excluded state", target("NV", 700000, model.RiskHigh), "", []string{"state is excluded"}},
		{"low risk with context", target("CA", 700000, model.RiskLow), "spring promo", []string{}},
		{
			"several reasons are sorted",
			target("NV", 2000000, model.RiskLow),
			"",
			[]string{"do not contact homes over 1.5M", "low risk targets need a campaign context", "state is excluded"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reasons, err := p.Deny(ctx, tc.target, tc.context)
			gt.NoError(t, err)
			gt.A(t, reasons).Length(len(tc.want))
			if len(tc.want) > 0 {
				gt.Equal(t, reasons, tc.want)
			}
		})
	}
}

func TestLoadEmptyDir(t *testing.T) {
	p, err := policy.Load(context.Background(), t.TempDir())
	gt.NoError(t, err)
	gt.True(t, p == nil)

	// nil policy allows every target
	reasons, err := p.Deny(context.Background(), target("NV", 1, model.RiskLow), "")
	gt.NoError(t, err)
	gt.A(t, reasons).Length(0)
}

func TestLoadInvalidPolicy(t *testing.T) {
	_, err := policy.Load(context.Background(), writePolicy(t, "package outreach\n\ndeny contains x if {"))
	gt.Error(t, err)
}

func TestDenyMustBeStrings(t *testing.T) {
	ctx := context.Background()
	p, err := policy.Load(ctx, writePolicy(t, "package outreach\n\ndeny contains 42 if { true }\n"))
	gt.NoError(t, err)

	_, err = p.Deny(ctx, target("CA", 1, model.RiskHigh), "")
	gt.Error(t, err)
}
