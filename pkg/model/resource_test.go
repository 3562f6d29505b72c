package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
)

func TestParseResourceID(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		path  string
		query map[string]string
	}{
		{"plain", "stats/overview", "stats/overview", map[string]string{}},
		{"params", "earthquakes/recent?days=3&min_mag=2.5", "earthquakes/recent", map[string]string{"days": "3", "min_mag": "2.5"}},
		{"first equals splits", "targets/preview?q=a=b", "targets/preview", map[string]string{"q": "a=b"}},
		{"no unescape", "x?name=a%20b", "x", map[string]string{"name": "a%20b"}},
		{"pair without equals", "x?flag&k=v", "x", map[string]string{"k": "v"}},
		{"empty query", "x?", "x", map[string]string{}},
		{"second question mark", "x?a=1?b=2", "x", map[string]string{"a": "1?b=2"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id := model.ParseResourceID(tc.input)
			gt.Equal(t, id.Path, tc.path)
			gt.Equal(t, id.Query, tc.query)
		})
	}
}

func TestResourceIDString(t *testing.T) {
	id := model.ParseResourceID("targets/preview?uninsured=false&max_km=20&min_mag=4")
	gt.Equal(t, id.String(), "targets/preview?max_km=20&min_mag=4&uninsured=false")
	gt.Equal(t, model.ParseResourceID(id.String()).Query, id.Query)

	gt.Equal(t, model.ParseResourceID("stats/overview").String(), "stats/overview")
}

func TestResourceIDParam(t *testing.T) {
	id := model.ParseResourceID("earthquakes/recent?days=3")
	gt.Equal(t, id.Param("days", "7"), "3")
	gt.Equal(t, id.Param("min_mag", "0"), "0")
}
