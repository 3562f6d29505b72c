package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
)

// USGS feed column names. The same names are expected from BigQuery imports.
const (
	colTime      = "time"
	colLatitude  = "latitude"
	colLongitude = "longitude"
	colDepth     = "depth"
	colMag       = "mag"
	colMagType   = "magType"
	colPlace     = "place"
	colNet       = "net"
	colID        = "id"
	colUpdated   = "updated"
	colStatus    = "status"
)

var requiredColumns = []string{colTime, colLatitude, colLongitude, colMag, colID}

// SampleEvents are inserted when no earthquake feed can be loaded.
func SampleEvents() []*model.SeismicEvent {
	ts := func(s string) time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		return t
	}

	return []*model.SeismicEvent{
		{EventID: "us123456", Time: ts("2025-01-15T10:30:00Z"), Latitude: 34.0522, Longitude: -118.2437, Depth: 10.5, Magnitude: 4.2, MagType: "ml", Place: "Los Angeles, CA", Network: "us", Updated: ts("2025-01-15T10:35:00Z"), Status: "reviewed"},
		{EventID: "us123457", Time: ts("2025-01-15T11:15:00Z"), Latitude: 37.7749, Longitude: -122.4194, Depth: 8.2, Magnitude: 3.8, MagType: "ml", Place: "San Francisco, CA", Network: "us", Updated: ts("2025-01-15T11:20:00Z"), Status: "reviewed"},
		{EventID: "us123458", Time: ts("2025-01-15T12:00:00Z"), Latitude: 40.7128, Longitude: -74.0060, Depth: 12.1, Magnitude: 5.1, MagType: "mb", Place: "New York, NY", Network: "us", Updated: ts("2025-01-15T12:05:00Z"), Status: "reviewed"},
	}
}

// LoadCSV reads a USGS earthquake CSV. Columns are located by header name;
// unknown columns are ignored. Any malformed row fails the whole load.
func LoadCSV(r io.Reader) ([]*model.SeismicEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read CSV header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, goerr.New("required CSV column is missing", goerr.V("column", col))
		}
	}

	var events []*model.SeismicEvent
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read CSV row", goerr.V("line", line))
		}

		row := make(map[string]any, len(index))
		for name, i := range index {
			if i < len(record) {
				row[name] = record[i]
			}
		}

		event, err := eventFromRow(row)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid CSV row", goerr.V("line", line))
		}
		events = append(events, event)
	}

	return events, nil
}

// EventsFromRows converts query rows keyed by USGS column names.
func EventsFromRows(rows []map[string]any) ([]*model.SeismicEvent, error) {
	events := make([]*model.SeismicEvent, 0, len(rows))
	for i, row := range rows {
		event, err := eventFromRow(row)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid query row", goerr.V("row", i))
		}
		events = append(events, event)
	}
	return events, nil
}

func eventFromRow(row map[string]any) (*model.SeismicEvent, error) {
	var err error
	e := &model.SeismicEvent{
		EventID: model.EventID(stringValue(row[colID])),
		MagType: stringValue(row[colMagType]),
		Place:   stringValue(row[colPlace]),
		Network: stringValue(row[colNet]),
		Status:  stringValue(row[colStatus]),
	}

	if e.Time, err = timeValue(row[colTime], true); err != nil {
		return nil, goerr.Wrap(err, "invalid time")
	}
	if e.Updated, err = timeValue(row[colUpdated], false); err != nil {
		return nil, goerr.Wrap(err, "invalid updated")
	}
	if e.Latitude, err = floatValue(row[colLatitude], true); err != nil {
		return nil, goerr.Wrap(err, "invalid latitude")
	}
	if e.Longitude, err = floatValue(row[colLongitude], true); err != nil {
		return nil, goerr.Wrap(err, "invalid longitude")
	}
	if e.Depth, err = floatValue(row[colDepth], false); err != nil {
		return nil, goerr.Wrap(err, "invalid depth")
	}
	if e.Magnitude, err = floatValue(row[colMag], true); err != nil {
		return nil, goerr.Wrap(err, "invalid magnitude")
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

func floatValue(v any, required bool) (float64, error) {
	switch n := v.(type) {
	case nil:
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			break
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, goerr.Wrap(err, "not a number", goerr.V("value", n))
		}
		return f, nil
	default:
		return 0, goerr.New("unsupported number type", goerr.V("value", v))
	}

	if required {
		return 0, goerr.New("value is empty")
	}
	return 0, nil
}

func timeValue(v any, required bool) (time.Time, error) {
	switch t := v.(type) {
	case nil:
	case time.Time:
		return t.UTC(), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			break
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, goerr.Wrap(err, "not an RFC 3339 time", goerr.V("value", t))
		}
		return parsed.UTC(), nil
	default:
		return time.Time{}, goerr.New("unsupported time type", goerr.V("value", v))
	}

	if required {
		return time.Time{}, goerr.New("value is empty")
	}
	return time.Time{}, nil
}
