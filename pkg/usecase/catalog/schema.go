package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

func findTargetsSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"min_magnitude": {
				Type:        "number",
				Description: "Minimum earthquake magnitude",
				Default:     json.RawMessage("3.5"),
			},
			"max_distance_km": {
				Type:        "number",
				Description: "Maximum distance from the earthquake in kilometers",
				Default:     json.RawMessage("100"),
			},
			"min_house_value": {
				Type:        "number",
				Description: "Minimum estimated house value in USD",
				Default:     json.RawMessage("500000"),
			},
			"require_uninsured": {
				Type:        "boolean",
				Description: "Only include homes without earthquake insurance",
				Default:     json.RawMessage("true"),
			},
		},
	}
}

// findTargetsSchemaMap returns the schema in decoded form for descriptors.
func findTargetsSchemaMap() map[string]any {
	raw, err := json.Marshal(findTargetsSchema())
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(err)
	}
	return m
}

func compileSchema(schema *jsonschema.Schema) (*sjsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal tool schema")
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode tool schema")
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("find_targets.json", doc); err != nil {
		return nil, goerr.Wrap(err, "failed to add tool schema")
	}
	compiled, err := c.Compile("find_targets.json")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compile tool schema")
	}
	return compiled, nil
}

// validate reports schema violations. Violations are advisory: the caller
// logs them and still attempts to interpret the arguments.
func (c *Catalog) validate(args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return goerr.Wrap(err, "arguments are not serializable")
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return goerr.Wrap(err, "arguments are not valid JSON")
	}
	if err := c.validator.Validate(doc); err != nil {
		return goerr.Wrap(err, "arguments do not match schema")
	}
	return nil
}

func (c *Catalog) criteriaFromArgs(ctx context.Context, args map[string]any) (model.Criteria, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := c.validate(args); err != nil {
		logging.From(ctx).Warn("find_targets arguments do not match schema",
			"tool", ToolFindTargets, "error", err)
	}

	criteria := model.DefaultCriteria()

	var err error
	if criteria.MinMagnitude, err = numberArg(args, "min_magnitude", criteria.MinMagnitude); err != nil {
		return criteria, err
	}
	if criteria.MaxDistanceKm, err = numberArg(args, "max_distance_km", criteria.MaxDistanceKm); err != nil {
		return criteria, err
	}
	if criteria.MinHouseValue, err = numberArg(args, "min_house_value", criteria.MinHouseValue); err != nil {
		return criteria, err
	}
	if criteria.RequireUninsured, err = boolArg(args, "require_uninsured", criteria.RequireUninsured); err != nil {
		return criteria, err
	}

	return criteria, nil
}

func numberArg(args map[string]any, key string, def float64) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}

	if f, ok := toFloat(v); ok && finite(f) {
		return f, nil
	}
	return 0, goerr.Wrap(ErrInvalidArguments, "argument must be a number",
		goerr.V("key", key), goerr.V("value", v))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// finite rejects NaN and ±Inf, which ParseFloat accepts.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func boolArg(args map[string]any, key string, def bool) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}

	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err == nil {
			return parsed, nil
		}
	}
	return false, goerr.Wrap(ErrInvalidArguments, "argument must be a boolean",
		goerr.V("key", key), goerr.V("value", v))
}

func sortRecent(events []*model.SeismicEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.After(events[j].Time)
		}
		return events[i].Magnitude > events[j].Magnitude
	})
}
