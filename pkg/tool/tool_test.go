package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/tool"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"google.golang.org/genai"
)

func newBridge(t *testing.T) bridge.Bridge {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	store := repository.NewMemory()
	gt.NoError(t, store.PutEvents(ctx, []*model.SeismicEvent{
		{EventID: "ev1", Time: at, Latitude: 34.05, Longitude: -118.24, Magnitude: 6.0},
	}))
	gt.NoError(t, store.PutHouseholds(ctx, []*model.Household{
		{PersonID: "P10000", FirstName: "Jane", LastName: "Doe", Latitude: 34.14, Longitude: -118.24, HouseValue: 600000},
	}))

	c, err := catalog.New(store, catalog.WithClock(func() time.Time { return at }))
	gt.NoError(t, err)

	b := bridge.NewInProcess(c)
	gt.NoError(t, b.Start(ctx))
	t.Cleanup(func() { _ = b.Stop() })
	return b
}

func TestBridgeToolsSpec(t *testing.T) {
	tools, err := tool.NewBridgeTools(context.Background(), newBridge(t))
	gt.NoError(t, err)

	spec := tools.Spec()
	gt.NotNil(t, spec)
	gt.A(t, spec.FunctionDeclarations).Length(2)

	find := spec.FunctionDeclarations[0]
	gt.Equal(t, find.Name, catalog.ToolFindTargets)
	gt.Equal(t, find.Parameters.Type, genai.TypeObject)
	gt.Map(t, find.Parameters.Properties).HasKey("min_magnitude")
	gt.Equal(t, find.Parameters.Properties["min_magnitude"].Type, genai.TypeNumber)
	gt.Equal(t, find.Parameters.Properties["require_uninsured"].Default, any(true))

	read := spec.FunctionDeclarations[1]
	gt.Equal(t, read.Name, tool.ReadResourceName)
	gt.S(t, read.Description).Contains("targets/preview")
	gt.S(t, tools.Prompt(context.Background())).Contains("function")
}

func TestBridgeToolsExecute(t *testing.T) {
	ctx := context.Background()
	tools, err := tool.NewBridgeTools(ctx, newBridge(t))
	gt.NoError(t, err)
	registry := tool.New(tools)
	gt.Equal(t, registry.Names(), []string{catalog.ToolFindTargets, tool.ReadResourceName})

	t.Run("call tool", func(t *testing.T) {
		resp, err := registry.Execute(ctx, genai.FunctionCall{
			ID:   "call-1",
			Name: catalog.ToolFindTargets,
			Args: map[string]any{"min_magnitude": 5.0, "max_distance_km": 50.0},
		})
		gt.NoError(t, err)
		gt.Equal(t, resp.ID, "call-1")
		gt.Equal(t, resp.Name, catalog.ToolFindTargets)

		text, ok := resp.Response["result"].(string)
		gt.True(t, ok)
		var result model.TargetResult
		gt.NoError(t, json.Unmarshal([]byte(text), &result))
		gt.Equal(t, result.Summary.TotalTargets, 1)
	})

	t.Run("invalid arguments are reported to the model", func(t *testing.T) {
		resp, err := registry.Execute(ctx, genai.FunctionCall{
			Name: catalog.ToolFindTargets,
			Args: map[string]any{"min_magnitude": "strong"},
		})
		gt.NoError(t, err)
		gt.Map(t, resp.Response).HasKey("error")
	})

	t.Run("read resource", func(t *testing.T) {
		resp, err := registry.Execute(ctx, genai.FunctionCall{
			Name: tool.ReadResourceName,
			Args: map[string]any{"uri": "stats/overview"},
		})
		gt.NoError(t, err)
		text, ok := resp.Response["result"].(string)
		gt.True(t, ok)
		gt.S(t, text).Contains("total_earthquakes")
	})

	t.Run("unknown resource", func(t *testing.T) {
		resp, err := registry.Execute(ctx, genai.FunctionCall{
			Name: tool.ReadResourceName,
			Args: map[string]any{"uri": "secrets/all"},
		})
		gt.NoError(t, err)
		gt.Map(t, resp.Response).HasKey("error")
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := registry.Execute(ctx, genai.FunctionCall{Name: "drop_tables"})
		gt.True(t, errors.Is(err, tool.ErrToolNotFound))
	})
}

func TestBridgeToolsOnStoppedBridge(t *testing.T) {
	ctx := context.Background()
	b := newBridge(t)
	gt.NoError(t, b.Stop())

	tools, err := tool.NewBridgeTools(ctx, b)
	gt.NoError(t, err)
	gt.True(t, tools.Spec() == nil)
	gt.Equal(t, tools.Prompt(ctx), "")
}

func TestConvertJSONSchemaToGenai(t *testing.T) {
	min := 0.0
	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":  {Type: "string", Enum: []any{"a", "b"}},
			"count": {Type: "integer", Minimum: &min, Default: json.RawMessage("3")},
			"tags":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"note":  {Types: []string{"string", "null"}},
		},
		Required: []string{"name"},
	}

	out, err := tool.ConvertJSONSchemaToGenai(schema)
	gt.NoError(t, err)
	gt.Equal(t, out.Type, genai.TypeObject)
	gt.Equal(t, out.Required, []string{"name"})
	gt.Equal(t, out.Properties["name"].Enum, []string{"a", "b"})
	gt.Equal(t, out.Properties["count"].Type, genai.TypeInteger)
	gt.Equal(t, *out.Properties["count"].Minimum, 0.0)
	gt.Equal(t, out.Properties["count"].Default, any(3.0))
	gt.Equal(t, out.Properties["tags"].Items.Type, genai.TypeString)
	gt.Equal(t, out.Properties["note"].Type, genai.TypeString)
	gt.True(t, *out.Properties["note"].Nullable)

	_, err = tool.ConvertJSONSchemaToGenai(&jsonschema.Schema{Type: "tuple"})
	gt.Error(t, err)
}
