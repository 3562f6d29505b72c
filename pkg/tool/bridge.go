package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"google.golang.org/genai"
)

// ReadResourceName is the function that reads bridge resources.
const ReadResourceName = "read_resource"

// BridgeTools exposes bridge tools and resources to Gemini function calling
type BridgeTools struct {
	bridge    bridge.Bridge
	resources []model.ResourceDescriptor
	decls     []*genai.FunctionDeclaration
	names     map[string]bool
}

var _ Tool = (*BridgeTools)(nil)

// NewBridgeTools snapshots the descriptors advertised by b. The bridge must
// already be started.
func NewBridgeTools(ctx context.Context, b bridge.Bridge) (*BridgeTools, error) {
	t := &BridgeTools{
		bridge:    b,
		resources: b.ListResources(ctx),
		names:     make(map[string]bool),
	}

	for _, d := range b.ListTools(ctx) {
		decl, err := convertToFunctionDeclaration(d)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert tool", goerr.V("tool", d.Name))
		}
		t.decls = append(t.decls, decl)
		t.names[d.Name] = true
	}

	if len(t.resources) > 0 {
		t.decls = append(t.decls, t.readResourceDecl())
	}

	return t, nil
}

func convertToFunctionDeclaration(d model.ToolDescriptor) (*genai.FunctionDeclaration, error) {
	funcDecl := &genai.FunctionDeclaration{
		Name:        d.Name,
		Description: d.Description,
	}

	if d.InputSchema != nil {
		// the descriptor carries a decoded map, so round trip it into a typed schema
		schemaJSON, err := json.Marshal(d.InputSchema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal input schema")
		}

		var jsSchema jsonschema.Schema
		if err := json.Unmarshal(schemaJSON, &jsSchema); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal input schema")
		}

		schema, err := convertJSONSchemaToGenai(&jsSchema)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert input schema")
		}
		funcDecl.Parameters = schema
	}

	return funcDecl, nil
}

func (t *BridgeTools) readResourceDecl() *genai.FunctionDeclaration {
	var lines []string
	for _, r := range t.resources {
		lines = append(lines, "- "+r.URI+": "+r.Description)
	}

	return &genai.FunctionDeclaration{
		Name: ReadResourceName,
		Description: "Read a data resource. Query parameters may be appended, for example " +
			"earthquakes/recent?days=3&min_mag=2.5. Available resources:\n" + strings.Join(lines, "\n"),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"uri": {
					Type:        genai.TypeString,
					Description: "Resource path with optional query string",
				},
			},
			Required: []string{"uri"},
		},
	}
}

func (t *BridgeTools) Spec() *genai.Tool {
	if len(t.decls) == 0 {
		return nil
	}
	return &genai.Tool{FunctionDeclarations: t.decls}
}

func (t *BridgeTools) Prompt(ctx context.Context) string {
	if len(t.decls) == 0 {
		return ""
	}
	return "You can look up earthquake and homeowner data through the provided functions. " +
		"Always base numbers in your answer on function results."
}

// Execute calls the bridge. Remote tool failures are returned to the model as
// an error response so it can correct its arguments.
func (t *BridgeTools) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	if fc.Name == ReadResourceName {
		return t.readResource(ctx, fc)
	}
	if !t.names[fc.Name] {
		return nil, goerr.Wrap(ErrToolNotFound, "bridge does not provide the tool", goerr.V("name", fc.Name))
	}

	text, err := t.bridge.CallTool(ctx, fc.Name, fc.Args)
	if err != nil {
		var remote *bridge.RemoteError
		if errors.As(err, &remote) {
			logging.From(ctx).Warn("tool returned error", "tool", fc.Name, "error", err)
			return response(fc, map[string]any{"error": remote.Message}), nil
		}
		return nil, goerr.Wrap(err, "failed to call bridge tool", goerr.V("tool", fc.Name))
	}

	return response(fc, map[string]any{"result": text}), nil
}

func (t *BridgeTools) readResource(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	uri, _ := fc.Args["uri"].(string)
	if uri == "" {
		return response(fc, map[string]any{"error": "uri is required"}), nil
	}

	text, ok := t.bridge.ReadResource(ctx, bridge.ParseResourceID(uri))
	if !ok {
		return response(fc, map[string]any{"error": "resource not available: " + uri}), nil
	}
	return response(fc, map[string]any{"result": text}), nil
}

func response(fc genai.FunctionCall, body map[string]any) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: body,
	}
}
