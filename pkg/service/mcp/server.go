package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "quakead"
	ServerVersion = "0.1.0"

	// URIScheme prefixes catalog paths to form MCP resource URIs.
	URIScheme = "quake://"
)

// ResourceURI converts a catalog resource identifier to an MCP URI.
func ResourceURI(id model.ResourceID) string {
	return URIScheme + id.String()
}

// ParseResourceURI converts an MCP URI back to a catalog identifier.
func ParseResourceURI(uri string) (model.ResourceID, bool) {
	rest, ok := strings.CutPrefix(uri, URIScheme)
	if !ok {
		return model.ResourceID{}, false
	}
	return model.ParseResourceID(rest), true
}

// NewServer exposes the catalog as an MCP server. Plain resource URIs are
// registered as resources; query forms are served through a catch-all
// template.
func NewServer(c *catalog.Catalog) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	read := readHandler(c)
	for _, r := range c.Resources() {
		server.AddResource(&mcp.Resource{
			URI:         URIScheme + r.URI,
			Name:        r.URI,
			Title:       r.Name,
			Description: r.Description,
			MIMEType:    "application/json",
		}, read)
	}
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: URIScheme + "{+resource}",
		Name:        "query",
		Title:       "Resource query",
		Description: "Any catalog resource with query parameters, e.g. quake://earthquakes/recent?days=3&min_mag=2.5",
		MIMEType:    "application/json",
	}, read)

	for _, t := range c.Tools() {
		server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, callHandler(c, t.Name))
	}

	return server
}

func readHandler(c *catalog.Catalog) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		id, ok := ParseResourceURI(uri)
		if !ok {
			return nil, mcp.ResourceNotFoundError(uri)
		}

		text, found, err := c.Read(ctx, id)
		if err != nil {
			logging.From(ctx).Warn("failed to read resource", "uri", uri, "error", err)
			return nil, err
		}
		if !found {
			return nil, mcp.ResourceNotFoundError(uri)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: "application/json", Text: text},
			},
		}, nil
	}
}

func callHandler(c *catalog.Catalog, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&args); err != nil {
				return toolError("arguments must be a JSON object"), nil
			}
		}

		text, err := c.Call(ctx, name, args)
		if err != nil {
			logging.From(ctx).Warn("tool call failed", "tool", name, "error", err)
			if errors.Is(err, catalog.ErrInvalidArguments) || errors.Is(err, catalog.ErrUnknownTool) {
				return toolError(err.Error()), nil
			}
			return nil, goerr.Wrap(err, "tool call failed", goerr.V("tool", name))
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

// RunStdio serves s on the process's stdin and stdout until the client
// disconnects or ctx is canceled.
func RunStdio(ctx context.Context, s *mcp.Server) error {
	if err := s.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp stdio server failed")
	}
	return nil
}

// HTTPHandler serves s over the streamable HTTP transport.
func HTTPHandler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s
	}, nil)
}
