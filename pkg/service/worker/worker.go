package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
)

const (
	ServerName    = "quakead-worker"
	ServerVersion = "0.1.0"

	protocolVersion = "2024-11-05"
)

// Serve reads one JSON-RPC request per line from r and writes one response
// line to w for every request that carries an id. It returns nil when r is
// exhausted. Nothing but responses is ever written to w.
func Serve(ctx context.Context, r io.Reader, w io.Writer, c *catalog.Catalog) error {
	logger := logging.From(ctx)
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, readErr := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if resp := handleLine(ctx, c, trimmed); resp != nil {
				if err := writeResponse(bw, resp); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				logger.Debug("worker input closed")
				return nil
			}
			return goerr.Wrap(readErr, "failed to read request")
		}
	}
}

func writeResponse(w *bufio.Writer, resp *bridge.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal response")
	}
	if _, err := w.Write(append(raw, '\n')); err != nil {
		return goerr.Wrap(err, "failed to write response")
	}
	if err := w.Flush(); err != nil {
		return goerr.Wrap(err, "failed to flush response")
	}
	return nil
}

func handleLine(ctx context.Context, c *catalog.Catalog, line []byte) *bridge.Response {
	logger := logging.From(ctx)

	var req bridge.Request
	if err := json.Unmarshal(line, &req); err != nil {
		logger.Warn("unable to parse request", "error", err)
		return errorResponse(nil, bridge.CodeParseError, "Parse error", nil)
	}

	if req.ID == nil {
		logger.Debug("notification ignored", "method", req.Method)
		return nil
	}

	resp := handleRequest(ctx, c, &req)
	if resp.Error != nil {
		logger.Warn("request failed", "method", req.Method, "id", *req.ID, "error", string(resp.Error))
	}
	return resp
}

func handleRequest(ctx context.Context, c *catalog.Catalog, req *bridge.Request) *bridge.Response {
	switch req.Method {
	case "initialize":
		return result(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"resources": map[string]any{},
				"tools":     map[string]any{},
			},
			"serverInfo": map[string]string{
				"name":    ServerName,
				"version": ServerVersion,
			},
		})

	case "ping":
		return result(req.ID, map[string]any{})

	case bridge.MethodResourcesList:
		return result(req.ID, bridge.ResourcesListResult{Resources: c.Resources()})

	case bridge.MethodResourcesRead:
		return handleRead(ctx, c, req)

	case bridge.MethodToolsList:
		return result(req.ID, bridge.ToolsListResult{Tools: c.Tools()})

	case bridge.MethodToolsCall:
		return handleCall(ctx, c, req)

	default:
		return errorResponse(req.ID, bridge.CodeMethodNotFound, "Method not found", nil)
	}
}

func handleRead(ctx context.Context, c *catalog.Catalog, req *bridge.Request) *bridge.Response {
	var params bridge.ReadParams
	if err := decodeParams(req.Params, &params); err != nil || params.URI == "" {
		return errorResponse(req.ID, bridge.CodeInvalidParams, "uri is required", nil)
	}

	text, ok, err := c.Read(ctx, model.ParseResourceID(params.URI))
	if err != nil {
		code := bridge.CodeInternalError
		if errors.Is(err, catalog.ErrInvalidParameter) {
			code = bridge.CodeInvalidParams
		}
		return errorResponse(req.ID, code, err.Error(), nil)
	}

	contents := []bridge.TextContent{}
	if ok {
		contents = append(contents, bridge.TextContent{Type: "text", Text: text})
	}
	return result(req.ID, bridge.ResourcesReadResult{Contents: contents})
}

func handleCall(ctx context.Context, c *catalog.Catalog, req *bridge.Request) *bridge.Response {
	var params bridge.CallParams
	if err := decodeParams(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, bridge.CodeInvalidParams, "name is required", nil)
	}

	text, err := c.Call(ctx, params.Name, params.Arguments)
	switch {
	case errors.Is(err, catalog.ErrUnknownTool):
		return errorResponse(req.ID, bridge.CodeUnknownTool, "Unknown tool: "+params.Name,
			mustJSON(map[string]string{"tool": params.Name}))
	case errors.Is(err, catalog.ErrInvalidArguments):
		return errorResponse(req.ID, bridge.CodeInvalidParams, err.Error(), nil)
	case err != nil:
		return errorResponse(req.ID, bridge.CodeInternalError, err.Error(), nil)
	}

	return result(req.ID, bridge.ToolsCallResult{
		Content: []bridge.TextContent{{Type: "text", Text: text}},
	})
}

// decodeParams keeps numbers as json.Number so integer arguments are not
// silently turned into floats before the tool sees them.
func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return goerr.New("params are missing")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func result(id *int64, v any) *bridge.Response {
	return &bridge.Response{JSONRPC: "2.0", ID: id, Result: mustJSON(v)}
}

func errorResponse(id *int64, code int, message string, data json.RawMessage) *bridge.Response {
	return &bridge.Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: mustJSON(bridge.ErrorObject{
			Code:    code,
			Message: message,
			Data:    data,
		}),
	}
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
