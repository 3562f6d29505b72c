package bridge

import (
	"encoding/json"

	"github.com/m-mizutani/quakead/pkg/model"
)

// JSON-RPC envelope exchanged over the worker pipe, one object per line.

const jsonRPCVersion = "2.0"

const (
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
)

// Error codes used in error envelopes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnknownTool    = -32001
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ErrorObject is the conventional shape of the error field. Workers may send
// any JSON value there; RemoteError keeps the original bytes.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type ReadParams struct {
	URI string `json:"uri"`
}

type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type TextContent struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

type ResourcesListResult struct {
	Resources []model.ResourceDescriptor `json:"resources"`
}

type ResourcesReadResult struct {
	Contents []TextContent `json:"contents"`
}

type ToolsListResult struct {
	Tools []model.ToolDescriptor `json:"tools"`
}

type ToolsCallResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
