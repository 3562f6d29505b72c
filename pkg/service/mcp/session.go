package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransportFactory creates the client transport for one session.
type TransportFactory func(ctx context.Context) (mcp.Transport, error)

// SessionBridge implements bridge.Bridge on top of an MCP client session.
type SessionBridge struct {
	factory     TransportFactory
	stopTimeout time.Duration
	lc          bridge.Lifecycle

	lifeMu sync.Mutex
	callMu sync.Mutex

	session   *mcp.ClientSession
	resources map[string]bool
	tools     map[string]bool
}

var _ bridge.Bridge = (*SessionBridge)(nil)

func NewSessionBridge(factory TransportFactory) *SessionBridge {
	return &SessionBridge{
		factory:     factory,
		stopTimeout: bridge.DefaultStopTimeout,
	}
}

func (b *SessionBridge) Transport() string   { return "mcp" }
func (b *SessionBridge) State() bridge.State { return b.lc.State() }
func (b *SessionBridge) LastError() error    { return b.lc.LastError() }

// SetStopTimeout bounds how long Stop waits for the session to close.
func (b *SessionBridge) SetStopTimeout(d time.Duration) {
	b.stopTimeout = d
}

// Start connects the session and caches the advertised resource paths and
// tool names so unknown names can be answered without a round trip.
func (b *SessionBridge) Start(ctx context.Context) error {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	proceed, err := b.lc.BeginStart()
	if !proceed {
		return err
	}

	transport, err := b.factory(ctx)
	if err != nil {
		return b.lc.Fail(goerr.Wrap(bridge.ErrTransportUnavailable, "failed to create transport", goerr.V("cause", err)))
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    ServerName + "-client",
		Version: ServerVersion,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return b.lc.Fail(goerr.Wrap(bridge.ErrTransportUnavailable, "failed to connect to MCP server", goerr.V("cause", err)))
	}

	resources, err := session.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		_ = session.Close()
		return b.lc.Fail(goerr.Wrap(bridge.ErrTransportUnavailable, "failed to list resources", goerr.V("cause", err)))
	}
	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		_ = session.Close()
		return b.lc.Fail(goerr.Wrap(bridge.ErrTransportUnavailable, "failed to list tools", goerr.V("cause", err)))
	}

	b.session = session
	b.resources = make(map[string]bool)
	for _, r := range resources.Resources {
		if id, ok := ParseResourceURI(r.URI); ok {
			b.resources[id.Path] = true
		}
	}
	b.tools = make(map[string]bool)
	for _, t := range tools.Tools {
		b.tools[t.Name] = true
	}

	if err := b.lc.Transition(bridge.StateReady); err != nil {
		_ = session.Close()
		return err
	}
	logging.From(ctx).Info("mcp session ready", "resources", len(b.resources), "tools", len(b.tools))
	return nil
}

// Stop closes the session, giving up after the stop timeout.
func (b *SessionBridge) Stop() error {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()

	switch b.lc.State() {
	case bridge.StateStopped, bridge.StateFailed:
		return nil
	case bridge.StateUninitialized:
		return b.lc.Transition(bridge.StateStopped)
	}

	if err := b.lc.Transition(bridge.StateStopped); err != nil {
		return err
	}

	closed := make(chan error, 1)
	go func() { closed <- b.session.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			return goerr.Wrap(err, "failed to close mcp session")
		}
		return nil
	case <-time.After(b.stopTimeout):
		return goerr.New("mcp session did not close in time", goerr.V("timeout", b.stopTimeout.String()))
	}
}

func (b *SessionBridge) ListResources(ctx context.Context) []model.ResourceDescriptor {
	b.callMu.Lock()
	defer b.callMu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.degrade(ctx, err, "method", bridge.MethodResourcesList)
		return []model.ResourceDescriptor{}
	}

	result, err := b.session.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		b.degrade(ctx, classify(err, "resources/list failed"),
			"method", bridge.MethodResourcesList)
		return []model.ResourceDescriptor{}
	}

	resources := make([]model.ResourceDescriptor, 0, len(result.Resources))
	for _, r := range result.Resources {
		id, ok := ParseResourceURI(r.URI)
		if !ok {
			continue
		}
		name := r.Title
		if name == "" {
			name = r.Name
		}
		resources = append(resources, model.ResourceDescriptor{
			URI:         id.String(),
			Name:        name,
			Description: r.Description,
		})
	}
	return resources
}

func (b *SessionBridge) ReadResource(ctx context.Context, id model.ResourceID) (string, bool) {
	b.callMu.Lock()
	defer b.callMu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.degrade(ctx, err, "method", bridge.MethodResourcesRead, "uri", id.String())
		return "", false
	}
	if !b.resources[id.Path] {
		return "", false
	}

	uri := ResourceURI(id)
	result, err := b.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		b.degrade(ctx, classify(err, "resources/read failed"),
			"method", bridge.MethodResourcesRead, "uri", uri)
		return "", false
	}
	if len(result.Contents) == 0 {
		return "", false
	}
	return result.Contents[0].Text, true
}

func (b *SessionBridge) ListTools(ctx context.Context) []model.ToolDescriptor {
	b.callMu.Lock()
	defer b.callMu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.degrade(ctx, err, "method", bridge.MethodToolsList)
		return []model.ToolDescriptor{}
	}

	result, err := b.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		b.degrade(ctx, classify(err, "tools/list failed"),
			"method", bridge.MethodToolsList)
		return []model.ToolDescriptor{}
	}

	tools := make([]model.ToolDescriptor, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, model.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaMap(t.InputSchema),
		})
	}
	return tools
}

func (b *SessionBridge) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	b.callMu.Lock()
	defer b.callMu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.lc.Record(err)
		return "", err
	}
	if !b.tools[name] {
		err := goerr.Wrap(bridge.ErrUnknownTool, "tool is not advertised by the server", goerr.V("tool", name))
		b.lc.Record(err)
		return "", err
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := b.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		err = classify(err, "tools/call failed", goerr.V("tool", name))
		b.lc.Record(err)
		return "", err
	}

	text := firstText(result.Content)
	if result.IsError {
		remote := &bridge.RemoteError{Message: text}
		if raw, mErr := json.Marshal(result.Content); mErr == nil {
			remote.Raw = raw
		}
		err := goerr.Wrap(remote, "tool returned error", goerr.V("tool", name))
		b.lc.Record(err)
		return "", err
	}

	if len(result.Content) == 0 {
		raw, err := json.Marshal(result)
		if err != nil {
			return "", goerr.Wrap(err, "failed to marshal tool result")
		}
		return string(raw), nil
	}
	return text, nil
}

// rpcError is the shape of a JSON-RPC error object decoded by the SDK.
type rpcError struct {
	Code    *int64          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// classify maps a failed SDK request onto the bridge errors. An error object
// answered by the server becomes a RemoteError. Anything else, such as a
// closed connection or EOF, means no response arrived.
func classify(err error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.V("cause", err))
	for e := err; e != nil; e = errors.Unwrap(e) {
		raw, mErr := json.Marshal(e)
		if mErr != nil {
			continue
		}
		var wire rpcError
		if json.Unmarshal(raw, &wire) != nil || wire.Code == nil {
			continue
		}
		remote := &bridge.RemoteError{
			Code:    int(*wire.Code),
			Message: wire.Message,
			Data:    wire.Data,
			Raw:     raw,
		}
		return goerr.Wrap(remote, msg, opts...)
	}
	return goerr.Wrap(bridge.ErrNoResponse, msg, opts...)
}

func (b *SessionBridge) degrade(ctx context.Context, err error, attrs ...any) {
	b.lc.Record(err)
	logging.From(ctx).Warn("bridge operation degraded", append(attrs, "transport", b.Transport(), "error", err)...)
}

func firstText(contents []mcp.Content) string {
	for _, c := range contents {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func schemaMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
