package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
)

// InProcess answers every operation by calling the catalog directly.
type InProcess struct {
	catalog *catalog.Catalog
	lc      Lifecycle
	mu      sync.Mutex
}

var _ Bridge = (*InProcess)(nil)

func NewInProcess(c *catalog.Catalog) *InProcess {
	return &InProcess{catalog: c}
}

func (b *InProcess) Transport() string { return "inprocess" }
func (b *InProcess) State() State      { return b.lc.State() }
func (b *InProcess) LastError() error  { return b.lc.LastError() }

func (b *InProcess) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	proceed, err := b.lc.BeginStart()
	if !proceed {
		return err
	}
	if b.catalog == nil {
		return b.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "catalog is not configured"))
	}
	return b.lc.Transition(StateReady)
}

func (b *InProcess) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.lc.State() {
	case StateUninitialized, StateReady:
		return b.lc.Transition(StateStopped)
	}
	return nil
}

func (b *InProcess) ListResources(ctx context.Context) []model.ResourceDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.degrade(ctx, err, "method", MethodResourcesList)
		return []model.ResourceDescriptor{}
	}
	return b.catalog.Resources()
}

func (b *InProcess) ReadResource(ctx context.Context, id model.ResourceID) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.degrade(ctx, err, "method", MethodResourcesRead, "uri", id.String())
		return "", false
	}

	text, ok, err := b.catalog.Read(ctx, id)
	if err != nil {
		b.degrade(ctx, err, "method", MethodResourcesRead, "uri", id.String())
		return "", false
	}
	return text, ok
}

func (b *InProcess) ListTools(ctx context.Context) []model.ToolDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.degrade(ctx, err, "method", MethodToolsList)
		return []model.ToolDescriptor{}
	}
	return b.catalog.Tools()
}

func (b *InProcess) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.lc.Usable(); err != nil {
		b.lc.Record(err)
		return "", err
	}

	text, err := b.catalog.Call(ctx, name, args)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownTool):
			err = goerr.Wrap(ErrUnknownTool, "tool call failed", goerr.V("tool", name), goerr.V("cause", err))
		case errors.Is(err, catalog.ErrInvalidArguments):
			// same shape the worker produces for invalid arguments
			remote := &RemoteError{Code: CodeInvalidParams, Message: err.Error()}
			remote.Raw = mustJSON(ErrorObject{Code: remote.Code, Message: remote.Message})
			err = goerr.Wrap(remote, "tool call failed", goerr.V("tool", name))
		default:
			err = goerr.Wrap(err, "tool call failed", goerr.V("tool", name))
		}
		b.lc.Record(err)
		return "", err
	}
	return text, nil
}

func (b *InProcess) degrade(ctx context.Context, err error, attrs ...any) {
	b.lc.Record(err)
	logging.From(ctx).Warn("bridge operation degraded", append(attrs, "transport", b.Transport(), "error", err)...)
}
