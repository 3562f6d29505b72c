package bridge

import (
	"context"

	"github.com/m-mizutani/quakead/pkg/model"
)

// Bridge gives uniform access to resources and tools regardless of where the
// serving logic runs. List and read operations never fail: they degrade to
// an empty or absent result, log at Warn and keep the error for LastError.
// CallTool is the only operation that returns an error.
//
// Calls on one Bridge are serialized. A Bridge owns its transport until Stop
// is called; use Acquire and defer Stop on every path.
type Bridge interface {
	// Start acquires the transport. It is a no-op when already ready.
	Start(ctx context.Context) error

	// Stop releases the transport within a bounded time. Safe to call in any
	// state and more than once.
	Stop() error

	State() State
	LastError() error

	// Transport names the transport for logs and metrics.
	Transport() string

	ListResources(ctx context.Context) []model.ResourceDescriptor
	ReadResource(ctx context.Context, id model.ResourceID) (string, bool)
	ListTools(ctx context.Context) []model.ToolDescriptor
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// ParseResourceID parses a resource identifier such as
// "earthquakes/recent?days=3".
func ParseResourceID(s string) model.ResourceID {
	return model.ParseResourceID(s)
}
