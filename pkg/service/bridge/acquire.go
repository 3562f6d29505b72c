package bridge

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
)

// Factory builds a bridge that has not been started yet. Returning an error
// means the transport cannot even be constructed.
type Factory func(ctx context.Context) (Bridge, error)

// Acquire tries each factory in order and returns the first bridge whose
// Start succeeds. Bridges that fail to start are stopped before the next one
// is tried. The choice is final for the lifetime of the returned bridge.
func Acquire(ctx context.Context, factories ...Factory) (Bridge, error) {
	logger := logging.From(ctx)

	var lastErr error
	for i, factory := range factories {
		b, err := factory(ctx)
		if err != nil {
			logger.Warn("bridge transport cannot be constructed", "index", i, "error", err)
			lastErr = err
			continue
		}

		if err := b.Start(ctx); err != nil {
			logger.Warn("bridge transport failed to start, falling back",
				"transport", b.Transport(),
				"error", err)
			_ = b.Stop()
			lastErr = err
			continue
		}

		logger.Info("bridge acquired", "transport", b.Transport())
		return b, nil
	}

	if lastErr == nil {
		lastErr = goerr.New("no bridge factory given")
	}
	return nil, goerr.Wrap(ErrTransportUnavailable, "every bridge transport failed", goerr.V("cause", lastErr))
}

// Static wraps an already built bridge as a Factory.
func Static(b Bridge) Factory {
	return func(ctx context.Context) (Bridge, error) {
		return b, nil
	}
}
