package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded by Instrument.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	state    *prometheus.GaugeVec
}

// NewMetrics creates and registers the bridge collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quakead",
			Subsystem: "bridge",
			Name:      "calls_total",
			Help:      "Bridge operations by transport, method and outcome",
		}, []string{"transport", "method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quakead",
			Subsystem: "bridge",
			Name:      "call_duration_seconds",
			Help:      "Latency of bridge operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "method"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quakead",
			Subsystem: "bridge",
			Name:      "state",
			Help:      "1 for the current state of the bridge",
		}, []string{"transport", "state"}),
	}

	for _, c := range []prometheus.Collector{m.calls, m.duration, m.state} {
		if err := reg.Register(c); err != nil {
			return nil, goerr.Wrap(err, "failed to register bridge metrics")
		}
	}
	return m, nil
}

// Instrument wraps b so every operation is counted and timed.
func Instrument(b Bridge, m *Metrics) Bridge {
	ib := &instrumented{Bridge: b, metrics: m}
	ib.observeState()
	return ib
}

type instrumented struct {
	Bridge
	metrics *Metrics
}

const (
	outcomeOK       = "ok"
	outcomeAbsent   = "absent"
	outcomeError    = "error"
	outcomeUnknown  = "unknown_tool"
	outcomeDegraded = "degraded"
)

func (b *instrumented) observe(method, outcome string, started time.Time) {
	transport := b.Transport()
	b.metrics.calls.WithLabelValues(transport, method, outcome).Inc()
	b.metrics.duration.WithLabelValues(transport, method).Observe(time.Since(started).Seconds())
	b.observeState()
}

func (b *instrumented) observeState() {
	current := b.State()
	for _, s := range []State{StateUninitialized, StateStarting, StateReady, StateFailed, StateStopped} {
		v := 0.0
		if s == current {
			v = 1
		}
		b.metrics.state.WithLabelValues(b.Transport(), s.String()).Set(v)
	}
}

func (b *instrumented) Start(ctx context.Context) error {
	defer b.observeState()
	return b.Bridge.Start(ctx)
}

func (b *instrumented) Stop() error {
	defer b.observeState()
	return b.Bridge.Stop()
}

func (b *instrumented) ListResources(ctx context.Context) []model.ResourceDescriptor {
	started := time.Now()
	before := b.LastError()
	resources := b.Bridge.ListResources(ctx)
	b.observe(MethodResourcesList, degradedOutcome(before, b.LastError()), started)
	return resources
}

func (b *instrumented) ReadResource(ctx context.Context, id model.ResourceID) (string, bool) {
	started := time.Now()
	before := b.LastError()
	text, ok := b.Bridge.ReadResource(ctx, id)

	outcome := outcomeOK
	if !ok {
		outcome = outcomeAbsent
		if degradedOutcome(before, b.LastError()) == outcomeDegraded {
			outcome = outcomeDegraded
		}
	}
	b.observe(MethodResourcesRead, outcome, started)
	return text, ok
}

func (b *instrumented) ListTools(ctx context.Context) []model.ToolDescriptor {
	started := time.Now()
	before := b.LastError()
	tools := b.Bridge.ListTools(ctx)
	b.observe(MethodToolsList, degradedOutcome(before, b.LastError()), started)
	return tools
}

func (b *instrumented) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	started := time.Now()
	text, err := b.Bridge.CallTool(ctx, name, args)

	outcome := outcomeOK
	switch {
	case errors.Is(err, ErrUnknownTool):
		outcome = outcomeUnknown
	case err != nil:
		outcome = outcomeError
	}
	b.observe(MethodToolsCall, outcome, started)
	return text, err
}

func degradedOutcome(before, after error) string {
	if after != nil && after != before {
		return outcomeDegraded
	}
	return outcomeOK
}
