package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
)

func TestPipeRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := startPipe(t, pipeConfig("serve"))
	gt.Equal(t, p.State(), bridge.StateReady)
	gt.Equal(t, p.Transport(), "pipe")

	resources := p.ListResources(ctx)
	gt.A(t, resources).Length(3)
	gt.Equal(t, resources[0].URI, "stats/overview")

	tools := p.ListTools(ctx)
	gt.A(t, tools).Length(1)
	gt.Equal(t, tools[0].Name, "find_targets")
	gt.Equal(t, tools[0].InputSchema["type"], any("object"))

	text, ok := p.ReadResource(ctx, bridge.ParseResourceID("stats/overview"))
	gt.True(t, ok)
	var stats model.Stats
	gt.NoError(t, json.Unmarshal([]byte(text), &stats))
	gt.Equal(t, stats.DemographicStats.TotalPeople, 2)

	out, err := p.CallTool(ctx, "find_targets", map[string]any{
		"min_magnitude":     5.0,
		"max_distance_km":   50,
		"min_house_value":   500000,
		"require_uninsured": true,
	})
	gt.NoError(t, err)

	var result model.TargetResult
	gt.NoError(t, json.Unmarshal([]byte(out), &result))
	gt.A(t, result.Targets).Length(1)
	gt.Equal(t, result.Targets[0].Person.PersonID, model.PersonID("P10000"))
	gt.Equal(t, result.Targets[0].RiskLevel, model.RiskHigh)
	gt.Equal(t, result.Summary.HighRiskTargets, 1)
	gt.True(t, p.LastError() == nil)
}

func TestPipeStartIsIdempotent(t *testing.T) {
	p := startPipe(t, pipeConfig("serve"))
	gt.NoError(t, p.Start(context.Background()))
	gt.Equal(t, p.State(), bridge.StateReady)
}

func TestPipeUnknownResourceIsAbsent(t *testing.T) {
	p := startPipe(t, pipeConfig("serve"))

	text, ok := p.ReadResource(context.Background(), bridge.ParseResourceID("missing/resource?x=1"))
	gt.False(t, ok)
	gt.Equal(t, text, "")
	gt.True(t, p.LastError() == nil)
}

func TestPipeUnknownTool(t *testing.T) {
	p := startPipe(t, pipeConfig("serve"))

	_, err := p.CallTool(context.Background(), "launch_rockets", nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, bridge.ErrUnknownTool))
	gt.True(t, errors.Is(err, bridge.ErrRemote))

	var remote *bridge.RemoteError
	gt.True(t, errors.As(err, &remote))
	gt.Equal(t, remote.Code, bridge.CodeUnknownTool)
	gt.S(t, remote.Message).Contains("launch_rockets")
	gt.S(t, string(remote.Raw)).Contains(`"code":-32001`)

	// the worker is still usable afterwards
	_, ok := p.ReadResource(context.Background(), bridge.ParseResourceID("stats/overview"))
	gt.True(t, ok)
}

func TestPipeSkipsNotifications(t *testing.T) {
	p := startPipe(t, pipeConfig("notify-then-serve"))
	gt.A(t, p.ListTools(context.Background())).Length(1)
}

func TestPipeSequenceIDsIncrease(t *testing.T) {
	p := startPipe(t, pipeConfig("echo-id"))
	ctx := context.Background()

	for _, want := range []string{"1", "2", "3"} {
		got, err := p.CallTool(ctx, "anything", nil)
		gt.NoError(t, err)
		gt.Equal(t, got, want)
	}
}

func TestPipeCrashAtStart(t *testing.T) {
	p := bridge.NewPipe(pipeConfig("crash"))
	err := p.Start(context.Background())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, bridge.ErrTransportUnavailable))
	gt.Equal(t, p.State(), bridge.StateFailed)

	var gerr *goerr.Error
	gt.True(t, errors.As(err, &gerr))
	gt.S(t, gerr.Values()["stderr"].(string)).Contains("database is locked")

	// failed is terminal
	gt.True(t, errors.Is(p.Start(context.Background()), bridge.ErrTransportUnavailable))
	gt.NoError(t, p.Stop())
	gt.Equal(t, p.State(), bridge.StateFailed)
}

func TestPipeMissingExecutable(t *testing.T) {
	p := bridge.NewPipe(bridge.PipeConfig{Command: []string{"/nonexistent/quakead-worker"}})
	err := p.Start(context.Background())
	gt.True(t, errors.Is(err, bridge.ErrTransportUnavailable))
	gt.Equal(t, p.State(), bridge.StateFailed)

	p = bridge.NewPipe(bridge.PipeConfig{})
	gt.True(t, errors.Is(p.Start(context.Background()), bridge.ErrTransportUnavailable))
}

func TestPipeWorkerExitsBeforeResponding(t *testing.T) {
	p := startPipe(t, pipeConfig("exit-before-response"))

	_, err := p.CallTool(context.Background(), "find_targets", nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, bridge.ErrNoResponse))

	// degraded operations report the same failure without raising
	gt.A(t, p.ListResources(context.Background())).Length(0)
	gt.True(t, errors.Is(p.LastError(), bridge.ErrNoResponse))

	_, ok := p.ReadResource(context.Background(), bridge.ParseResourceID("stats/overview"))
	gt.False(t, ok)
}

func TestPipeCallTimeout(t *testing.T) {
	cfg := pipeConfig("hang")
	cfg.CallTimeout = 300 * time.Millisecond
	p := startPipe(t, cfg)

	started := time.Now()
	_, err := p.CallTool(context.Background(), "find_targets", nil)
	gt.True(t, errors.Is(err, bridge.ErrCallTimeout))
	gt.True(t, time.Since(started) < 5*time.Second)

	// the worker was killed and the bridge is unusable from now on
	gt.Equal(t, p.State(), bridge.StateFailed)
	gt.True(t, errors.Is(p.LastError(), bridge.ErrCallTimeout))

	_, err = p.CallTool(context.Background(), "find_targets", nil)
	gt.True(t, errors.Is(err, bridge.ErrNotReady))
	gt.A(t, p.ListTools(context.Background())).Length(0)
	gt.NoError(t, p.Stop())
	gt.Equal(t, p.State(), bridge.StateFailed)
}

func TestPipeContextCancel(t *testing.T) {
	p := startPipe(t, pipeConfig("hang"))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := p.CallTool(ctx, "find_targets", nil)
	gt.True(t, errors.Is(err, context.DeadlineExceeded))
	gt.Equal(t, p.State(), bridge.StateFailed)

	_, err = p.CallTool(context.Background(), "find_targets", nil)
	gt.True(t, errors.Is(err, bridge.ErrNotReady))
}

func TestPipeNullErrorMemberFails(t *testing.T) {
	p := startPipe(t, pipeConfig("error-null"))

	_, err := p.CallTool(context.Background(), "find_targets", nil)
	var remote *bridge.RemoteError
	gt.True(t, errors.As(err, &remote))
	gt.Equal(t, string(remote.Raw), "null")
	gt.Equal(t, p.State(), bridge.StateReady)
}

func TestPipeMismatchedID(t *testing.T) {
	p := startPipe(t, pipeConfig("wrong-id"))

	_, err := p.CallTool(context.Background(), "find_targets", nil)
	gt.True(t, errors.Is(err, bridge.ErrMalformedResponse))
}

func TestPipeGarbageResponse(t *testing.T) {
	p := startPipe(t, pipeConfig("garbage"))

	gt.A(t, p.ListTools(context.Background())).Length(0)
	gt.True(t, errors.Is(p.LastError(), bridge.ErrMalformedResponse))
}

func TestPipeRemoteErrorKeptVerbatim(t *testing.T) {
	p := startPipe(t, pipeConfig("error-string"))

	_, err := p.CallTool(context.Background(), "find_targets", nil)
	var remote *bridge.RemoteError
	gt.True(t, errors.As(err, &remote))
	gt.Equal(t, string(remote.Raw), `"plain failure"`)
	gt.Equal(t, remote.Message, "plain failure")
	gt.False(t, errors.Is(err, bridge.ErrUnknownTool))
}

func TestPipeStop(t *testing.T) {
	p := bridge.NewPipe(pipeConfig("serve"))
	gt.NoError(t, p.Start(context.Background()))

	gt.NoError(t, p.Stop())
	gt.Equal(t, p.State(), bridge.StateStopped)
	gt.NoError(t, p.Stop())

	gt.True(t, errors.Is(p.Start(context.Background()), bridge.ErrStopped))

	_, err := p.CallTool(context.Background(), "find_targets", nil)
	gt.True(t, errors.Is(err, bridge.ErrStopped))
	gt.A(t, p.ListResources(context.Background())).Length(0)
	gt.True(t, errors.Is(p.LastError(), bridge.ErrStopped))
}

func TestPipeStopKillsStubbornWorker(t *testing.T) {
	cfg := pipeConfig("stubborn")
	cfg.StopTimeout = 200 * time.Millisecond
	p := bridge.NewPipe(cfg)
	gt.NoError(t, p.Start(context.Background()))

	started := time.Now()
	gt.NoError(t, p.Stop())
	gt.True(t, time.Since(started) < 3*time.Second)
	gt.Equal(t, p.State(), bridge.StateStopped)
}

func TestPipeStopBeforeStart(t *testing.T) {
	p := bridge.NewPipe(pipeConfig("serve"))
	gt.NoError(t, p.Stop())
	gt.Equal(t, p.State(), bridge.StateStopped)
	gt.True(t, errors.Is(p.Start(context.Background()), bridge.ErrStopped))
}
