package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
)

const (
	DefaultSettle      = 2 * time.Second
	DefaultStopTimeout = 3 * time.Second

	stderrLimit = 64 * 1024
)

type PipeConfig struct {
	// Command is the worker executable followed by its arguments.
	Command []string
	Env     []string
	Dir     string

	// Settle is how long Start waits before checking the worker is alive.
	Settle time.Duration

	// CallTimeout bounds each round trip. Zero waits until the worker
	// answers or the stream ends. A timed out call kills the worker since
	// the stream can no longer be matched to requests.
	CallTimeout time.Duration

	// StopTimeout bounds how long Stop waits after closing stdin before it
	// kills the worker.
	StopTimeout time.Duration
}

// Pipe talks to a child worker with one JSON-RPC line per request over the
// worker's stdin and stdout.
type Pipe struct {
	cfg PipeConfig
	lc  Lifecycle

	// lifeMu guards Start and Stop, callMu serializes round trips.
	lifeMu sync.Mutex
	callMu sync.Mutex

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan []byte
	done    chan struct{}
	quit    chan struct{}
	waitErr error
	stderr  *tailBuffer
	nextID  int64
}

var _ Bridge = (*Pipe)(nil)

func NewPipe(cfg PipeConfig) *Pipe {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Pipe{cfg: cfg}
}

func (p *Pipe) Transport() string { return "pipe" }
func (p *Pipe) State() State      { return p.lc.State() }
func (p *Pipe) LastError() error  { return p.lc.LastError() }

// Start spawns the worker, waits the settle period and fails when the
// worker is no longer running. Captured stderr is attached to the error.
func (p *Pipe) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	proceed, err := p.lc.BeginStart()
	if !proceed {
		return err
	}

	if len(p.cfg.Command) == 0 {
		return p.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "worker command is empty"))
	}

	cmd := exec.Command(p.cfg.Command[0], p.cfg.Command[1:]...)
	cmd.Dir = p.cfg.Dir
	if p.cfg.Env != nil {
		cmd.Env = p.cfg.Env
	}
	cmd.WaitDelay = p.cfg.StopTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return p.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "failed to open worker stdin", goerr.V("cause", err)))
	}

	// os.Pipe instead of StdoutPipe: the reader must be able to drain the
	// stream while Wait runs concurrently.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return p.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "failed to open worker stdout", goerr.V("cause", err)))
	}
	cmd.Stdout = stdoutW

	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return p.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "failed to spawn worker",
			goerr.V("command", p.cfg.Command),
			goerr.V("cause", err)))
	}
	_ = stdoutW.Close()

	p.cmd = cmd
	p.stdin = stdin
	p.stderr = stderr
	p.lines = make(chan []byte)
	p.done = make(chan struct{})
	p.quit = make(chan struct{})

	go p.readLines(stdoutR)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	logger := logging.From(ctx)
	logger.Debug("worker spawned", "command", p.cfg.Command, "pid", cmd.Process.Pid)

	timer := time.NewTimer(p.cfg.Settle)
	defer timer.Stop()

	select {
	case <-p.done:
		p.abandon()
		return p.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "worker exited during startup",
			goerr.V("command", p.cfg.Command),
			goerr.V("exit", errString(p.waitErr)),
			goerr.V("stderr", p.stderr.String())))

	case <-ctx.Done():
		p.abandon()
		return p.lc.Fail(goerr.Wrap(ErrTransportUnavailable, "start canceled",
			goerr.V("cause", ctx.Err())))

	case <-timer.C:
	}

	if err := p.lc.Transition(StateReady); err != nil {
		p.abandon()
		return err
	}
	logger.Info("worker ready", "pid", cmd.Process.Pid)
	return nil
}

// Stop closes the worker's stdin, waits up to StopTimeout for it to exit and
// kills it otherwise.
func (p *Pipe) Stop() error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	switch p.lc.State() {
	case StateStopped, StateFailed:
		return nil
	case StateUninitialized:
		return p.lc.Transition(StateStopped)
	}

	if err := p.lc.Transition(StateStopped); err != nil {
		return err
	}

	close(p.quit)
	_ = p.stdin.Close()

	timer := time.NewTimer(p.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	p.kill()
	select {
	case <-p.done:
	case <-time.After(p.cfg.StopTimeout):
		return goerr.New("worker did not exit after kill", goerr.V("pid", p.cmd.Process.Pid))
	}
	return nil
}

func (p *Pipe) kill() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// fail moves a ready pipe to failed after an abandoned round trip and tears
// the worker down. Replies it flushed before dying are dropped with the
// reader. When a concurrent Stop won the transition, Stop does the cleanup.
func (p *Pipe) fail(err error) {
	p.lc.Record(err)
	if p.lc.Transition(StateFailed) == nil {
		p.abandon()
	}
}

// abandon kills the worker and releases the reader.
func (p *Pipe) abandon() {
	p.kill()
	close(p.quit)
}

func (p *Pipe) readLines(r io.ReadCloser) {
	defer close(p.lines)
	defer r.Close()

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			select {
			case p.lines <- trimmed:
			case <-p.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// call performs one round trip and returns the result field.
func (p *Pipe) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p.callMu.Lock()
	defer p.callMu.Unlock()

	if err := p.lc.Usable(); err != nil {
		return nil, err
	}

	p.nextID++
	id := p.nextID

	req := Request{JSONRPC: jsonRPCVersion, ID: &id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal params", goerr.V("method", method))
		}
		req.Params = raw
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal request", goerr.V("method", method))
	}

	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		return nil, goerr.Wrap(ErrNoResponse, "failed to write request",
			goerr.V("method", method),
			goerr.V("cause", err),
			goerr.V("stderr", p.stderr.String()))
	}

	var timeout <-chan time.Time
	if p.cfg.CallTimeout > 0 {
		timer := time.NewTimer(p.cfg.CallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case raw, ok := <-p.lines:
			if !ok {
				return nil, goerr.Wrap(ErrNoResponse, "worker closed its output",
					goerr.V("method", method),
					goerr.V("id", id),
					goerr.V("stderr", p.stderr.String()))
			}

			var resp Response
			if err := json.Unmarshal(raw, &resp); err != nil {
				return nil, goerr.Wrap(ErrMalformedResponse, "response is not JSON",
					goerr.V("method", method),
					goerr.V("line", string(raw)))
			}
			if resp.ID == nil && resp.Method != "" {
				// notification
				continue
			}
			if resp.ID == nil || *resp.ID != id {
				return nil, goerr.Wrap(ErrMalformedResponse, "response id does not match request",
					goerr.V("method", method),
					goerr.V("id", id),
					goerr.V("line", string(raw)))
			}

			// any error member fails the call, "error": null included
			if resp.Error != nil {
				return nil, goerr.Wrap(newRemoteError(resp.Error), "worker returned error",
					goerr.V("method", method),
					goerr.V("id", id))
			}
			return resp.Result, nil

		case <-timeout:
			err := goerr.Wrap(ErrCallTimeout, "worker did not answer in time",
				goerr.V("method", method),
				goerr.V("timeout", p.cfg.CallTimeout.String()))
			p.fail(err)
			return nil, err

		case <-ctx.Done():
			err := goerr.Wrap(ctx.Err(), "call canceled", goerr.V("method", method))
			p.fail(err)
			return nil, err
		}
	}
}

func (p *Pipe) ListResources(ctx context.Context) []model.ResourceDescriptor {
	raw, err := p.call(ctx, MethodResourcesList, nil)
	if err != nil {
		p.degrade(ctx, err, "method", MethodResourcesList)
		return []model.ResourceDescriptor{}
	}

	var result ResourcesListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		p.degrade(ctx, goerr.Wrap(ErrMalformedResponse, "invalid resources/list result", goerr.V("cause", err)),
			"method", MethodResourcesList)
		return []model.ResourceDescriptor{}
	}
	if result.Resources == nil {
		return []model.ResourceDescriptor{}
	}
	return result.Resources
}

func (p *Pipe) ReadResource(ctx context.Context, id model.ResourceID) (string, bool) {
	raw, err := p.call(ctx, MethodResourcesRead, ReadParams{URI: id.String()})
	if err != nil {
		p.degrade(ctx, err, "method", MethodResourcesRead, "uri", id.String())
		return "", false
	}

	var result ResourcesReadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		p.degrade(ctx, goerr.Wrap(ErrMalformedResponse, "invalid resources/read result", goerr.V("cause", err)),
			"method", MethodResourcesRead, "uri", id.String())
		return "", false
	}
	if len(result.Contents) == 0 {
		return "", false
	}
	return result.Contents[0].Text, true
}

func (p *Pipe) ListTools(ctx context.Context) []model.ToolDescriptor {
	raw, err := p.call(ctx, MethodToolsList, nil)
	if err != nil {
		p.degrade(ctx, err, "method", MethodToolsList)
		return []model.ToolDescriptor{}
	}

	var result ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		p.degrade(ctx, goerr.Wrap(ErrMalformedResponse, "invalid tools/list result", goerr.V("cause", err)),
			"method", MethodToolsList)
		return []model.ToolDescriptor{}
	}
	if result.Tools == nil {
		return []model.ToolDescriptor{}
	}
	return result.Tools
}

// CallTool returns the first text content of the result, or the whole
// serialized result when there is no content.
func (p *Pipe) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}

	raw, err := p.call(ctx, MethodToolsCall, CallParams{Name: name, Arguments: args})
	if err != nil {
		p.lc.Record(err)
		return "", goerr.Wrap(err, "tool call failed", goerr.V("tool", name))
	}

	var result ToolsCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		err = goerr.Wrap(ErrMalformedResponse, "invalid tools/call result", goerr.V("tool", name), goerr.V("cause", err))
		p.lc.Record(err)
		return "", err
	}
	if len(result.Content) == 0 {
		return string(raw), nil
	}
	return result.Content[0].Text, nil
}

func (p *Pipe) degrade(ctx context.Context, err error, attrs ...any) {
	p.lc.Record(err)
	logging.From(ctx).Warn("bridge operation degraded", append(attrs, "transport", p.Transport(), "error", err)...)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
