package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/service/mcp"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	transportPipe      = "pipe"
	transportMCP       = "mcp"
	transportInProcess = "inprocess"
)

// bridgeSettings is the layout of the --bridge-config file.
type bridgeSettings struct {
	Transport     string           `yaml:"transport"`
	WorkerCommand []string         `yaml:"worker_command"`
	Settle        time.Duration    `yaml:"settle"`
	CallTimeout   time.Duration    `yaml:"call_timeout"`
	StopTimeout   time.Duration    `yaml:"stop_timeout"`
	MCP           mcp.ClientConfig `yaml:"mcp"`
}

func loadBridgeSettings(path string) (*bridgeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read bridge config", goerr.V("path", path))
	}

	var settings bridgeSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, goerr.Wrap(err, "failed to parse bridge config", goerr.V("path", path))
	}
	return &settings, nil
}

// applyBridgeSettings fills cfg from the bridge config file for every flag
// the user did not set explicitly. It returns the MCP client config.
func (cfg *config) applyBridgeSettings(c *cli.Command) (mcp.ClientConfig, error) {
	var mcpCfg mcp.ClientConfig
	if cfg.bridgeConfig == "" {
		return mcpCfg, nil
	}

	settings, err := loadBridgeSettings(cfg.bridgeConfig)
	if err != nil {
		return mcpCfg, err
	}

	if settings.Transport != "" && !c.IsSet("transport") {
		cfg.transport = settings.Transport
	}
	if len(settings.WorkerCommand) > 0 && !c.IsSet("worker-command") {
		cfg.workerCommand = settings.WorkerCommand
	}
	if settings.Settle > 0 && !c.IsSet("settle") {
		cfg.settle = settings.Settle
	}
	if settings.CallTimeout > 0 && !c.IsSet("call-timeout") {
		cfg.callTimeout = settings.CallTimeout
	}
	if settings.StopTimeout > 0 && !c.IsSet("stop-timeout") {
		cfg.stopTimeout = settings.StopTimeout
	}

	return settings.MCP, nil
}

// selfCommand runs this binary with the given subcommand against the same
// database.
func (cfg *config) selfCommand(sub string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve executable")
	}
	return []string{exe, sub, "--db", cfg.dbPath}, nil
}

// openBridge acquires a started bridge for the configured transport. Every
// transport falls back to the in-process catalog. The returned closer stops
// the bridge and releases everything openBridge created.
func (cfg *config) openBridge(ctx context.Context, c *cli.Command) (bridge.Bridge, func(), error) {
	mcpCfg, err := cfg.applyBridgeSettings(c)
	if err != nil {
		return nil, nil, err
	}

	var store *repository.SQLite
	inProcess := func(ctx context.Context) (bridge.Bridge, error) {
		s, err := cfg.openSQLite()
		if err != nil {
			return nil, err
		}
		store = s

		cat, err := catalog.New(s)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create catalog")
		}
		return bridge.NewInProcess(cat), nil
	}

	var factories []bridge.Factory
	switch cfg.transport {
	case transportPipe:
		factories = append(factories, cfg.pipeFactory())
	case transportMCP:
		factories = append(factories, cfg.mcpFactory(mcpCfg))
	case transportInProcess:
	default:
		return nil, nil, goerr.New("unknown transport",
			goerr.V("transport", cfg.transport),
			goerr.V("supported", []string{transportPipe, transportMCP, transportInProcess}))
	}
	factories = append(factories, inProcess)

	b, err := bridge.Acquire(ctx, factories...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	stopMetrics := func() {}
	if cfg.metricsAddr != "" {
		b, stopMetrics, err = cfg.serveMetrics(ctx, b)
		if err != nil {
			_ = b.Stop()
			if store != nil {
				_ = store.Close()
			}
			return nil, nil, err
		}
	}

	closer := func() {
		if err := b.Stop(); err != nil {
			logging.From(ctx).Warn("failed to stop bridge", "error", err)
		}
		stopMetrics()
		if store != nil {
			_ = store.Close()
		}
	}
	return b, closer, nil
}

func (cfg *config) pipeFactory() bridge.Factory {
	return func(ctx context.Context) (bridge.Bridge, error) {
		command := cfg.workerCommand
		if len(command) == 0 {
			self, err := cfg.selfCommand("worker")
			if err != nil {
				return nil, err
			}
			command = self
		}

		return bridge.NewPipe(bridge.PipeConfig{
			Command:     command,
			Settle:      cfg.settle,
			CallTimeout: cfg.callTimeout,
			StopTimeout: cfg.stopTimeout,
		}), nil
	}
}

func (cfg *config) mcpFactory(mcpCfg mcp.ClientConfig) bridge.Factory {
	return func(ctx context.Context) (bridge.Bridge, error) {
		if cfg.mcpURL != "" {
			mcpCfg = mcp.ClientConfig{Transport: "http", URL: cfg.mcpURL}
		}
		if mcpCfg.Transport != "http" && len(mcpCfg.Command) == 0 {
			self, err := cfg.selfCommand("mcp")
			if err != nil {
				return nil, err
			}
			mcpCfg.Command = self
		}

		factory, err := mcp.NewTransportFactory(mcpCfg)
		if err != nil {
			return nil, err
		}

		session := mcp.NewSessionBridge(factory)
		session.SetStopTimeout(cfg.stopTimeout)
		return session, nil
	}
}

// serveMetrics instruments b and exposes its metrics over HTTP.
func (cfg *config) serveMetrics(ctx context.Context, b bridge.Bridge) (bridge.Bridge, func(), error) {
	reg := prometheus.NewRegistry()
	metrics, err := bridge.NewMetrics(reg)
	if err != nil {
		return b, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              cfg.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := logging.From(ctx)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "addr", cfg.metricsAddr, "error", err)
		}
	}()
	logger.Info("serving bridge metrics", "addr", cfg.metricsAddr)

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	return bridge.Instrument(b, metrics), stop, nil
}
