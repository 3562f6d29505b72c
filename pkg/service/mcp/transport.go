package mcp

import (
	"context"
	"os"
	"os/exec"

	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ClientConfig selects how the session bridge reaches an MCP server.
type ClientConfig struct {
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`
}

// NewTransportFactory validates cfg and returns a factory creating a fresh
// transport on every call.
func NewTransportFactory(cfg ClientConfig) (TransportFactory, error) {
	switch cfg.Transport {
	case "", "stdio":
		if len(cfg.Command) == 0 {
			return nil, goerr.New("command is required for stdio transport")
		}
		return func(ctx context.Context) (mcp.Transport, error) {
			return newStdioTransport(cfg), nil
		}, nil

	case "http":
		if cfg.URL == "" {
			return nil, goerr.New("url is required for http transport")
		}
		return func(ctx context.Context) (mcp.Transport, error) {
			return &mcp.StreamableClientTransport{Endpoint: cfg.URL}, nil
		}, nil

	default:
		return nil, goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}
}

func newStdioTransport(cfg ClientConfig) mcp.Transport {
	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Stderr = os.Stderr

	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	return &mcp.CommandTransport{Command: cmd}
}

// InMemory wires a client transport to s inside the current process.
func InMemory(s *mcp.Server) TransportFactory {
	return func(ctx context.Context) (mcp.Transport, error) {
		clientT, serverT := mcp.NewInMemoryTransports()
		if _, err := s.Connect(ctx, serverT, nil); err != nil {
			return nil, goerr.Wrap(err, "failed to connect in-memory server")
		}
		return clientT, nil
	}
}
