package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/service/mcp"
	"github.com/m-mizutani/quakead/pkg/service/worker"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"github.com/m-mizutani/quakead/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// openCatalog opens the database and builds the catalog over it.
func (cfg *config) openCatalog() (*catalog.Catalog, func(), error) {
	store, err := cfg.openSQLite()
	if err != nil {
		return nil, nil, err
	}

	cat, err := catalog.New(store)
	if err != nil {
		_ = store.Close()
		return nil, nil, goerr.Wrap(err, "failed to create catalog")
	}
	return cat, func() { _ = store.Close() }, nil
}

func workerCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "worker",
		Usage: "Serve the catalog as newline-delimited JSON-RPC on stdin and stdout",
		Flags: dataFlags(&cfg),
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			cat, closer, err := cfg.openCatalog()
			if err != nil {
				return err
			}
			defer closer()

			logging.From(ctx).Debug("worker started", "db", cfg.dbPath, "pid", os.Getpid())
			return worker.Serve(ctx, os.Stdin, os.Stdout, cat)
		}),
	}
}

func mcpCommand() *cli.Command {
	var (
		cfg      config
		httpAddr string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "http",
			Usage:       "Serve streamable HTTP on this address instead of stdio",
			Sources:     cli.EnvVars("QUAKEAD_MCP_HTTP"),
			Destination: &httpAddr,
		},
	}
	flags = append(flags, dataFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the catalog as a Model Context Protocol server",
		Flags: flags,
		Action: withLogger(func(ctx context.Context, c *cli.Command) error {
			cat, closer, err := cfg.openCatalog()
			if err != nil {
				return err
			}
			defer closer()

			server := mcp.NewServer(cat)
			if httpAddr == "" {
				return mcp.RunStdio(ctx, server)
			}

			httpServer := &http.Server{
				Addr:              httpAddr,
				Handler:           mcp.HTTPHandler(server),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			logging.From(ctx).Info("serving MCP over HTTP", "addr", httpAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return goerr.Wrap(err, "MCP HTTP server failed", goerr.V("addr", httpAddr))
			}
			return nil
		}),
	}
}
