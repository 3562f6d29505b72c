package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/adapter"
	"github.com/m-mizutani/quakead/pkg/policy"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/urfave/cli/v3"
)

const DefaultDBPath = "db/earthquake_rag.db"

// config holds configuration values
type config struct {
	// Data store
	dbPath string

	// Bridge
	transport     string
	workerCommand []string
	mcpURL        string
	bridgeConfig  string
	settle        time.Duration
	callTimeout   time.Duration
	stopTimeout   time.Duration
	metricsAddr   string

	// Adapters
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Campaigns
	campaignStore     string
	firestoreProject  string
	firestoreDatabase string
	bucket            string
	exportDir         string
	policyDir         string
}

// dataFlags returns flags for the earthquake and household database
func dataFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Path to the SQLite database",
			Value:       DefaultDBPath,
			Sources:     cli.EnvVars("QUAKEAD_DB"),
			Destination: &cfg.dbPath,
		},
	}
}

// bridgeFlags returns flags that choose and tune the bridge transport
func bridgeFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "transport",
			Usage:       "Bridge transport: pipe, mcp or inprocess",
			Value:       transportPipe,
			Sources:     cli.EnvVars("QUAKEAD_TRANSPORT"),
			Destination: &cfg.transport,
		},
		&cli.StringSliceFlag{
			Name:        "worker-command",
			Usage:       "Worker command and arguments (default: this binary with 'worker --db <db>')",
			Sources:     cli.EnvVars("QUAKEAD_WORKER_COMMAND"),
			Destination: &cfg.workerCommand,
		},
		&cli.StringFlag{
			Name:        "mcp-url",
			Usage:       "Streamable HTTP endpoint of an MCP server for the mcp transport",
			Sources:     cli.EnvVars("QUAKEAD_MCP_URL"),
			Destination: &cfg.mcpURL,
		},
		&cli.StringFlag{
			Name:        "bridge-config",
			Usage:       "YAML file with bridge settings, flags take precedence",
			Sources:     cli.EnvVars("QUAKEAD_BRIDGE_CONFIG"),
			Destination: &cfg.bridgeConfig,
		},
		&cli.DurationFlag{
			Name:        "settle",
			Usage:       "Time to wait for the worker before checking it is alive",
			Value:       2 * time.Second,
			Sources:     cli.EnvVars("QUAKEAD_SETTLE"),
			Destination: &cfg.settle,
		},
		&cli.DurationFlag{
			Name:        "call-timeout",
			Usage:       "Timeout of one bridge call, 0 waits without limit",
			Sources:     cli.EnvVars("QUAKEAD_CALL_TIMEOUT"),
			Destination: &cfg.callTimeout,
		},
		&cli.DurationFlag{
			Name:        "stop-timeout",
			Usage:       "Time to wait for the worker to exit before killing it",
			Value:       3 * time.Second,
			Sources:     cli.EnvVars("QUAKEAD_STOP_TIMEOUT"),
			Destination: &cfg.stopTimeout,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "Serve Prometheus bridge metrics on this address (e.g. :9090)",
			Sources:     cli.EnvVars("QUAKEAD_METRICS_ADDR"),
			Destination: &cfg.metricsAddr,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini Developer API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Value:       adapter.DefaultGeminiModel,
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// campaignFlags returns flags for campaign history, export and policy
func campaignFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "campaign-store",
			Usage:       "Campaign history store: sqlite or firestore",
			Value:       "sqlite",
			Sources:     cli.EnvVars("QUAKEAD_CAMPAIGN_STORE"),
			Destination: &cfg.campaignStore,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for exported emails",
			Sources:     cli.EnvVars("QUAKEAD_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "export-dir",
			Usage:       "Local directory for exported emails",
			Value:       "export",
			Sources:     cli.EnvVars("QUAKEAD_EXPORT_DIR"),
			Destination: &cfg.exportDir,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of .rego files defining data.outreach.deny",
			Sources:     cli.EnvVars("QUAKEAD_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// openSQLite opens the database given by --db
func (cfg *config) openSQLite() (*repository.SQLite, error) {
	store, err := repository.NewSQLite(cfg.dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", cfg.dbPath))
	}
	return store, nil
}

// newGemini creates a new Gemini adapter instance. The API key takes
// precedence over Vertex AI.
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	opts := []adapter.GeminiOption{adapter.WithGenerativeModel(cfg.geminiModel)}

	if cfg.geminiAPIKey != "" {
		return adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
	}
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-api-key or gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newCampaignStore opens the campaign history. The returned closer must be
// called when done.
func (cfg *config) newCampaignStore(ctx context.Context) (repository.CampaignStore, func(), error) {
	switch cfg.campaignStore {
	case "", "sqlite":
		store, err := cfg.openSQLite()
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, nil, goerr.New("firestore-project is required")
		}
		store, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to create firestore repository")
		}
		return store, func() { _ = store.Close() }, nil
	}

	return nil, nil, goerr.New("unknown campaign store", goerr.V("campaign_store", cfg.campaignStore))
}

// newStorage creates the export storage: Cloud Storage when a bucket is
// given, a local directory otherwise
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket != "" {
		storage, err := adapter.NewStorage(ctx, cfg.bucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage, nil
	}
	return adapter.NewLocalStorage(cfg.exportDir)
}

func (cfg *config) newPolicy(ctx context.Context) (*policy.Policy, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}
	return policy.Load(ctx, cfg.policyDir)
}
