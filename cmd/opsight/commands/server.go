package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opsight/opsight/internal/agent/audit"
	"github.com/opsight/opsight/internal/agent/orchestrator"
	"github.com/opsight/opsight/internal/apiserver"
	"github.com/opsight/opsight/internal/config"
	"github.com/opsight/opsight/internal/evidence"
	"github.com/opsight/opsight/internal/lifecycle"
	"github.com/opsight/opsight/internal/logging"
	"github.com/opsight/opsight/internal/metrics"
	"github.com/opsight/opsight/internal/tracing"
)

var (
	apiPort            int
	systemsConfigPath  string
	logDir             string
	metricsDSN         string
	auditLogPath       string
	serverModel        string
	serverMockScenario string
	serverAnthropicKey string
	modelTimeout       time.Duration
	evidenceTimeout    time.Duration
	maxToolRounds      int
	upstreamFlags      []string
	tracingEnabled     bool
	tracingEndpoint    string
	tracingTLSCAPath   string
	tracingTLSInsecure bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Opsight diagnostic server",
	Long: `Start the Opsight server which exposes the diagnostic agent and
direct evidence endpoints over HTTP, watching the systems registry for
changes.`,
	Run: runServer,
}

func init() {
	serverCmd.Flags().IntVar(&apiPort, "api-port", 8080, "Port the API server listens on")
	serverCmd.Flags().StringVar(&systemsConfigPath, "systems-config", "systems.yaml",
		"Path to the YAML file describing monitored systems")
	serverCmd.Flags().StringVar(&logDir, "log-dir", "/var/log/opsight-systems",
		"Root directory holding per-system application logs")
	serverCmd.Flags().StringVar(&metricsDSN, "metrics-dsn", "",
		"PostgreSQL connection string for the operational metrics database (defaults to METRICS_DSN env var)")
	serverCmd.Flags().StringVar(&auditLogPath, "audit-log", "",
		"Path to write the agent audit trail (JSONL format). If empty, audit logging is disabled.")
	serverCmd.Flags().StringVar(&serverModel, "model", config.DefaultModel,
		"Model to use for diagnostic reasoning, or 'mock:<scenario.yaml>' for offline runs")
	serverCmd.Flags().StringVar(&serverMockScenario, "mock-scenario", "",
		"Scenario file for the mock model")
	serverCmd.Flags().StringVar(&serverAnthropicKey, "anthropic-key", "",
		"Anthropic API key (defaults to ANTHROPIC_API_KEY env var)")
	serverCmd.Flags().DurationVar(&modelTimeout, "model-timeout", config.DefaultModelTimeout,
		"Timeout for a single model call")
	serverCmd.Flags().DurationVar(&evidenceTimeout, "evidence-timeout", config.DefaultEvidenceTimeout,
		"Timeout for a single evidence fetch")
	serverCmd.Flags().IntVar(&maxToolRounds, "max-tool-rounds", config.DefaultMaxToolRounds,
		"Maximum tool-use rounds per model phase")
	serverCmd.Flags().StringSliceVar(&upstreamFlags, "upstream", nil,
		"Upstream reporting endpoint as source=url (repeatable). Example: --upstream market_data=http://md-reports:9000")
	serverCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing")
	serverCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces")
	serverCmd.Flags().StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "Path to CA certificate for TLS verification")
	serverCmd.Flags().BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification")
}

func runServer(cmd *cobra.Command, args []string) {
	if metricsDSN == "" {
		metricsDSN = os.Getenv("METRICS_DSN")
	}

	cfg := config.LoadConfig(
		apiPort,
		"", // log level handled by --log-level flags
		serverModel,
		modelTimeout,
		evidenceTimeout,
		systemsConfigPath,
		logDir,
		metricsDSN,
		auditLogPath,
		maxToolRounds,
		tracingEnabled,
		tracingEndpoint,
		tracingTLSCAPath,
	)
	if err := cfg.Validate(); err != nil {
		HandleError(err, "Configuration error")
	}

	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("server")
	logger.Info("starting Opsight v%s", Version)

	manager := lifecycle.NewManager()

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:        cfg.TracingEnabled,
		Endpoint:       cfg.TracingEndpoint,
		TLSCAPath:      cfg.TracingTLSCAPath,
		TLSInsecure:    tracingTLSInsecure,
		ServiceVersion: Version,
	})
	if err != nil {
		logger.Warn("failed to initialize tracing (continuing without): %v", err)
		tracingProvider = nil
	}
	if tracingProvider != nil {
		if err := manager.Register(tracingProvider); err != nil {
			HandleError(err, "Tracing registration error")
		}
	}

	upstreamURLs, err := parseUpstreamFlags(upstreamFlags)
	if err != nil {
		HandleError(err, "Configuration error")
	}

	var pool *pgxpool.Pool
	if cfg.MetricsDSN != "" {
		poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = pgxpool.New(poolCtx, cfg.MetricsDSN)
		poolCancel()
		if err != nil {
			HandleError(err, "Metrics database connection error")
		}
		defer pool.Close()
	} else {
		logger.Warn("no metrics DSN configured, database-backed evidence will be unavailable")
	}

	systems, err := config.LoadSystemsFile(cfg.SystemsConfigPath)
	if err != nil {
		HandleError(err, "Systems config error")
	}

	dataLayer := evidence.NewDataLayer(evidence.DataLayerOptions{
		LogDir:       cfg.LogDir,
		Pool:         pool,
		UpstreamURLs: upstreamURLs,
		HTTPTimeout:  cfg.EvidenceTimeout,
		Systems:      systems,
	})

	watcher, err := config.NewSystemsWatcher(config.SystemsWatcherConfig{
		FilePath: cfg.SystemsConfigPath,
	}, dataLayer.UpdateSystems)
	if err != nil {
		HandleError(err, "Systems watcher error")
	}
	watcherComponent := &systemsWatcherComponent{watcher}
	if err := manager.Register(watcherComponent); err != nil {
		HandleError(err, "Systems watcher registration error")
	}

	var auditLogger *audit.Logger
	if cfg.AuditLogPath != "" {
		auditLogger, err = audit.NewLogger(cfg.AuditLogPath)
		if err != nil {
			HandleError(err, "Audit log initialization error")
		}
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logger.ErrorWithErr("failed to close audit log", err)
			}
		}()
		logger.Info("audit trail enabled: %s", cfg.AuditLogPath)
	}

	modelProvider, err := buildProvider(cfg.Model, serverMockScenario, serverAnthropicKey)
	if err != nil {
		HandleError(err, "Model provider error")
	}
	logger.Info("model provider: %s (%s)", modelProvider.Name(), modelProvider.Model())

	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		HandleError(err, "Metrics registration error")
	}

	orch := orchestrator.New(orchestrator.Options{
		Provider:        modelProvider,
		Evidence:        dataLayer,
		Audit:           auditLogger,
		Metrics:         m,
		ModelTimeout:    cfg.ModelTimeout,
		EvidenceTimeout: cfg.EvidenceTimeout,
		MaxToolRounds:   cfg.MaxToolRounds,
		ToolLogger:      slog.Default(),
	})

	apiComponent := apiserver.New(cfg.APIPort, orch, dataLayer, watcher)
	if err := manager.Register(apiComponent, watcherComponent); err != nil {
		HandleError(err, "API server registration error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := manager.Start(ctx); err != nil {
		HandleError(err, "Startup error")
	}

	logger.Info("Opsight started, serving on port %d", cfg.APIPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.ErrorWithErr("error during shutdown", err)
	}

	logger.Info("shutdown complete")
}

// systemsWatcherComponent adapts the config watcher to lifecycle.Component.
type systemsWatcherComponent struct {
	*config.SystemsWatcher
}

func (c *systemsWatcherComponent) Stop(ctx context.Context) error {
	return c.SystemsWatcher.Stop()
}

func (c *systemsWatcherComponent) Name() string {
	return "systems-watcher"
}
