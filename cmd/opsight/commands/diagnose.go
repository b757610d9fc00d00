package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/opsight/opsight/internal/agent/audit"
	"github.com/opsight/opsight/internal/agent/orchestrator"
	"github.com/opsight/opsight/internal/config"
	"github.com/opsight/opsight/internal/evidence"
	"github.com/opsight/opsight/internal/logging"
)

var (
	runSystem          string
	runDate            string
	runQuery           string
	runModel           string
	runMockScenario    string
	runAnthropicKey    string
	runSystemsConfig   string
	runLogDir          string
	runMetricsDSN      string
	runUpstreamFlags   []string
	runAuditLogPath    string
	runModelTimeout    time.Duration
	runEvidenceTimeout time.Duration
	runMaxToolRounds   int
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run issue detection for a system and date",
	Long: `Run the detection phase once against the configured evidence sources
and print the structured result to stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(orchestrator.ModeIssueDetection)
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run a full diagnosis for a system and date",
	Long: `Run detection and, when issues are found, root-cause diagnosis.
The structured result is printed to stdout.`,
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(orchestrator.ModeFullDiagnosis)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Answer a free-form question about a system and date",
	Run: func(cmd *cobra.Command, args []string) {
		runOnce(orchestrator.ModeCustomQuery)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{detectCmd, diagnoseCmd, queryCmd} {
		cmd.Flags().StringVar(&runSystem, "system", "", "System to investigate (required)")
		cmd.Flags().StringVar(&runDate, "date", "", "Business date to investigate, YYYY-MM-DD (required)")
		cmd.Flags().StringVar(&runModel, "model", config.DefaultModel,
			"Model to use, or 'mock:<scenario.yaml>' for offline runs")
		cmd.Flags().StringVar(&runMockScenario, "mock-scenario", "", "Scenario file for the mock model")
		cmd.Flags().StringVar(&runAnthropicKey, "anthropic-key", "",
			"Anthropic API key (defaults to ANTHROPIC_API_KEY env var)")
		cmd.Flags().StringVar(&runSystemsConfig, "systems-config", "systems.yaml",
			"Path to the YAML file describing monitored systems")
		cmd.Flags().StringVar(&runLogDir, "log-dir", "/var/log/opsight-systems",
			"Root directory holding per-system application logs")
		cmd.Flags().StringVar(&runMetricsDSN, "metrics-dsn", "",
			"PostgreSQL connection string for the operational metrics database")
		cmd.Flags().StringSliceVar(&runUpstreamFlags, "upstream", nil,
			"Upstream reporting endpoint as source=url (repeatable)")
		cmd.Flags().StringVar(&runAuditLogPath, "audit-log", "", "Path to write the agent audit trail")
		cmd.Flags().DurationVar(&runModelTimeout, "model-timeout", config.DefaultModelTimeout,
			"Timeout for a single model call")
		cmd.Flags().DurationVar(&runEvidenceTimeout, "evidence-timeout", config.DefaultEvidenceTimeout,
			"Timeout for a single evidence fetch")
		cmd.Flags().IntVar(&runMaxToolRounds, "max-tool-rounds", config.DefaultMaxToolRounds,
			"Maximum tool-use rounds per model phase")
		_ = cmd.MarkFlagRequired("system")
		_ = cmd.MarkFlagRequired("date")
	}
	queryCmd.Flags().StringVar(&runQuery, "query", "", "Question to answer (required)")
	_ = queryCmd.MarkFlagRequired("query")
}

func runOnce(mode orchestrator.Mode) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}
	logger := logging.GetLogger("cli")

	ctx := context.Background()

	orch, cleanup, err := buildOrchestrator(ctx, logger)
	if err != nil {
		HandleError(err, "Setup error")
	}
	defer cleanup()

	result, err := orch.Execute(ctx, &orchestrator.Request{
		Mode:          mode,
		System:        runSystem,
		Date:          runDate,
		SpecificQuery: runQuery,
	})
	if err != nil {
		HandleError(err, "Diagnostic run failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		HandleError(err, "Failed to render result")
	}
	fmt.Println(string(out))
}

// buildOrchestrator assembles the evidence layer, model provider and
// orchestrator for a one-shot run. The returned cleanup closes the
// database pool and audit log.
func buildOrchestrator(ctx context.Context, logger *logging.Logger) (*orchestrator.Orchestrator, func(), error) {
	if runMetricsDSN == "" {
		runMetricsDSN = os.Getenv("METRICS_DSN")
	}

	upstreamURLs, err := parseUpstreamFlags(runUpstreamFlags)
	if err != nil {
		return nil, nil, err
	}

	var pool *pgxpool.Pool
	if runMetricsDSN != "" {
		poolCtx, poolCancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err = pgxpool.New(poolCtx, runMetricsDSN)
		poolCancel()
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to metrics database: %w", err)
		}
	} else {
		logger.Warn("no metrics DSN configured, database-backed evidence will be unavailable")
	}

	systems, err := config.LoadSystemsFile(runSystemsConfig)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, err
	}

	dataLayer := evidence.NewDataLayer(evidence.DataLayerOptions{
		LogDir:       runLogDir,
		Pool:         pool,
		UpstreamURLs: upstreamURLs,
		HTTPTimeout:  runEvidenceTimeout,
		Systems:      systems,
	})

	var auditLogger *audit.Logger
	if runAuditLogPath != "" {
		auditLogger, err = audit.NewLogger(runAuditLogPath)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, nil, err
		}
	}

	modelProvider, err := buildProvider(runModel, runMockScenario, runAnthropicKey)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		if auditLogger != nil {
			_ = auditLogger.Close()
		}
		return nil, nil, err
	}

	orch := orchestrator.New(orchestrator.Options{
		Provider:        modelProvider,
		Evidence:        dataLayer,
		Audit:           auditLogger,
		ModelTimeout:    runModelTimeout,
		EvidenceTimeout: runEvidenceTimeout,
		MaxToolRounds:   runMaxToolRounds,
		ToolLogger:      slog.Default(),
	})

	cleanup := func() {
		if auditLogger != nil {
			_ = auditLogger.Close()
		}
		if pool != nil {
			pool.Close()
		}
	}
	return orch, cleanup, nil
}
