package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opsight/opsight/internal/logging"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // supports multiple --log-level flags
)

var rootCmd = &cobra.Command{
	Use:   "opsight",
	Short: "Opsight - model-driven diagnostics for batch processing systems",
	Long: `Opsight is an automated diagnostic assistant for operational batch
systems. It gathers log and metric evidence, asks a language model to detect
issues, and runs targeted verification checks to find root causes.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Local development convenience; missing .env is fine.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Supports per-package log levels: --log-level debug --log-level agent.audit=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use a bare level for the default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level evidence=debug --log-level api=warn")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(queryCmd)
}

// HandleError prints the error and exits.
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// setupLog initializes the logging system from the parsed log level flags.
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags merges CLI flags over LOG_LEVEL_* environment
// variables.
//
// CLI format: ["debug"], or ["default=info", "evidence=debug"].
// Env format: LOG_LEVEL_AGENT_AUDIT=debug (uppercased, dots to underscores).
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range os.Environ() {
		if !strings.HasPrefix(envPair, "LOG_LEVEL_") {
			continue
		}
		parts := strings.SplitN(envPair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		result[convertEnvKeyToPackageName(parts[0])] = parts[1]
	}

	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			result["default"] = flag
			continue
		}
		parts := strings.SplitN(flag, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %v", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_AGENT_AUDIT -> agent.audit.
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error", "fatal":
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", level)
}
