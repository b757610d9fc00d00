package config

import "time"

// Config holds all configuration for the application
type Config struct {
	// APIPort is the port the API server listens on
	APIPort int

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string

	// Model is the model identifier used for diagnostic reasoning
	Model string

	// ModelTimeout bounds a single model invocation
	ModelTimeout time.Duration

	// EvidenceTimeout bounds a single evidence fetch (logs, metrics, upstream)
	EvidenceTimeout time.Duration

	// SystemsConfigPath is the path to the YAML file describing monitored systems
	SystemsConfigPath string

	// LogDir is the root directory containing per-system application logs
	LogDir string

	// MetricsDSN is the PostgreSQL connection string for the operational
	// metrics database (system_metrics, reconciliation tables)
	MetricsDSN string

	// AuditLogPath is the path to the JSONL audit trail file.
	// Empty disables audit logging.
	AuditLogPath string

	// MaxToolRounds bounds the number of tool-use rounds per model phase
	MaxToolRounds int

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled
	TracingEnabled bool

	// TracingEndpoint is the OTLP gRPC endpoint for trace export
	TracingEndpoint string

	// TracingTLSCAPath is the path to the CA certificate for TLS verification
	TracingTLSCAPath string
}

// Defaults applied by LoadConfig when a value is unset.
const (
	DefaultModel           = "claude-sonnet-4-5-20250929"
	DefaultModelTimeout    = 120 * time.Second
	DefaultEvidenceTimeout = 30 * time.Second
	DefaultMaxToolRounds   = 4
)

// LoadConfig creates a Config with the provided values, filling in defaults
// for unset optional values
func LoadConfig(apiPort int, logLevel, model string, modelTimeout, evidenceTimeout time.Duration, systemsConfigPath, logDir, metricsDSN, auditLogPath string, maxToolRounds int, tracingEnabled bool, tracingEndpoint, tracingTLSCAPath string) *Config {
	cfg := &Config{
		APIPort:           apiPort,
		LogLevel:          logLevel,
		Model:             model,
		ModelTimeout:      modelTimeout,
		EvidenceTimeout:   evidenceTimeout,
		SystemsConfigPath: systemsConfigPath,
		LogDir:            logDir,
		MetricsDSN:        metricsDSN,
		AuditLogPath:      auditLogPath,
		MaxToolRounds:     maxToolRounds,
		TracingEnabled:    tracingEnabled,
		TracingEndpoint:   tracingEndpoint,
		TracingTLSCAPath:  tracingTLSCAPath,
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ModelTimeout == 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.EvidenceTimeout == 0 {
		cfg.EvidenceTimeout = DefaultEvidenceTimeout
	}
	if cfg.MaxToolRounds == 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}

	return cfg
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return NewConfigError("APIPort must be between 1 and 65535")
	}

	if c.SystemsConfigPath == "" {
		return NewConfigError("SystemsConfigPath must not be empty")
	}

	if c.ModelTimeout < time.Second {
		return NewConfigError("ModelTimeout must be at least 1 second")
	}

	if c.EvidenceTimeout < time.Second {
		return NewConfigError("EvidenceTimeout must be at least 1 second")
	}

	if c.MaxToolRounds < 1 {
		return NewConfigError("MaxToolRounds must be at least 1")
	}

	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("TracingEndpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
