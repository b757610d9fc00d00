package config

import (
	"fmt"
)

// SystemsFile represents the top-level structure of the monitored-systems
// config file. It defines the operational systems the diagnostic agent knows
// about, with their log locations, database tables, and upstream sources.
//
// Example YAML structure:
//
//	schema_version: v1
//	systems:
//	  - name: risk_management
//	    enabled: true
//	    log_subdir: risk_management
//	    tables:
//	      - risk_positions
//	      - risk_limits
//	    upstream_sources:
//	      - market_data
//	      - trade_capture
//	  - name: pnl_system
//	    enabled: true
//	    log_subdir: pnl
//	    tables:
//	      - pnl_daily
//	      - pnl_attribution
//	    upstream_sources:
//	      - trade_capture
type SystemsFile struct {
	// SchemaVersion is the explicit config schema version (e.g., "v1")
	SchemaVersion string `yaml:"schema_version"`

	// Systems is the list of monitored operational systems
	Systems []SystemConfig `yaml:"systems"`
}

// SystemConfig describes a single monitored operational system.
type SystemConfig struct {
	// Name is the unique system identifier (e.g., "risk_management").
	// Requests reference systems by this name.
	Name string `yaml:"name"`

	// Enabled indicates whether requests for this system are accepted
	Enabled bool `yaml:"enabled"`

	// LogSubdir is the subdirectory under the configured log root that
	// holds this system's daily log files. Defaults to Name when empty.
	LogSubdir string `yaml:"log_subdir"`

	// Tables lists the database tables that consistency checks may target.
	// Tables not listed here are rejected, which keeps table names out of
	// dynamically built SQL.
	Tables []string `yaml:"tables"`

	// UpstreamSources lists the source systems this system ingests data
	// from. Upstream comparison requests are restricted to this list.
	UpstreamSources []string `yaml:"upstream_sources"`
}

// Validate checks that the SystemsFile is valid.
// Returns descriptive errors for validation failures.
func (f *SystemsFile) Validate() error {
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")",
			f.SchemaVersion,
		))
	}

	if len(f.Systems) == 0 {
		return NewConfigError("at least one system must be configured")
	}

	seenNames := make(map[string]bool)

	for i, sys := range f.Systems {
		if sys.Name == "" {
			return NewConfigError(fmt.Sprintf(
				"system[%d]: name is required",
				i,
			))
		}

		if seenNames[sys.Name] {
			return NewConfigError(fmt.Sprintf(
				"system[%d]: duplicate system name %q",
				i, sys.Name,
			))
		}
		seenNames[sys.Name] = true

		seenTables := make(map[string]bool)
		for _, table := range sys.Tables {
			if table == "" {
				return NewConfigError(fmt.Sprintf(
					"system[%d] (%s): empty table name",
					i, sys.Name,
				))
			}
			if seenTables[table] {
				return NewConfigError(fmt.Sprintf(
					"system[%d] (%s): duplicate table %q",
					i, sys.Name, table,
				))
			}
			seenTables[table] = true
		}
	}

	return nil
}

// System returns the configuration for the named system, or nil if the
// system is unknown.
func (f *SystemsFile) System(name string) *SystemConfig {
	for i := range f.Systems {
		if f.Systems[i].Name == name {
			return &f.Systems[i]
		}
	}
	return nil
}

// HasTable reports whether the named table is registered for this system.
func (s *SystemConfig) HasTable(table string) bool {
	for _, t := range s.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// HasUpstreamSource reports whether the named source system is registered
// for this system.
func (s *SystemConfig) HasUpstreamSource(source string) bool {
	for _, u := range s.UpstreamSources {
		if u == source {
			return true
		}
	}
	return false
}
