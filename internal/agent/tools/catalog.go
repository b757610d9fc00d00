package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opsight/opsight/internal/evidence"
)

// Phase identifies which stage of the diagnostic workflow a tool registry
// serves. Detection and diagnosis expose disjoint tool sets: detection tools
// drill into symptoms, diagnosis tools verify causes. Custom queries are not
// bound to either stage and get the union. The registry for a phase is the
// capability boundary for that model call.
type Phase string

const (
	PhaseDetection   Phase = "detection"
	PhaseDiagnosis   Phase = "diagnosis"
	PhaseCustomQuery Phase = "custom_query"
)

// NewRegistryForPhase builds a registry holding exactly the tools available
// to the given phase.
func NewRegistryForPhase(phase Phase, ev evidence.Provider, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)

	switch phase {
	case PhaseDetection:
		r.register(&errorDetailsTool{ev: ev})
		r.register(&compareMetricsTool{ev: ev})
	case PhaseDiagnosis:
		r.register(&databaseConsistencyTool{ev: ev})
		r.register(&upstreamDataTool{ev: ev})
	case PhaseCustomQuery:
		r.register(&errorDetailsTool{ev: ev})
		r.register(&compareMetricsTool{ev: ev})
		r.register(&databaseConsistencyTool{ev: ev})
		r.register(&upstreamDataTool{ev: ev})
	}

	return r
}

// errorDetailsTool surfaces errors of a given type from a system's logs.
type errorDetailsTool struct {
	ev evidence.Provider
}

func (t *errorDetailsTool) Name() string { return "get_error_details" }

func (t *errorDetailsTool) Description() string {
	return `Get detailed error information from a system's application logs for a specific date.

Use this tool to:
- Drill into errors surfaced by a log summary
- Count occurrences of a specific error type
- Retrieve sample error lines for context

Input:
- system: System name (e.g., 'risk_management', 'pnl_system')
- date: ISO date (YYYY-MM-DD)
- error_type (optional): Substring to filter errors by (e.g., 'timeout'). Omit for all errors.`
}

func (t *errorDetailsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"system", "date"},
		"properties": map[string]interface{}{
			"system": map[string]interface{}{
				"type":        "string",
				"description": "System name (e.g., 'risk_management')",
			},
			"date": map[string]interface{}{
				"type":        "string",
				"description": "ISO date (YYYY-MM-DD)",
			},
			"error_type": map[string]interface{}{
				"type":        "string",
				"description": "Substring to filter errors by (optional)",
			},
		},
	}
}

func (t *errorDetailsTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var args struct {
		System    string `json:"system"`
		Date      string `json:"date"`
		ErrorType string `json:"error_type"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	details, err := t.ev.ErrorDetails(ctx, args.System, args.Date, args.ErrorType)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	return &Result{
		Success: true,
		Data:    details,
		Summary: fmt.Sprintf("Found %d matching errors in %s logs for %s", details.Count, args.System, args.Date),
	}, nil
}

// compareMetricsTool contrasts a single pipeline metric across two dates.
type compareMetricsTool struct {
	ev evidence.Provider
}

func (t *compareMetricsTool) Name() string { return "compare_metrics" }

func (t *compareMetricsTool) Description() string {
	return `Compare a single pipeline metric for a system across two dates.

Use this tool to:
- Quantify how a metric moved between a baseline day and the day under investigation
- Confirm or rule out volume drops, slowdowns, and error-rate spikes

Input:
- system: System name (e.g., 'risk_management')
- metric_name: One of 'record_count', 'processing_time', 'data_volume', 'error_rate'
- date1: ISO date under investigation (YYYY-MM-DD)
- date2: ISO baseline date (YYYY-MM-DD)`
}

func (t *compareMetricsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"system", "metric_name", "date1", "date2"},
		"properties": map[string]interface{}{
			"system": map[string]interface{}{
				"type":        "string",
				"description": "System name (e.g., 'risk_management')",
			},
			"metric_name": map[string]interface{}{
				"type":        "string",
				"description": "Metric to compare: record_count, processing_time, data_volume, or error_rate",
			},
			"date1": map[string]interface{}{
				"type":        "string",
				"description": "ISO date under investigation (YYYY-MM-DD)",
			},
			"date2": map[string]interface{}{
				"type":        "string",
				"description": "ISO baseline date (YYYY-MM-DD)",
			},
		},
	}
}

func (t *compareMetricsTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var args struct {
		System     string `json:"system"`
		MetricName string `json:"metric_name"`
		Date1      string `json:"date1"`
		Date2      string `json:"date2"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	cmp, err := t.ev.CompareMetrics(ctx, args.System, args.MetricName, args.Date1, args.Date2)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	return &Result{
		Success: true,
		Data:    cmp,
		Summary: fmt.Sprintf("%s %s: %.2f on %s vs %.2f on %s (%.1f%%)", args.System, args.MetricName, cmp.Value1, args.Date1, cmp.Value2, args.Date2, cmp.DeltaPercent),
	}, nil
}

// databaseConsistencyTool checks a table against its reconciliation copy.
type databaseConsistencyTool struct {
	ev evidence.Provider
}

func (t *databaseConsistencyTool) Name() string { return "check_database_consistency" }

func (t *databaseConsistencyTool) Description() string {
	return `Check a database table against its reconciliation counterpart for a business date.

Use this tool to:
- Verify whether a suspected data issue shows up as a count mismatch
- Identify which sources are missing or divergent

Input:
- table: Registered table name (e.g., 'risk_positions', 'pnl_daily')
- date: ISO business date (YYYY-MM-DD)`
}

func (t *databaseConsistencyTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"table", "date"},
		"properties": map[string]interface{}{
			"table": map[string]interface{}{
				"type":        "string",
				"description": "Registered table name (e.g., 'risk_positions')",
			},
			"date": map[string]interface{}{
				"type":        "string",
				"description": "ISO business date (YYYY-MM-DD)",
			},
		},
	}
}

func (t *databaseConsistencyTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var args struct {
		Table string `json:"table"`
		Date  string `json:"date"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	report, err := t.ev.TableConsistency(ctx, args.Table, args.Date)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	summary := fmt.Sprintf("%s is consistent for %s (%d records)", args.Table, args.Date, report.MainCount)
	if !report.Consistent {
		summary = fmt.Sprintf("%s has %d mismatched sources for %s (main=%d recon=%d)",
			args.Table, len(report.Mismatches)+len(report.MissingMain)+len(report.MissingRecon), args.Date, report.MainCount, report.ReconCount)
	}

	return &Result{
		Success: true,
		Data:    report,
		Summary: summary,
	}, nil
}

// upstreamDataTool compares local receipts against an upstream source.
type upstreamDataTool struct {
	ev evidence.Provider
}

func (t *upstreamDataTool) Name() string { return "fetch_upstream_data" }

func (t *upstreamDataTool) Description() string {
	return `Compare data received locally against what an upstream source system reports having sent.

Use this tool to:
- Determine whether a data gap originates upstream or in local ingestion
- Check the upstream system's delivery status for a date

Input:
- source_system: Upstream source name (e.g., 'market_data', 'trade_capture')
- date: ISO date (YYYY-MM-DD)`
}

func (t *upstreamDataTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"source_system", "date"},
		"properties": map[string]interface{}{
			"source_system": map[string]interface{}{
				"type":        "string",
				"description": "Upstream source name (e.g., 'market_data')",
			},
			"date": map[string]interface{}{
				"type":        "string",
				"description": "ISO date (YYYY-MM-DD)",
			},
		},
	}
}

func (t *upstreamDataTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	var args struct {
		SourceSystem string `json:"source_system"`
		Date         string `json:"date"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("invalid input: %v", err)}, nil
	}

	report, err := t.ev.UpstreamData(ctx, args.SourceSystem, args.Date)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	summary := fmt.Sprintf("%s: sent %d, received %d", args.SourceSystem, report.SentCount, report.ReceivedCount)
	if report.Discrepancy != 0 {
		summary = fmt.Sprintf("%s: discrepancy of %d records (sent %d, received %d)", args.SourceSystem, report.Discrepancy, report.SentCount, report.ReceivedCount)
	}

	return &Result{
		Success: true,
		Data:    report,
		Summary: summary,
	}, nil
}
