// Package evidence collects operational evidence about monitored systems:
// application log summaries, pipeline metrics, database consistency checks,
// and upstream data comparisons. The diagnostic agent never touches raw
// data sources directly; everything flows through the Provider interface.
package evidence

import "context"

// LogSummary aggregates one day of application logs for a system.
type LogSummary struct {
	System             string             `json:"system"`
	Date               string             `json:"date"`
	ErrorCount         int                `json:"error_count"`
	WarningCount       int                `json:"warning_count"`
	CriticalEvents     []string           `json:"critical_events"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics,omitempty"`
	SampleErrors       []string           `json:"sample_errors"`
}

// MetricSnapshot holds one day of pipeline metrics for a system.
type MetricSnapshot struct {
	System         string  `json:"system"`
	Date           string  `json:"date"`
	RunStatus      string  `json:"run_status"`
	RecordCount    int64   `json:"record_count"`
	ProcessingTime float64 `json:"processing_time_seconds"`
	DataVolume     int64   `json:"data_volume_bytes"`
	ErrorRate      float64 `json:"error_rate"`
}

// ErrorDetails lists errors of a given type extracted from a system's logs.
type ErrorDetails struct {
	System    string   `json:"system"`
	Date      string   `json:"date"`
	ErrorType string   `json:"error_type"`
	Count     int      `json:"count"`
	Samples   []string `json:"samples"`
}

// MetricComparison contrasts a single metric across two dates.
type MetricComparison struct {
	System       string  `json:"system"`
	Metric       string  `json:"metric"`
	Date1        string  `json:"date1"`
	Date2        string  `json:"date2"`
	Value1       float64 `json:"value1"`
	Value2       float64 `json:"value2"`
	Delta        float64 `json:"delta"`
	DeltaPercent float64 `json:"delta_percent"`
}

// ConsistencyReport compares a table against its reconciliation counterpart
// for one business date.
type ConsistencyReport struct {
	Table        string          `json:"table"`
	Date         string          `json:"date"`
	Consistent   bool            `json:"consistent"`
	MainCount    int64           `json:"main_count"`
	ReconCount   int64           `json:"recon_count"`
	Mismatches   []SourceCompare `json:"mismatches,omitempty"`
	MissingMain  []string        `json:"missing_in_main,omitempty"`
	MissingRecon []string        `json:"missing_in_recon,omitempty"`
}

// SourceCompare holds per-source record counts from both sides of a
// consistency check.
type SourceCompare struct {
	SourceID   string `json:"source_id"`
	MainCount  int64  `json:"main_count"`
	ReconCount int64  `json:"recon_count"`
}

// TableComparison contrasts a table's records across two business dates,
// matched by id.
type TableComparison struct {
	Table          string `json:"table"`
	Date1          string `json:"date1"`
	Date2          string `json:"date2"`
	MissingInDate1 int64  `json:"missing_in_date1"`
	MissingInDate2 int64  `json:"missing_in_date2"`
	TotalRecords   int64  `json:"total_records"`
}

// UpstreamReport compares data received locally against what an upstream
// source system reports having sent.
type UpstreamReport struct {
	SourceSystem  string `json:"source_system"`
	Date          string `json:"date"`
	SentCount     int64  `json:"sent_count"`
	ReceivedCount int64  `json:"received_count"`
	Discrepancy   int64  `json:"discrepancy"`
	SourceStatus  string `json:"source_status"`
}

// Provider is the evidence-gathering interface consumed by the agent. All
// methods honor context cancellation and deadlines.
type Provider interface {
	// LogSummary summarizes one day of a system's application logs.
	LogSummary(ctx context.Context, system, date string) (*LogSummary, error)

	// Metrics returns one day of pipeline metrics for a system.
	Metrics(ctx context.Context, system, date string) (*MetricSnapshot, error)

	// ErrorDetails extracts errors of a given type from a system's logs.
	ErrorDetails(ctx context.Context, system, date, errorType string) (*ErrorDetails, error)

	// CompareMetrics contrasts a single named metric across two dates.
	CompareMetrics(ctx context.Context, system, metric, date1, date2 string) (*MetricComparison, error)

	// TableConsistency compares a table with its reconciliation counterpart.
	// The table must be registered for a known system.
	TableConsistency(ctx context.Context, table, date string) (*ConsistencyReport, error)

	// UpstreamData compares local receipts against an upstream source's
	// report for one date.
	UpstreamData(ctx context.Context, sourceSystem, date string) (*UpstreamReport, error)
}
