// Package orchestrator drives the two-phase diagnostic workflow: a
// detection pass over freshly gathered evidence, followed (when issues are
// found) by a planned diagnosis pass that verifies likely causes.
package orchestrator

import (
	"fmt"

	"github.com/opsight/opsight/internal/evidence"
)

// Mode selects which workflow a request runs.
type Mode string

const (
	// ModeIssueDetection runs only the detection phase.
	ModeIssueDetection Mode = "issue_detection"
	// ModeFullDiagnosis runs detection and, when issues are found, diagnosis.
	ModeFullDiagnosis Mode = "full_diagnosis"
	// ModeCustomQuery answers a free-form question against the evidence.
	ModeCustomQuery Mode = "custom_query"
)

// Request describes one diagnostic run.
type Request struct {
	// Mode selects the workflow.
	Mode Mode `json:"mode"`

	// System is the monitored system to investigate.
	System string `json:"system"`

	// Date is the ISO business date under investigation. Empty means the
	// current day.
	Date string `json:"date"`

	// SpecificQuery carries the question for ModeCustomQuery.
	SpecificQuery string `json:"specific_query,omitempty"`
}

// Validate checks request shape before any evidence is touched.
func (r *Request) Validate() error {
	switch r.Mode {
	case ModeIssueDetection, ModeFullDiagnosis:
	case ModeCustomQuery:
		if r.SpecificQuery == "" {
			return &PhaseError{
				Phase: "validate",
				Kind:  ErrInvalidRequest,
				Err:   fmt.Errorf("specific_query is required for mode %q", r.Mode),
			}
		}
	default:
		return &PhaseError{
			Phase: "validate",
			Kind:  ErrInvalidRequest,
			Err:   fmt.Errorf("unknown mode %q", r.Mode),
		}
	}

	if r.System == "" {
		return &PhaseError{
			Phase: "validate",
			Kind:  ErrInvalidRequest,
			Err:   fmt.Errorf("system is required"),
		}
	}
	if err := evidence.ValidateDate(r.Date); err != nil {
		return &PhaseError{Phase: "validate", Kind: ErrInvalidRequest, Err: err}
	}

	return nil
}

// EvidenceSnapshot holds the evidence gathered for the detection phase:
// log summaries and metrics for the date under investigation and the
// previous day as a baseline.
type EvidenceSnapshot struct {
	System           string                   `json:"system"`
	Date             string                   `json:"date"`
	BaselineDate     string                   `json:"baseline_date"`
	LogsToday        *evidence.LogSummary     `json:"logs_today"`
	LogsYesterday    *evidence.LogSummary     `json:"logs_yesterday"`
	MetricsToday     *evidence.MetricSnapshot `json:"metrics_today"`
	MetricsYesterday *evidence.MetricSnapshot `json:"metrics_yesterday"`
}

// Issue is a single problem surfaced by the detection phase.
type Issue struct {
	// Category classifies the issue and drives diagnostic planning.
	// Known categories: error_rate_spike, data_volume_mismatch,
	// upstream_discrepancy, processing_slowdown.
	Category string `json:"category"`

	// Severity is the model's assessment: low, medium, high, critical.
	Severity string `json:"severity"`

	// Description is a human-readable account of the issue.
	Description string `json:"description"`

	// Table names the affected database table, when known.
	Table string `json:"table,omitempty"`

	// SourceSystem names the implicated upstream source, when known.
	SourceSystem string `json:"source_system,omitempty"`

	// Metric names the metric that triggered the issue, when known.
	Metric string `json:"metric,omitempty"`
}

// DetectionResult is the outcome of the detection phase.
type DetectionResult struct {
	HasIssues bool    `json:"has_issues"`
	Issues    []Issue `json:"issues"`

	// RawOutput preserves the model's verbatim output for auditability.
	RawOutput string `json:"detection_model_output,omitempty"`
}

// Directive is one planned verification step for the diagnosis phase.
type Directive struct {
	// Op is the verification operation: check_table_consistency or
	// fetch_upstream_data.
	Op string `json:"op"`

	// Table targets check_table_consistency.
	Table string `json:"table,omitempty"`

	// SourceSystem targets fetch_upstream_data.
	SourceSystem string `json:"source_system,omitempty"`

	// Date is the business date the directive examines.
	Date string `json:"date"`
}

// Target returns the directive's object for logging.
func (d Directive) Target() string {
	if d.Table != "" {
		return d.Table
	}
	return d.SourceSystem
}

// DiagnosticPlan is the ordered list of directives derived from detected
// issues. The plan is fixed before any directive executes.
type DiagnosticPlan struct {
	Directives []Directive `json:"directives"`

	// UnplannedCategories lists issue categories the planner had no
	// directive for. They are reported rather than silently dropped.
	UnplannedCategories []string `json:"unplanned_categories,omitempty"`
}

// DirectiveOutcome pairs a directive with its evidence or failure.
type DirectiveOutcome struct {
	Directive Directive   `json:"directive"`
	Evidence  interface{} `json:"evidence,omitempty"`

	// Failed is set when the directive could not be executed. The
	// diagnosis proceeds with this placeholder instead of aborting.
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DiagnosisResult is the outcome of the diagnosis phase.
type DiagnosisResult struct {
	RootCause          string   `json:"root_cause"`
	Confidence         string   `json:"confidence"`
	SupportingEvidence []string `json:"supporting_evidence"`

	// RawOutput preserves the model's verbatim output for auditability.
	RawOutput string `json:"diagnosis_model_output,omitempty"`
}

// Result is the union of everything a request produced. The embedded
// pointers are nil for phases that did not run, and their fields are then
// omitted from the JSON encoding, so a detection-only result and a full
// diagnosis share one shape.
type Result struct {
	RequestID string `json:"request_id"`
	Mode      Mode   `json:"mode"`
	System    string `json:"system"`
	Date      string `json:"date"`

	*DetectionResult
	*DiagnosisResult

	// Answer carries the response to a custom query.
	Answer string `json:"answer,omitempty"`
}
