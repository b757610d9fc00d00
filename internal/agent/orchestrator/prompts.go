package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// detectionSystemPrompt instructs the model for the detection phase. The
// output contract is strict JSON so the interpreter can parse it without
// heuristics.
const detectionSystemPrompt = `You are an operational diagnostics assistant for batch processing systems in a financial environment.

You are given one day of evidence for a system: application log summaries and pipeline metrics for the date under investigation, plus the previous day as a baseline. Your job is to decide whether the system shows operational issues.

Issue categories you may report:
- error_rate_spike: error counts or error_rate clearly elevated vs baseline
- data_volume_mismatch: record_count or data_volume deviates materially from baseline
- upstream_discrepancy: evidence points at missing or late data from an upstream source
- processing_slowdown: processing_time degraded materially vs baseline

Use the available tools when the summaries are not conclusive: get_error_details drills into specific error types, compare_metrics quantifies a metric across the two dates.

When you have reached a conclusion, respond with a single JSON object and nothing else:

{
  "has_issues": true,
  "issues": [
    {
      "category": "error_rate_spike",
      "severity": "high",
      "description": "...",
      "table": "affected table if known",
      "source_system": "implicated upstream source if known",
      "metric": "triggering metric if applicable"
    }
  ]
}

If the system looks healthy, respond with {"has_issues": false, "issues": []}.
Severity is one of: low, medium, high, critical. Omit table, source_system, and metric when unknown. Do not invent issues the evidence does not support.`

// diagnosisSystemPrompt instructs the model for the diagnosis phase.
const diagnosisSystemPrompt = `You are an operational diagnostics assistant performing root cause analysis for a batch processing system.

You are given the issues found during detection and the results of targeted verification checks (database consistency reports and upstream delivery comparisons). Some checks may have failed to execute; their placeholders say so. Treat a failed check as missing information, not as evidence.

Use the available tools if a verification result raises follow-up questions: check_database_consistency examines another table, fetch_upstream_data examines another source.

When you have reached a conclusion, respond with a single JSON object and nothing else:

{
  "root_cause": "one-paragraph explanation of the most likely root cause",
  "confidence": "high",
  "supporting_evidence": ["specific observation 1", "specific observation 2"]
}

Confidence is one of: high, medium, low. Use low when the verification checks were inconclusive or unavailable. Cite only evidence actually present above.`

// customQuerySystemPrompt instructs the model for free-form queries.
const customQuerySystemPrompt = `You are an operational diagnostics assistant for batch processing systems in a financial environment.

You are given one day of evidence for a system and a question from an operator. Answer the question using only the evidence provided and the available tools. Be specific: quote counts, dates, and error messages from the evidence. If the evidence cannot answer the question, say so plainly.`

// BuildDetectionPrompt renders the evidence snapshot into the detection
// user prompt. Rendering is deterministic: the same snapshot always
// produces the same prompt.
func BuildDetectionPrompt(snapshot *EvidenceSnapshot) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "System under investigation: %s\n", snapshot.System)
	fmt.Fprintf(&sb, "Date under investigation: %s\n", snapshot.Date)
	fmt.Fprintf(&sb, "Baseline date: %s\n\n", snapshot.BaselineDate)

	sb.WriteString("## Log summary, date under investigation\n")
	writeJSONSection(&sb, snapshot.LogsToday)

	sb.WriteString("\n## Log summary, baseline\n")
	writeJSONSection(&sb, snapshot.LogsYesterday)

	sb.WriteString("\n## Pipeline metrics, date under investigation\n")
	writeJSONSection(&sb, snapshot.MetricsToday)

	sb.WriteString("\n## Pipeline metrics, baseline\n")
	writeJSONSection(&sb, snapshot.MetricsYesterday)

	sb.WriteString("\nAssess whether this system shows operational issues.")

	return sb.String()
}

// BuildDiagnosisPrompt renders detected issues and verification outcomes
// into the diagnosis user prompt. Outcomes appear in plan order; failed
// directives are rendered as explicit placeholders.
func BuildDiagnosisPrompt(system, date string, detection *DetectionResult, outcomes []DirectiveOutcome) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "System under investigation: %s\n", system)
	fmt.Fprintf(&sb, "Date under investigation: %s\n\n", date)

	sb.WriteString("## Detected issues\n")
	writeJSONSection(&sb, detection.Issues)

	sb.WriteString("\n## Verification results\n")
	if len(outcomes) == 0 {
		sb.WriteString("No verification checks were planned for the detected issue categories.\n")
	}
	for i, outcome := range outcomes {
		fmt.Fprintf(&sb, "\n### Check %d: %s %s\n", i+1, outcome.Directive.Op, outcome.Directive.Target())
		if outcome.Failed {
			fmt.Fprintf(&sb, "CHECK FAILED TO EXECUTE: %s\n", outcome.Error)
			continue
		}
		writeJSONSection(&sb, outcome.Evidence)
	}

	sb.WriteString("\nDetermine the most likely root cause.")

	return sb.String()
}

// BuildCustomQueryPrompt renders the evidence snapshot and the operator's
// question.
func BuildCustomQueryPrompt(snapshot *EvidenceSnapshot, query string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "System: %s\n", snapshot.System)
	fmt.Fprintf(&sb, "Date: %s\n\n", snapshot.Date)

	sb.WriteString("## Log summary\n")
	writeJSONSection(&sb, snapshot.LogsToday)

	sb.WriteString("\n## Pipeline metrics\n")
	writeJSONSection(&sb, snapshot.MetricsToday)

	fmt.Fprintf(&sb, "\n## Question\n%s\n", query)

	return sb.String()
}

// writeJSONSection renders v as indented JSON. encoding/json emits struct
// fields in declaration order and sorts map keys, so output is stable.
// Nil values, including typed nil pointers, render as an explicit gap.
func writeJSONSection(sb *strings.Builder, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(sb, "(failed to render: %v)\n", err)
		return
	}
	if string(data) == "null" {
		sb.WriteString("(not available)\n")
		return
	}
	sb.Write(data)
	sb.WriteString("\n")
}
