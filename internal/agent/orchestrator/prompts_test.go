package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsight/opsight/internal/evidence"
)

func promptSnapshot() *EvidenceSnapshot {
	return &EvidenceSnapshot{
		System:       "risk_management",
		Date:         "2024-03-15",
		BaselineDate: "2024-03-14",
		LogsToday: &evidence.LogSummary{
			System:       "risk_management",
			Date:         "2024-03-15",
			ErrorCount:   14,
			WarningCount: 3,
		},
		LogsYesterday: &evidence.LogSummary{
			System:       "risk_management",
			Date:         "2024-03-14",
			ErrorCount:   1,
			WarningCount: 2,
		},
		MetricsToday: &evidence.MetricSnapshot{
			System: "risk_management",
			Date:   "2024-03-15",
		},
		MetricsYesterday: &evidence.MetricSnapshot{
			System: "risk_management",
			Date:   "2024-03-14",
		},
	}
}

func TestBuildDetectionPrompt_Deterministic(t *testing.T) {
	snapshot := promptSnapshot()

	first := BuildDetectionPrompt(snapshot)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, BuildDetectionPrompt(snapshot))
	}
}

func TestBuildDetectionPrompt_Sections(t *testing.T) {
	prompt := BuildDetectionPrompt(promptSnapshot())

	assert.Contains(t, prompt, "System under investigation: risk_management")
	assert.Contains(t, prompt, "Date under investigation: 2024-03-15")
	assert.Contains(t, prompt, "Baseline date: 2024-03-14")
	assert.Contains(t, prompt, "## Log summary, date under investigation")
	assert.Contains(t, prompt, "## Log summary, baseline")
	assert.Contains(t, prompt, "## Pipeline metrics, date under investigation")
	assert.Contains(t, prompt, "## Pipeline metrics, baseline")
	assert.Contains(t, prompt, `"error_count": 14`)
}

func TestBuildDiagnosisPrompt_FailedCheckPlaceholder(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues:    []Issue{{Category: CategoryErrorRateSpike, Severity: "high", Table: "risk_positions"}},
	}
	outcomes := []DirectiveOutcome{
		{
			Directive: Directive{Op: OpCheckTableConsistency, Table: "risk_positions", Date: "2024-03-15"},
			Evidence: &evidence.ConsistencyReport{
				Table: "risk_positions",
				Date:  "2024-03-15",
			},
		},
		{
			Directive: Directive{Op: OpFetchUpstreamData, SourceSystem: "market_data", Date: "2024-03-15"},
			Failed:    true,
			Error:     "upstream source unavailable: connection refused",
		},
	}

	prompt := BuildDiagnosisPrompt("risk_management", "2024-03-15", detection, outcomes)

	assert.Contains(t, prompt, "### Check 1: check_table_consistency risk_positions")
	assert.Contains(t, prompt, "### Check 2: fetch_upstream_data market_data")
	assert.Contains(t, prompt, "CHECK FAILED TO EXECUTE: upstream source unavailable: connection refused")

	// The failed check contributes only its placeholder, never partial data.
	failedSection := prompt[strings.Index(prompt, "### Check 2"):]
	assert.NotContains(t, failedSection, `"table"`)
}

func TestBuildDiagnosisPrompt_EmptyPlan(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues:    []Issue{{Category: CategoryProcessingSlowdown, Severity: "medium"}},
	}

	prompt := BuildDiagnosisPrompt("pnl_system", "2024-03-15", detection, nil)
	assert.Contains(t, prompt, "No verification checks were planned")
}

func TestBuildCustomQueryPrompt_MissingEvidence(t *testing.T) {
	snapshot := &EvidenceSnapshot{System: "pnl_system", Date: "2024-03-15"}

	prompt := BuildCustomQueryPrompt(snapshot, "how many errors were logged?")

	require.Contains(t, prompt, "## Question\nhow many errors were logged?")
	// Nil snapshot fields render as explicit gaps, not JSON null.
	assert.Contains(t, prompt, "(not available)")
	assert.NotContains(t, prompt, "null")
}
