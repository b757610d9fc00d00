package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlan_CategoryMapping(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues: []Issue{
			{Category: CategoryErrorRateSpike, Table: "risk_positions"},
			{Category: CategoryUpstreamDiscrepancy, SourceSystem: "market_data"},
			{Category: CategoryDataVolumeMismatch, Table: "pnl_daily"},
		},
	}

	plan := BuildPlan(detection, "risk_management", "2024-03-15")
	require.Len(t, plan.Directives, 3)

	assert.Equal(t, Directive{Op: OpCheckTableConsistency, Table: "risk_positions", Date: "2024-03-15"}, plan.Directives[0])
	assert.Equal(t, Directive{Op: OpFetchUpstreamData, SourceSystem: "market_data", Date: "2024-03-15"}, plan.Directives[1])
	assert.Equal(t, Directive{Op: OpCheckTableConsistency, Table: "pnl_daily", Date: "2024-03-15"}, plan.Directives[2])
	assert.Empty(t, plan.UnplannedCategories)
}

func TestBuildPlan_Deterministic(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues: []Issue{
			{Category: CategoryErrorRateSpike, Table: "risk_positions"},
			{Category: CategoryUpstreamDiscrepancy, SourceSystem: "market_data"},
		},
	}

	first := BuildPlan(detection, "risk_management", "2024-03-15")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildPlan(detection, "risk_management", "2024-03-15"))
	}
}

func TestBuildPlan_Deduplicates(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues: []Issue{
			{Category: CategoryErrorRateSpike, Table: "risk_positions"},
			{Category: CategoryDataVolumeMismatch, Table: "risk_positions"},
			{Category: CategoryUpstreamDiscrepancy, SourceSystem: "market_data"},
			{Category: CategoryUpstreamDiscrepancy, SourceSystem: "market_data"},
		},
	}

	plan := BuildPlan(detection, "risk_management", "2024-03-15")
	assert.Len(t, plan.Directives, 2, "same verification must not run twice")
}

func TestBuildPlan_UnknownCategories(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues: []Issue{
			{Category: "solar_flare"},
			{Category: CategoryProcessingSlowdown},
			{Category: CategoryErrorRateSpike, Table: "risk_positions"},
		},
	}

	plan := BuildPlan(detection, "risk_management", "2024-03-15")
	require.Len(t, plan.Directives, 1)
	assert.Equal(t, []string{CategoryProcessingSlowdown, "solar_flare"}, plan.UnplannedCategories,
		"categories without a directive are reported, not dropped")
}

func TestBuildPlan_MissingTarget(t *testing.T) {
	detection := &DetectionResult{
		HasIssues: true,
		Issues: []Issue{
			{Category: CategoryErrorRateSpike}, // no table named
			{Category: CategoryUpstreamDiscrepancy},
		},
	}

	plan := BuildPlan(detection, "risk_management", "2024-03-15")
	assert.Empty(t, plan.Directives)
	assert.Equal(t, []string{CategoryErrorRateSpike, CategoryUpstreamDiscrepancy}, plan.UnplannedCategories)
}

func TestBuildPlan_NoIssues(t *testing.T) {
	plan := BuildPlan(&DetectionResult{HasIssues: false}, "risk_management", "2024-03-15")
	assert.Empty(t, plan.Directives)

	plan = BuildPlan(nil, "risk_management", "2024-03-15")
	assert.Empty(t, plan.Directives)
}
