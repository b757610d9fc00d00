package orchestrator

import "sort"

// Known issue categories produced by the detection phase.
const (
	CategoryErrorRateSpike      = "error_rate_spike"
	CategoryDataVolumeMismatch  = "data_volume_mismatch"
	CategoryUpstreamDiscrepancy = "upstream_discrepancy"

	// CategoryProcessingSlowdown has no automated verification check; issues
	// in this category surface through UnplannedCategories.
	CategoryProcessingSlowdown = "processing_slowdown"
)

// Directive operations.
const (
	OpCheckTableConsistency = "check_table_consistency"
	OpFetchUpstreamData     = "fetch_upstream_data"
)

// BuildPlan derives the diagnostic plan from detected issues. The mapping
// is a fixed lookup, not a model decision: the same issues always produce
// the same plan. Directives follow issue order, duplicates are collapsed,
// and categories without a mapping are recorded as unplanned.
func BuildPlan(detection *DetectionResult, system, date string) *DiagnosticPlan {
	plan := &DiagnosticPlan{}
	if detection == nil || !detection.HasIssues {
		return plan
	}

	seen := make(map[string]bool)
	unplanned := make(map[string]bool)

	add := func(d Directive) {
		key := d.Op + "|" + d.Table + "|" + d.SourceSystem + "|" + d.Date
		if seen[key] {
			return
		}
		seen[key] = true
		plan.Directives = append(plan.Directives, d)
	}

	for _, issue := range detection.Issues {
		switch issue.Category {
		case CategoryErrorRateSpike, CategoryDataVolumeMismatch:
			table := issue.Table
			if table == "" {
				// No table named: nothing concrete to verify for this issue.
				unplanned[issue.Category] = true
				continue
			}
			add(Directive{Op: OpCheckTableConsistency, Table: table, Date: date})

		case CategoryUpstreamDiscrepancy:
			source := issue.SourceSystem
			if source == "" {
				unplanned[issue.Category] = true
				continue
			}
			add(Directive{Op: OpFetchUpstreamData, SourceSystem: source, Date: date})

		default:
			unplanned[issue.Category] = true
		}
	}

	for category := range unplanned {
		plan.UnplannedCategories = append(plan.UnplannedCategories, category)
	}
	// Map iteration order is random; keep the report stable.
	sort.Strings(plan.UnplannedCategories)

	return plan
}
