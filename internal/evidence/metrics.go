package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// metricColumns allow-lists the numeric columns of system_metrics that may
// be compared. Column names reach the SQL text, so only values from this
// map are accepted.
var metricColumns = map[string]bool{
	"record_count":    true,
	"processing_time": true,
	"data_volume":     true,
	"error_rate":      true,
}

// Metrics implements Provider.Metrics. It reads one day of pipeline metrics
// from the system_metrics table.
func (d *DataLayer) Metrics(ctx context.Context, system, date string) (*MetricSnapshot, error) {
	if _, err := d.system(system); err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if d.pool == nil {
		return nil, &UnavailableError{Source: "metrics", Detail: "no database configured"}
	}

	snapshot := &MetricSnapshot{System: system, Date: date}

	err := d.pool.QueryRow(ctx, `
		SELECT run_status, record_count, processing_time, data_volume, error_rate
		FROM system_metrics
		WHERE system_name = $1 AND metric_date = $2`,
		system, date,
	).Scan(
		&snapshot.RunStatus,
		&snapshot.RecordCount,
		&snapshot.ProcessingTime,
		&snapshot.DataVolume,
		&snapshot.ErrorRate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnavailableError{
				Source: "metrics",
				Detail: fmt.Sprintf("no metrics for %s on %s", system, date),
			}
		}
		return nil, &UnavailableError{
			Source: "metrics",
			Detail: fmt.Sprintf("%s %s", system, date),
			Cause:  err,
		}
	}

	return snapshot, nil
}

// CompareMetrics implements Provider.CompareMetrics. The metric name selects
// a column via the allow-list; arbitrary identifiers never reach the query.
func (d *DataLayer) CompareMetrics(ctx context.Context, system, metric, date1, date2 string) (*MetricComparison, error) {
	if _, err := d.system(system); err != nil {
		return nil, err
	}
	if err := ValidateDate(date1); err != nil {
		return nil, err
	}
	if err := ValidateDate(date2); err != nil {
		return nil, err
	}
	if !metricColumns[metric] {
		return nil, &ValidationError{Field: "metric", Reason: fmt.Sprintf("unknown metric %q", metric)}
	}
	if d.pool == nil {
		return nil, &UnavailableError{Source: "metrics", Detail: "no database configured"}
	}

	query := fmt.Sprintf(`
		SELECT metric_date::text, %s::float8
		FROM system_metrics
		WHERE system_name = $1 AND metric_date IN ($2, $3)`, metric)

	rows, err := d.pool.Query(ctx, query, system, date1, date2)
	if err != nil {
		return nil, &UnavailableError{
			Source: "metrics",
			Detail: fmt.Sprintf("%s %s vs %s", system, date1, date2),
			Cause:  err,
		}
	}
	defer rows.Close()

	values := make(map[string]float64, 2)
	for rows.Next() {
		var day string
		var value float64
		if err := rows.Scan(&day, &value); err != nil {
			return nil, &UnavailableError{Source: "metrics", Detail: "scan failed", Cause: err}
		}
		values[day] = value
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Source: "metrics", Detail: "row iteration failed", Cause: err}
	}

	v1, ok1 := values[date1]
	v2, ok2 := values[date2]
	if !ok1 || !ok2 {
		missing := date1
		if ok1 {
			missing = date2
		}
		return nil, &UnavailableError{
			Source: "metrics",
			Detail: fmt.Sprintf("no %s for %s on %s", metric, system, missing),
		}
	}

	cmp := &MetricComparison{
		System: system,
		Metric: metric,
		Date1:  date1,
		Date2:  date2,
		Value1: v1,
		Value2: v2,
		Delta:  v1 - v2,
	}
	if v2 != 0 {
		cmp.DeltaPercent = (v1 - v2) / v2 * 100
	}

	return cmp, nil
}

// TableCompare contrasts a table's records across two business dates. This
// backs the operator comparison endpoint and is not part of the agent's
// Provider surface. The table name resolves against the systems registry
// before it reaches the query.
func (d *DataLayer) TableCompare(ctx context.Context, table, date1, date2 string) (*TableComparison, error) {
	if _, err := d.tableOwner(table); err != nil {
		return nil, err
	}
	if err := ValidateDate(date1); err != nil {
		return nil, err
	}
	if err := ValidateDate(date2); err != nil {
		return nil, err
	}
	if d.pool == nil {
		return nil, &UnavailableError{Source: "metrics", Detail: "no database configured"}
	}

	query := fmt.Sprintf(`
		WITH day1 AS (
			SELECT id FROM %s WHERE business_date = $1
		),
		day2 AS (
			SELECT id FROM %s WHERE business_date = $2
		)
		SELECT
			COUNT(*) FILTER (WHERE day1.id IS NULL) AS missing_in_day1,
			COUNT(*) FILTER (WHERE day2.id IS NULL) AS missing_in_day2,
			COUNT(*) AS total_records
		FROM day1
		FULL OUTER JOIN day2 ON day1.id = day2.id`, table, table)

	cmp := &TableComparison{Table: table, Date1: date1, Date2: date2}
	err := d.pool.QueryRow(ctx, query, date1, date2).Scan(
		&cmp.MissingInDate1,
		&cmp.MissingInDate2,
		&cmp.TotalRecords,
	)
	if err != nil {
		return nil, &UnavailableError{
			Source: "metrics",
			Detail: fmt.Sprintf("table compare %s %s vs %s", table, date1, date2),
			Cause:  err,
		}
	}

	return cmp, nil
}

// TableConsistency implements Provider.TableConsistency. It compares a
// table with its reconciliation counterpart (<table>_recon), per source,
// for one business date. The table name is interpolated into the query only
// after resolving against the systems registry.
func (d *DataLayer) TableConsistency(ctx context.Context, table, date string) (*ConsistencyReport, error) {
	if _, err := d.tableOwner(table); err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	if d.pool == nil {
		return nil, &UnavailableError{Source: "metrics", Detail: "no database configured"}
	}

	query := fmt.Sprintf(`
		WITH main AS (
			SELECT source_id, COUNT(*) AS cnt
			FROM %s
			WHERE business_date = $1
			GROUP BY source_id
		),
		recon AS (
			SELECT source_id, COUNT(*) AS cnt
			FROM %s_recon
			WHERE business_date = $1
			GROUP BY source_id
		)
		SELECT
			COALESCE(main.source_id, recon.source_id) AS source_id,
			COALESCE(main.cnt, 0) AS main_cnt,
			COALESCE(recon.cnt, 0) AS recon_cnt
		FROM main
		FULL OUTER JOIN recon ON main.source_id = recon.source_id
		ORDER BY source_id`, table, table)

	rows, err := d.pool.Query(ctx, query, date)
	if err != nil {
		return nil, &UnavailableError{
			Source: "metrics",
			Detail: fmt.Sprintf("consistency check %s %s", table, date),
			Cause:  err,
		}
	}
	defer rows.Close()

	report := &ConsistencyReport{
		Table:      table,
		Date:       date,
		Consistent: true,
	}

	for rows.Next() {
		var cmp SourceCompare
		if err := rows.Scan(&cmp.SourceID, &cmp.MainCount, &cmp.ReconCount); err != nil {
			return nil, &UnavailableError{Source: "metrics", Detail: "scan failed", Cause: err}
		}

		report.MainCount += cmp.MainCount
		report.ReconCount += cmp.ReconCount

		switch {
		case cmp.MainCount == cmp.ReconCount:
			// in sync for this source
		case cmp.MainCount == 0:
			report.Consistent = false
			report.MissingMain = append(report.MissingMain, cmp.SourceID)
		case cmp.ReconCount == 0:
			report.Consistent = false
			report.MissingRecon = append(report.MissingRecon, cmp.SourceID)
		default:
			report.Consistent = false
			report.Mismatches = append(report.Mismatches, cmp)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Source: "metrics", Detail: "row iteration failed", Cause: err}
	}

	return report, nil
}
