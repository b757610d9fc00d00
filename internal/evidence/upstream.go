package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// upstreamResponse is the wire shape of a source system's delivery report.
type upstreamResponse struct {
	SourceSystem string `json:"source_system"`
	Date         string `json:"date"`
	RecordCount  int64  `json:"record_count"`
	Status       string `json:"status"`
}

// UpstreamData implements Provider.UpstreamData. It asks the upstream
// source what it sent for the date and compares against local receipts in
// the upstream_deliveries table.
func (d *DataLayer) UpstreamData(ctx context.Context, sourceSystem, date string) (*UpstreamReport, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	baseURL, err := d.upstreamBaseURL(sourceSystem)
	if err != nil {
		return nil, err
	}

	sent, status, err := d.fetchUpstreamReport(ctx, baseURL, sourceSystem, date)
	if err != nil {
		return nil, err
	}

	received, err := d.localReceivedCount(ctx, sourceSystem, date)
	if err != nil {
		return nil, err
	}

	return &UpstreamReport{
		SourceSystem:  sourceSystem,
		Date:          date,
		SentCount:     sent,
		ReceivedCount: received,
		Discrepancy:   sent - received,
		SourceStatus:  status,
	}, nil
}

func (d *DataLayer) fetchUpstreamReport(ctx context.Context, baseURL, sourceSystem, date string) (int64, string, error) {
	url := fmt.Sprintf("%s/api/v1/deliveries/%s/%s", baseURL, sourceSystem, date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", &UnavailableError{Source: "upstream", Detail: sourceSystem, Cause: err}
	}

	resp, err := d.upstream.Do(req)
	if err != nil {
		return 0, "", &UnavailableError{Source: "upstream", Detail: sourceSystem, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, "", &UnavailableError{
			Source: "upstream",
			Detail: fmt.Sprintf("%s returned %d: %s", sourceSystem, resp.StatusCode, string(body)),
		}
	}

	var report upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return 0, "", &UnavailableError{Source: "upstream", Detail: sourceSystem, Cause: err}
	}

	return report.RecordCount, report.Status, nil
}

// localReceivedCount reads how many records this side recorded as received
// from the source for the date. A missing row means nothing arrived, which
// is itself evidence, so it maps to zero rather than an error.
func (d *DataLayer) localReceivedCount(ctx context.Context, sourceSystem, date string) (int64, error) {
	if d.pool == nil {
		return 0, &UnavailableError{Source: "metrics", Detail: "no database configured"}
	}

	var count int64
	err := d.pool.QueryRow(ctx, `
		SELECT received_count
		FROM upstream_deliveries
		WHERE source_system = $1 AND delivery_date = $2`,
		sourceSystem, date,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, &UnavailableError{
			Source: "metrics",
			Detail: fmt.Sprintf("upstream_deliveries %s %s", sourceSystem, date),
			Cause:  err,
		}
	}

	return count, nil
}
