package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsight/opsight/internal/evidence"
)

// detect runs the detection phase: gather the evidence snapshot, present it
// to the model with the detection tools, and interpret the verdict. Any
// evidence fetch failure is fatal for the request; detection without its
// evidence would be guesswork.
func (o *Orchestrator) detect(ctx context.Context, requestID string, req *Request) (*DetectionResult, error) {
	phaseStart := time.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.detect")
	defer span.End()

	snapshot, err := o.gatherSnapshot(ctx, req.System, req.Date)
	if err != nil {
		return nil, err
	}

	prompt := BuildDetectionPrompt(snapshot)
	raw, err := o.runModel(ctx, requestID, "detect", detectionSystemPrompt, prompt, o.detectTools)
	if err != nil {
		return nil, err
	}

	result := InterpretDetection(raw)

	o.auditPhase(requestID, "detect", phaseStart)
	o.observePhase("detect", time.Since(phaseStart))

	return result, nil
}

// gatherSnapshot fetches the four detection inputs concurrently: log
// summaries and metrics for the date under investigation and the previous
// day. All four fetches are in flight before any completes; the first
// fatal error cancels the rest.
func (o *Orchestrator) gatherSnapshot(ctx context.Context, system, date string) (*EvidenceSnapshot, error) {
	baseline, err := previousDay(date)
	if err != nil {
		return nil, &PhaseError{Phase: "detect", Kind: ErrInvalidRequest, Err: err}
	}

	snapshot := &EvidenceSnapshot{
		System:       system,
		Date:         date,
		BaselineDate: baseline,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := o.fetchLogSummary(gctx, system, date)
		if err != nil {
			return err
		}
		snapshot.LogsToday = summary
		return nil
	})

	g.Go(func() error {
		summary, err := o.fetchLogSummary(gctx, system, baseline)
		if err != nil {
			return err
		}
		snapshot.LogsYesterday = summary
		return nil
	})

	g.Go(func() error {
		m, err := o.fetchMetrics(gctx, system, date)
		if err != nil {
			return err
		}
		snapshot.MetricsToday = m
		return nil
	})

	g.Go(func() error {
		m, err := o.fetchMetrics(gctx, system, baseline)
		if err != nil {
			return err
		}
		snapshot.MetricsYesterday = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, evidenceError("detect", err)
	}

	return snapshot, nil
}

func (o *Orchestrator) fetchLogSummary(ctx context.Context, system, date string) (*evidence.LogSummary, error) {
	fctx, cancel := context.WithTimeout(ctx, o.evidenceTimeout)
	defer cancel()
	return o.evidence.LogSummary(fctx, system, date)
}

func (o *Orchestrator) fetchMetrics(ctx context.Context, system, date string) (*evidence.MetricSnapshot, error) {
	fctx, cancel := context.WithTimeout(ctx, o.evidenceTimeout)
	defer cancel()
	return o.evidence.Metrics(fctx, system, date)
}

// previousDay returns the calendar day before an ISO date.
func previousDay(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02"), nil
}

// customQuery answers a free-form operator question against the day's
// evidence. Unlike detection, missing evidence degrades to an annotated gap
// in the prompt; only validation failures (unknown system, bad date) abort.
func (o *Orchestrator) customQuery(ctx context.Context, requestID string, req *Request) (string, error) {
	phaseStart := time.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.customQuery")
	defer span.End()

	snapshot := &EvidenceSnapshot{
		System: req.System,
		Date:   req.Date,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := o.fetchLogSummary(gctx, req.System, req.Date)
		if err != nil {
			if evidence.IsValidation(err) {
				return err
			}
			return nil
		}
		snapshot.LogsToday = summary
		return nil
	})

	g.Go(func() error {
		m, err := o.fetchMetrics(gctx, req.System, req.Date)
		if err != nil {
			if evidence.IsValidation(err) {
				return err
			}
			return nil
		}
		snapshot.MetricsToday = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", evidenceError("custom_query", err)
	}

	prompt := BuildCustomQueryPrompt(snapshot, req.SpecificQuery)
	answer, err := o.runModel(ctx, requestID, "custom_query", customQuerySystemPrompt, prompt, o.queryTools)
	if err != nil {
		return "", err
	}

	o.auditPhase(requestID, "custom_query", phaseStart)
	o.observePhase("custom_query", time.Since(phaseStart))

	return answer, nil
}
