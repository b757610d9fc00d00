package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsight/opsight/internal/logging"
)

// diagnose runs the diagnosis phase. The plan is derived from the detected
// issues before any directive executes and does not change afterwards.
// Directives run concurrently; a failed directive becomes a placeholder in
// the diagnosis prompt rather than aborting the phase.
func (o *Orchestrator) diagnose(ctx context.Context, requestID string, req *Request, detection *DetectionResult) (*DiagnosisResult, error) {
	phaseStart := time.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.diagnose")
	defer span.End()

	plan := BuildPlan(detection, req.System, req.Date)

	o.logger.WithField("request_id", requestID).InfoWithFields("diagnostic plan built",
		logging.Field("directives", len(plan.Directives)),
		logging.Field("unplanned_categories", len(plan.UnplannedCategories)),
	)

	outcomes := o.executePlan(ctx, requestID, plan)

	prompt := BuildDiagnosisPrompt(req.System, req.Date, detection, outcomes)
	raw, err := o.runModel(ctx, requestID, "diagnose", diagnosisSystemPrompt, prompt, o.diagnoseTools)
	if err != nil {
		return nil, err
	}

	result := InterpretDiagnosis(raw)

	o.auditPhase(requestID, "diagnose", phaseStart)
	o.observePhase("diagnose", time.Since(phaseStart))

	return result, nil
}

// executePlan runs every directive concurrently and returns outcomes in
// plan order. Each directive gets its own timeout; failures degrade to
// placeholder outcomes.
func (o *Orchestrator) executePlan(ctx context.Context, requestID string, plan *DiagnosticPlan) []DirectiveOutcome {
	outcomes := make([]DirectiveOutcome, len(plan.Directives))

	var wg sync.WaitGroup
	for i, directive := range plan.Directives {
		wg.Add(1)
		go func(i int, d Directive) {
			defer wg.Done()
			outcomes[i] = o.executeDirective(ctx, requestID, d)
		}(i, directive)
	}
	wg.Wait()

	return outcomes
}

func (o *Orchestrator) executeDirective(ctx context.Context, requestID string, d Directive) DirectiveOutcome {
	dctx, cancel := context.WithTimeout(ctx, o.evidenceTimeout)
	defer cancel()

	if o.audit != nil {
		if err := o.audit.LogDirectiveStart(requestID, d.Op, d.Target()); err != nil {
			o.logger.Warn("audit write failed: %v", err)
		}
	}

	var ev interface{}
	var err error

	switch d.Op {
	case OpCheckTableConsistency:
		ev, err = o.evidence.TableConsistency(dctx, d.Table, d.Date)
	case OpFetchUpstreamData:
		ev, err = o.evidence.UpstreamData(dctx, d.SourceSystem, d.Date)
	default:
		err = fmt.Errorf("unknown directive op %q", d.Op)
	}

	if o.audit != nil {
		if aerr := o.audit.LogDirectiveComplete(requestID, d.Op, d.Target(), err == nil); aerr != nil {
			o.logger.Warn("audit write failed: %v", aerr)
		}
	}

	if err != nil {
		o.logger.WithField("request_id", requestID).WarnWithFields("directive failed",
			logging.Field("op", d.Op),
			logging.Field("target", d.Target()),
			logging.Field("error", err.Error()),
		)
		return DirectiveOutcome{Directive: d, Failed: true, Error: err.Error()}
	}

	return DirectiveOutcome{Directive: d, Evidence: ev}
}
