package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsight/opsight/internal/agent/audit"
	"github.com/opsight/opsight/internal/agent/provider"
	"github.com/opsight/opsight/internal/agent/tools"
	"github.com/opsight/opsight/internal/evidence"
	"github.com/opsight/opsight/internal/logging"
	"github.com/opsight/opsight/internal/metrics"
)

// Orchestrator owns the diagnostic workflow state machine. It is safe for
// concurrent use; each Execute call is independent.
type Orchestrator struct {
	provider      provider.Provider
	evidence      evidence.Provider
	detectTools   *tools.Registry
	diagnoseTools *tools.Registry
	queryTools    *tools.Registry
	audit         *audit.Logger
	metrics       *metrics.Metrics
	logger        *logging.Logger
	tracer        trace.Tracer

	modelTimeout    time.Duration
	evidenceTimeout time.Duration
	maxToolRounds   int
}

// Options configures an Orchestrator. Provider and Evidence are required;
// Audit and Metrics are optional.
type Options struct {
	Provider provider.Provider
	Evidence evidence.Provider
	Audit    *audit.Logger
	Metrics  *metrics.Metrics

	// ModelTimeout bounds each individual model call. Default 120s.
	ModelTimeout time.Duration

	// EvidenceTimeout bounds each individual evidence fetch. Default 30s.
	EvidenceTimeout time.Duration

	// MaxToolRounds bounds tool-use rounds per model phase. Default 4.
	MaxToolRounds int

	// ToolLogger is passed to the tool registries.
	ToolLogger *slog.Logger
}

// New creates an Orchestrator. The per-phase tool registries are built
// here; detection and diagnosis each see only their own tools.
func New(opts Options) *Orchestrator {
	if opts.ModelTimeout == 0 {
		opts.ModelTimeout = 120 * time.Second
	}
	if opts.EvidenceTimeout == 0 {
		opts.EvidenceTimeout = 30 * time.Second
	}
	if opts.MaxToolRounds == 0 {
		opts.MaxToolRounds = 4
	}

	return &Orchestrator{
		provider:        opts.Provider,
		evidence:        opts.Evidence,
		detectTools:     tools.NewRegistryForPhase(tools.PhaseDetection, opts.Evidence, opts.ToolLogger),
		diagnoseTools:   tools.NewRegistryForPhase(tools.PhaseDiagnosis, opts.Evidence, opts.ToolLogger),
		queryTools:      tools.NewRegistryForPhase(tools.PhaseCustomQuery, opts.Evidence, opts.ToolLogger),
		audit:           opts.Audit,
		metrics:         opts.Metrics,
		logger:          logging.GetLogger("orchestrator"),
		tracer:          otel.Tracer("opsight/orchestrator"),
		modelTimeout:    opts.ModelTimeout,
		evidenceTimeout: opts.EvidenceTimeout,
		maxToolRounds:   opts.MaxToolRounds,
	}
}

// Execute runs one diagnostic request to completion.
//
// Detection-phase failures (evidence or model) abort the request with a
// PhaseError. Diagnosis directives degrade to placeholders individually,
// but a diagnosis model failure also aborts.
func (o *Orchestrator) Execute(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	// An omitted date means the current day.
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	if err := req.Validate(); err != nil {
		o.observeRequest(req.Mode, false, time.Since(start))
		return nil, err
	}

	requestID := uuid.NewString()
	reqLogger := o.logger.WithField("request_id", requestID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.Execute", trace.WithAttributes(
		attribute.String("request.mode", string(req.Mode)),
		attribute.String("request.system", req.System),
		attribute.String("request.date", req.Date),
	))
	defer span.End()

	o.auditRequestStart(requestID, req)
	reqLogger.InfoWithFields("request accepted",
		logging.Field("mode", string(req.Mode)),
		logging.Field("system", req.System),
		logging.Field("date", req.Date),
	)

	result := &Result{
		RequestID: requestID,
		Mode:      req.Mode,
		System:    req.System,
		Date:      req.Date,
	}

	var err error
	switch req.Mode {
	case ModeIssueDetection:
		result.DetectionResult, err = o.detect(ctx, requestID, req)

	case ModeFullDiagnosis:
		result.DetectionResult, err = o.detect(ctx, requestID, req)
		if err == nil && result.DetectionResult.HasIssues {
			result.DiagnosisResult, err = o.diagnose(ctx, requestID, req, result.DetectionResult)
		}

	case ModeCustomQuery:
		result.Answer, err = o.customQuery(ctx, requestID, req)
	}

	if err != nil {
		o.auditError(requestID, err)
		o.auditRequestComplete(requestID, false, time.Since(start))
		o.observeRequest(req.Mode, false, time.Since(start))
		reqLogger.ErrorWithErr("request failed", err)
		return nil, err
	}

	o.auditRequestComplete(requestID, true, time.Since(start))
	o.observeRequest(req.Mode, true, time.Since(start))
	reqLogger.InfoWithFields("request complete",
		logging.Field("duration_ms", time.Since(start).Milliseconds()),
	)

	return result, nil
}

func (o *Orchestrator) observeRequest(mode Mode, success bool, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObserveRequest(string(mode), success, d)
	}
}

func (o *Orchestrator) observePhase(phase string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.ObservePhase(phase, d)
	}
}

func (o *Orchestrator) auditRequestStart(requestID string, req *Request) {
	if o.audit == nil {
		return
	}
	if err := o.audit.LogRequestStart(requestID, string(req.Mode), req.System, req.Date); err != nil {
		o.logger.Warn("audit write failed: %v", err)
	}
}

func (o *Orchestrator) auditRequestComplete(requestID string, success bool, d time.Duration) {
	if o.audit == nil {
		return
	}
	if err := o.audit.LogRequestComplete(requestID, success, d); err != nil {
		o.logger.Warn("audit write failed: %v", err)
	}
}

func (o *Orchestrator) auditPhase(requestID, phase string, start time.Time) {
	if o.audit == nil {
		return
	}
	if err := o.audit.LogPhaseComplete(requestID, phase, time.Since(start)); err != nil {
		o.logger.Warn("audit write failed: %v", err)
	}
}

func (o *Orchestrator) auditError(requestID string, err error) {
	if o.audit == nil {
		return
	}
	phase := "execute"
	if pe, ok := AsPhaseError(err); ok {
		phase = pe.Phase
	}
	if werr := o.audit.LogError(requestID, phase, err); werr != nil {
		o.logger.Warn("audit write failed: %v", werr)
	}
}
