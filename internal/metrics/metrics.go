// Package metrics exposes Prometheus instrumentation for the diagnostic
// service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed requests.
	OutcomeSuccess = "success"
	// OutcomeError labels failed requests.
	OutcomeError = "error"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	requestSeconds      *prometheus.HistogramVec
	phaseSeconds        *prometheus.HistogramVec
	toolExecutionsTotal *prometheus.CounterVec
	modelTokensTotal    *prometheus.CounterVec
}

// New creates the collectors. Call Register before use.
func New() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opsight",
				Name:      "requests_total",
				Help:      "Total diagnostic requests handled, partitioned by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		requestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "opsight",
				Name:      "request_seconds",
				Help:      "End-to-end request latency in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 240},
			},
			[]string{"mode"},
		),
		phaseSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "opsight",
				Name:      "phase_seconds",
				Help:      "Workflow phase latency in seconds.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"phase"},
		),
		toolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opsight",
				Name:      "tool_executions_total",
				Help:      "Total tool executions requested by the model, partitioned by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		modelTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "opsight",
				Name:      "model_tokens_total",
				Help:      "Total model tokens consumed, partitioned by phase and direction.",
			},
			[]string{"phase", "direction"},
		),
	}
}

// Register attaches the collectors to the supplied Prometheus registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestSeconds,
		m.phaseSeconds,
		m.toolExecutionsTotal,
		m.modelTokensTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(mode string, success bool, duration time.Duration) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeError
	}
	m.requestsTotal.WithLabelValues(mode, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	m.requestSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObservePhase records one workflow phase duration.
func (m *Metrics) ObservePhase(phase string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	m.phaseSeconds.WithLabelValues(phase).Observe(duration.Seconds())
}

// ObserveToolExecution records one model-requested tool execution.
func (m *Metrics) ObserveToolExecution(tool string, success bool) {
	outcome := OutcomeSuccess
	if !success {
		outcome = OutcomeError
	}
	m.toolExecutionsTotal.WithLabelValues(tool, outcome).Inc()
}

// ObserveModelUsage records token consumption for one model call.
func (m *Metrics) ObserveModelUsage(phase string, inputTokens, outputTokens int) {
	m.modelTokensTotal.WithLabelValues(phase, "input").Add(float64(inputTokens))
	m.modelTokensTotal.WithLabelValues(phase, "output").Add(float64(outputTokens))
}
