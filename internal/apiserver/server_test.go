package apiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsight/opsight/internal/agent/orchestrator"
	"github.com/opsight/opsight/internal/agent/provider"
	"github.com/opsight/opsight/internal/config"
	"github.com/opsight/opsight/internal/evidence"
)

// stubEvidence serves canned evidence to the orchestrator in agent
// endpoint tests.
type stubEvidence struct{}

func (stubEvidence) LogSummary(ctx context.Context, system, date string) (*evidence.LogSummary, error) {
	return &evidence.LogSummary{System: system, Date: date, ErrorCount: 1}, nil
}

func (stubEvidence) Metrics(ctx context.Context, system, date string) (*evidence.MetricSnapshot, error) {
	return &evidence.MetricSnapshot{System: system, Date: date, RunStatus: "success"}, nil
}

func (stubEvidence) ErrorDetails(ctx context.Context, system, date, errorType string) (*evidence.ErrorDetails, error) {
	return &evidence.ErrorDetails{System: system, Date: date, ErrorType: errorType}, nil
}

func (stubEvidence) CompareMetrics(ctx context.Context, system, metric, date1, date2 string) (*evidence.MetricComparison, error) {
	return &evidence.MetricComparison{System: system, Metric: metric}, nil
}

func (stubEvidence) TableConsistency(ctx context.Context, table, date string) (*evidence.ConsistencyReport, error) {
	return &evidence.ConsistencyReport{Table: table, Date: date, Consistent: true}, nil
}

func (stubEvidence) UpstreamData(ctx context.Context, sourceSystem, date string) (*evidence.UpstreamReport, error) {
	return &evidence.UpstreamReport{SourceSystem: sourceSystem, Date: date}, nil
}

func testSystems() *config.SystemsFile {
	return &config.SystemsFile{
		SchemaVersion: "v1",
		Systems: []config.SystemConfig{
			{
				Name:    "risk_management",
				Enabled: true,
				Tables:  []string{"risk_positions"},
			},
		},
	}
}

func newTestServer(t *testing.T, mock *provider.MockProvider, logDir string) *Server {
	t.Helper()

	orch := orchestrator.New(orchestrator.Options{
		Provider: mock,
		Evidence: stubEvidence{},
	})
	data := evidence.NewDataLayer(evidence.DataLayerOptions{
		LogDir:  logDir,
		Systems: testSystems(),
	})
	return New(0, orch, data, nil)
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestDetectIssuesEndpoint(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.EnqueueText(`{"has_issues": true, "issues": [{"category": "error_rate_spike", "severity": "high", "description": "spike", "table": "risk_positions"}]}`)
	s := newTestServer(t, mock, t.TempDir())

	rec := postJSON(t, s.Handler(), "/api/v1/detect-issues", `{"system": "risk_management", "date": "2024-03-15"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `"mode":"issue_detection"`)
	assert.Contains(t, body, `"has_issues":true`)
	assert.NotContains(t, body, "root_cause", "detection-only responses carry no diagnosis keys")
}

func TestDiagnoseEndpoint(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.EnqueueText(`{"has_issues": true, "issues": [{"category": "error_rate_spike", "severity": "high", "description": "spike", "table": "risk_positions"}]}`)
	mock.EnqueueText(`{"root_cause": "recon lag", "confidence": "high", "supporting_evidence": ["recon trails main"]}`)
	s := newTestServer(t, mock, t.TempDir())

	rec := postJSON(t, s.Handler(), "/api/v1/diagnose", `{"system": "risk_management", "date": "2024-03-15"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, `"root_cause":"recon lag"`)
	assert.Contains(t, body, `"has_issues":true`)
}

func TestQueryEndpoint(t *testing.T) {
	mock := provider.NewMockProvider()
	mock.EnqueueText("no anomalies in the logs for that date")
	s := newTestServer(t, mock, t.TempDir())

	rec := postJSON(t, s.Handler(), "/api/v1/query",
		`{"system": "risk_management", "date": "2024-03-15", "query": "anything unusual?"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"answer":"no anomalies in the logs for that date"`)
}

func TestAgentEndpointErrorMapping(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t, provider.NewMockProvider(), t.TempDir())
		rec := postJSON(t, s.Handler(), "/api/v1/detect-issues", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
	})

	t.Run("validation failure", func(t *testing.T) {
		s := newTestServer(t, provider.NewMockProvider(), t.TempDir())
		rec := postJSON(t, s.Handler(), "/api/v1/detect-issues", `{"system": "risk_management", "date": "not-a-date"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_request")
		assert.Contains(t, rec.Body.String(), `"phase":"validate"`)
	})

	t.Run("model unavailable", func(t *testing.T) {
		mock := provider.NewMockProvider() // empty queue fails the chat call
		s := newTestServer(t, mock, t.TempDir())
		rec := postJSON(t, s.Handler(), "/api/v1/detect-issues", `{"system": "risk_management", "date": "2024-03-15"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "model_unavailable")
	})
}

func TestLogsEndpoint(t *testing.T) {
	logDir := t.TempDir()
	sysDir := filepath.Join(logDir, "risk_management")
	require.NoError(t, os.MkdirAll(sysDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(sysDir, "risk_management-2024-03-15.log"),
		[]byte("2024-03-15 10:00:00 ERROR feed timeout\n2024-03-15 10:00:01 INFO retrying\n"),
		0o644,
	))

	s := newTestServer(t, provider.NewMockProvider(), logDir)
	handler := s.Handler()

	rec := get(t, handler, "/api/v1/logs/risk_management/2024-03-15")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"error_count":1`)

	rec = get(t, handler, "/api/v1/logs/unknown_system/2024-03-15")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, handler, "/api/v1/logs/risk_management/2024-03-16")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "log file absent")

	rec = get(t, handler, "/api/v1/logs/risk_management")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompareDataEndpoint(t *testing.T) {
	s := newTestServer(t, provider.NewMockProvider(), t.TempDir())
	handler := s.Handler()

	rec := get(t, handler, "/api/v1/compare-data/risk_management/risk_positions")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing date parameters")

	rec = get(t, handler, "/api/v1/compare-data/risk_management/secret_table?date1=2024-03-14&date2=2024-03-15")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unregistered table rejected")

	rec = get(t, handler, "/api/v1/compare-data/risk_management/risk_positions?date1=2024-03-14&date2=2024-03-15")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "no database configured")
}

func TestMethodEnforcement(t *testing.T) {
	s := newTestServer(t, provider.NewMockProvider(), t.TempDir())

	rec := get(t, s.Handler(), "/api/v1/detect-issues")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "METHOD_NOT_ALLOWED")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, provider.NewMockProvider(), t.TempDir())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/detect-issues", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, provider.NewMockProvider(), t.TempDir())
	handler := s.Handler()

	rec := get(t, handler, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, handler, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.readinessChecker = notReady{}
	rec = get(t, handler, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type notReady struct{}

func (notReady) IsReady() bool { return false }
