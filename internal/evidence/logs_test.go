package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsight/opsight/internal/config"
)

func testSystems() *config.SystemsFile {
	return &config.SystemsFile{
		SchemaVersion: "v1",
		Systems: []config.SystemConfig{
			{
				Name:            "risk_management",
				Enabled:         true,
				Tables:          []string{"risk_positions"},
				UpstreamSources: []string{"market_data"},
			},
			{
				Name:    "pnl_system",
				Enabled: false,
			},
		},
	}
}

func testDataLayer(t *testing.T, logDir string) *DataLayer {
	t.Helper()
	return NewDataLayer(DataLayerOptions{
		LogDir:  logDir,
		Systems: testSystems(),
	})
}

const sampleLog = `2024-03-15 09:30:01 INFO batch started
2024-03-15 09:30:05 WARN slow response from market_data
2024-03-15 09:31:12 ERROR timeout connecting to market_data feed
2024-03-15 09:31:40 ERROR validation failed for trade batch 18
2024-03-15 09:32:00 CRITICAL position recalculation aborted
2024-03-15 09:35:10 INFO perf batch_duration_seconds=412.5
2024-03-15 09:35:11 INFO perf records_per_second=1810
malformed line without level
`

func writeSampleLog(t *testing.T, dir, system, date, content string) {
	t.Helper()
	sysDir := filepath.Join(dir, system)
	require.NoError(t, os.MkdirAll(sysDir, 0o755))
	path := filepath.Join(sysDir, system+"-"+date+".log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLogSummary(t *testing.T) {
	dir := t.TempDir()
	writeSampleLog(t, dir, "risk_management", "2024-03-15", sampleLog)

	dl := testDataLayer(t, dir)

	summary, err := dl.LogSummary(context.Background(), "risk_management", "2024-03-15")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.ErrorCount, "CRITICAL lines count as errors")
	assert.Equal(t, 1, summary.WarningCount)
	require.Len(t, summary.CriticalEvents, 1)
	assert.Contains(t, summary.CriticalEvents[0], "position recalculation aborted")
	assert.Len(t, summary.SampleErrors, 3)
	assert.Equal(t, 412.5, summary.PerformanceMetrics["batch_duration_seconds"])
	assert.Equal(t, float64(1810), summary.PerformanceMetrics["records_per_second"])
}

func TestLogSummarySampleCap(t *testing.T) {
	dir := t.TempDir()

	content := ""
	for i := 0; i < 25; i++ {
		content += "2024-03-15 10:00:00 ERROR repeated failure\n"
	}
	writeSampleLog(t, dir, "risk_management", "2024-03-15", content)

	dl := testDataLayer(t, dir)

	summary, err := dl.LogSummary(context.Background(), "risk_management", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, 25, summary.ErrorCount)
	assert.Len(t, summary.SampleErrors, maxSampleErrors)
}

func TestLogSummaryValidation(t *testing.T) {
	dl := testDataLayer(t, t.TempDir())

	_, err := dl.LogSummary(context.Background(), "unknown", "2024-03-15")
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = dl.LogSummary(context.Background(), "pnl_system", "2024-03-15")
	require.Error(t, err, "disabled system must be rejected")
	assert.True(t, IsValidation(err))

	_, err = dl.LogSummary(context.Background(), "risk_management", "15/03/2024")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestLogSummaryMissingFile(t *testing.T) {
	dl := testDataLayer(t, t.TempDir())

	_, err := dl.LogSummary(context.Background(), "risk_management", "2024-03-15")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsValidation(err))
}

func TestErrorDetailsFiltering(t *testing.T) {
	dir := t.TempDir()
	writeSampleLog(t, dir, "risk_management", "2024-03-15", sampleLog)

	dl := testDataLayer(t, dir)

	details, err := dl.ErrorDetails(context.Background(), "risk_management", "2024-03-15", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 1, details.Count)
	require.Len(t, details.Samples, 1)
	assert.Contains(t, details.Samples[0], "timeout connecting")

	all, err := dl.ErrorDetails(context.Background(), "risk_management", "2024-03-15", "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count, "empty type matches every error line")

	none, err := dl.ErrorDetails(context.Background(), "risk_management", "2024-03-15", "deadlock")
	require.NoError(t, err)
	assert.Equal(t, 0, none.Count)
	assert.Empty(t, none.Samples)
}

func TestParseLogLine(t *testing.T) {
	level, msg := parseLogLine("2024-03-15 09:31:12 ERROR timeout connecting")
	assert.Equal(t, "ERROR", level)
	assert.Equal(t, "timeout connecting", msg)

	level, _ = parseLogLine("not a structured line")
	assert.Equal(t, "", level)

	level, msg = parseLogLine("2024-03-15 09:31:12 WARNING disk almost full")
	assert.Equal(t, "WARNING", level)
	assert.Equal(t, "disk almost full", msg)
}
