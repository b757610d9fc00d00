package evidence

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxSampleErrors caps the number of raw error lines included in a summary
// so log evidence stays within prompt-friendly bounds.
const maxSampleErrors = 10

// LogSummary implements Provider.LogSummary. It reads the system's daily
// log file (<logDir>/<subdir>/<system>-<date>.log) and aggregates level
// counts, critical events, performance lines, and a capped error sample.
func (d *DataLayer) LogSummary(ctx context.Context, system, date string) (*LogSummary, error) {
	sys, err := d.system(system)
	if err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	path := d.logFilePath(sys.Name, sys.LogSubdir, date)

	f, err := os.Open(path)
	if err != nil {
		return nil, &UnavailableError{
			Source: "logs",
			Detail: fmt.Sprintf("%s %s", system, date),
			Cause:  err,
		}
	}
	defer f.Close()

	summary := &LogSummary{
		System:         system,
		Date:           date,
		CriticalEvents: []string{},
		SampleErrors:   []string{},
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Text()
		level, message := parseLogLine(line)

		switch level {
		case "ERROR":
			summary.ErrorCount++
			if len(summary.SampleErrors) < maxSampleErrors {
				summary.SampleErrors = append(summary.SampleErrors, line)
			}
		case "WARN", "WARNING":
			summary.WarningCount++
		case "CRITICAL", "FATAL":
			summary.ErrorCount++
			summary.CriticalEvents = append(summary.CriticalEvents, line)
			if len(summary.SampleErrors) < maxSampleErrors {
				summary.SampleErrors = append(summary.SampleErrors, line)
			}
		}

		if key, value, ok := parsePerfLine(message); ok {
			if summary.PerformanceMetrics == nil {
				summary.PerformanceMetrics = make(map[string]float64)
			}
			summary.PerformanceMetrics[key] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &UnavailableError{
			Source: "logs",
			Detail: fmt.Sprintf("%s %s", system, date),
			Cause:  err,
		}
	}

	return summary, nil
}

// ErrorDetails implements Provider.ErrorDetails. It re-scans the daily log
// and collects lines whose message contains the requested error type.
// An empty errorType matches every error line.
func (d *DataLayer) ErrorDetails(ctx context.Context, system, date, errorType string) (*ErrorDetails, error) {
	sys, err := d.system(system)
	if err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}

	path := d.logFilePath(sys.Name, sys.LogSubdir, date)

	f, err := os.Open(path)
	if err != nil {
		return nil, &UnavailableError{
			Source: "logs",
			Detail: fmt.Sprintf("%s %s", system, date),
			Cause:  err,
		}
	}
	defer f.Close()

	details := &ErrorDetails{
		System:    system,
		Date:      date,
		ErrorType: errorType,
		Samples:   []string{},
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Text()
		level, message := parseLogLine(line)
		if level != "ERROR" && level != "CRITICAL" && level != "FATAL" {
			continue
		}
		if errorType != "" && !strings.Contains(strings.ToLower(message), strings.ToLower(errorType)) {
			continue
		}

		details.Count++
		if len(details.Samples) < maxSampleErrors {
			details.Samples = append(details.Samples, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &UnavailableError{
			Source: "logs",
			Detail: fmt.Sprintf("%s %s", system, date),
			Cause:  err,
		}
	}

	return details, nil
}

func (d *DataLayer) logFilePath(system, subdir, date string) string {
	if subdir == "" {
		subdir = system
	}
	return filepath.Join(d.logDir, subdir, fmt.Sprintf("%s-%s.log", system, date))
}

// parseLogLine splits a log line into its level and message. Expected
// shape: "2024-03-15 09:30:01 ERROR message...". Lines that do not match
// return an empty level.
func parseLogLine(line string) (level, message string) {
	fields := strings.SplitN(line, " ", 4)
	if len(fields) < 3 {
		return "", line
	}

	candidate := strings.ToUpper(fields[2])
	switch candidate {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "CRITICAL", "FATAL":
		if len(fields) == 4 {
			return candidate, fields[3]
		}
		return candidate, ""
	}
	return "", line
}

// parsePerfLine extracts "perf <name>=<value>" measurements emitted by the
// batch pipelines.
func parsePerfLine(message string) (string, float64, bool) {
	const prefix = "perf "
	if !strings.HasPrefix(message, prefix) {
		return "", 0, false
	}

	kv := strings.SplitN(strings.TrimPrefix(message, prefix), "=", 2)
	if len(kv) != 2 {
		return "", 0, false
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(kv[0]), value, true
}
