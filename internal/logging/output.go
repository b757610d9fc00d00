package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// writeLog formats and writes a log line. ERROR and FATAL messages go to
// stderr, everything else to stdout.
func (l *Logger) writeLog(level, msg string, fields map[string]interface{}) {
	var sb strings.Builder

	sb.WriteString(GetTimestamp())
	sb.WriteString(" [")
	sb.WriteString(level)
	sb.WriteString("] ")
	sb.WriteString(l.name)
	sb.WriteString(": ")
	sb.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			sb.WriteString(" ")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(fmt.Sprintf("%v", fields[k]))
		}
	}

	out := os.Stdout
	if level == strError || level == "FATAL" {
		out = os.Stderr
	}
	fmt.Fprintln(out, sb.String())
}

// logf handles printf-style log messages without structured fields.
func (l *Logger) logf(level, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	l.writeLog(level, formatted, l.mergedBaseFields())
}

// mergedBaseFields combines context fields and persistent logger fields.
func (l *Logger) mergedBaseFields() map[string]interface{} {
	contextFields := extractContextFields(l.ctx)
	if contextFields == nil && len(l.fields) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(contextFields)+len(l.fields))
	for k, v := range contextFields {
		merged[k] = v
	}
	for k, v := range l.fields {
		merged[k] = v
	}
	return merged
}

// GetTimestamp returns the current timestamp formatted for log output.
// The LOG_TIMESTAMP environment variable overrides the wall clock, which
// keeps log output stable in recorded test runs.
func GetTimestamp() string {
	if ts := os.Getenv("LOG_TIMESTAMP"); ts != "" {
		return ts
	}
	return time.Now().Format(time.RFC3339)
}
