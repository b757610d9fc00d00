// Package audit provides audit logging for the diagnostic agent. It captures
// every request, model call, tool execution, and phase outcome to a JSONL
// file for debugging, analysis, and reproducibility.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeRequestStart marks the start of a diagnostic request.
	EventTypeRequestStart EventType = "request_start"
	// EventTypeRequestComplete marks the completion of a diagnostic request.
	EventTypeRequestComplete EventType = "request_complete"
	// EventTypePhaseStart marks the start of a workflow phase.
	EventTypePhaseStart EventType = "phase_start"
	// EventTypePhaseComplete marks the completion of a workflow phase.
	EventTypePhaseComplete EventType = "phase_complete"
	// EventTypeModelRequest logs each model request with token usage.
	EventTypeModelRequest EventType = "model_request"
	// EventTypeToolStart marks the start of a tool call.
	EventTypeToolStart EventType = "tool_start"
	// EventTypeToolComplete marks the completion of a tool call.
	EventTypeToolComplete EventType = "tool_complete"
	// EventTypeDirectiveStart marks the start of a diagnostic directive.
	EventTypeDirectiveStart EventType = "directive_start"
	// EventTypeDirectiveComplete marks the completion of a diagnostic directive.
	EventTypeDirectiveComplete EventType = "directive_complete"
	// EventTypeError marks an error during processing.
	EventTypeError EventType = "error"
)

// Event represents a single audit log event.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Type is the event type.
	Type EventType `json:"type"`
	// RequestID is the diagnostic request identifier.
	RequestID string `json:"request_id"`
	// Phase is the workflow phase that generated the event (if applicable).
	Phase string `json:"phase,omitempty"`
	// Data contains event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Logger writes audit events to a JSONL file.
type Logger struct {
	file   *os.File
	writer *bufio.Writer
	mutex  sync.Mutex
}

// NewLogger creates a new audit logger that writes to the specified file
// path. If the file exists, new events are appended.
func NewLogger(filePath string) (*Logger, error) {
	// filePath is user-provided configuration for audit log location
	// #nosec G304 -- Audit log path is intentionally configurable by user
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// write writes an event to the audit log.
func (l *Logger) write(event Event) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush immediately for crash safety
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}

	return nil
}

// LogRequestStart logs the start of a diagnostic request.
func (l *Logger) LogRequestStart(requestID, mode, system, date string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeRequestStart,
		RequestID: requestID,
		Data: map[string]interface{}{
			"mode":   mode,
			"system": system,
			"date":   date,
		},
	})
}

// LogRequestComplete logs the completion of a diagnostic request.
func (l *Logger) LogRequestComplete(requestID string, success bool, duration time.Duration) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeRequestComplete,
		RequestID: requestID,
		Data: map[string]interface{}{
			"success":     success,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// LogPhaseStart logs the start of a workflow phase.
func (l *Logger) LogPhaseStart(requestID, phase string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypePhaseStart,
		RequestID: requestID,
		Phase:     phase,
	})
}

// LogPhaseComplete logs the completion of a workflow phase.
func (l *Logger) LogPhaseComplete(requestID, phase string, duration time.Duration) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypePhaseComplete,
		RequestID: requestID,
		Phase:     phase,
		Data: map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// LogModelRequest logs an individual model request with token usage.
func (l *Logger) LogModelRequest(requestID, phase, providerName, model string, inputTokens, outputTokens int, stopReason string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeModelRequest,
		RequestID: requestID,
		Phase:     phase,
		Data: map[string]interface{}{
			"provider":      providerName,
			"model":         model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
			"stop_reason":   stopReason,
		},
	})
}

// LogToolStart logs the start of a tool call.
func (l *Logger) LogToolStart(requestID, phase, toolName string, args json.RawMessage) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolStart,
		RequestID: requestID,
		Phase:     phase,
		Data: map[string]interface{}{
			"tool_name": toolName,
			"args":      truncateString(string(args), 500),
		},
	})
}

// LogToolComplete logs the completion of a tool call.
func (l *Logger) LogToolComplete(requestID, phase, toolName string, success bool, durationMs int64, summary string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeToolComplete,
		RequestID: requestID,
		Phase:     phase,
		Data: map[string]interface{}{
			"tool_name":   toolName,
			"success":     success,
			"duration_ms": durationMs,
			"summary":     summary,
		},
	})
}

// LogDirectiveStart logs the start of a diagnostic directive.
func (l *Logger) LogDirectiveStart(requestID, op, target string) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeDirectiveStart,
		RequestID: requestID,
		Phase:     "diagnosis",
		Data: map[string]interface{}{
			"op":     op,
			"target": target,
		},
	})
}

// LogDirectiveComplete logs the completion of a diagnostic directive.
func (l *Logger) LogDirectiveComplete(requestID, op, target string, success bool) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeDirectiveComplete,
		RequestID: requestID,
		Phase:     "diagnosis",
		Data: map[string]interface{}{
			"op":      op,
			"target":  target,
			"success": success,
		},
	})
}

// LogError logs an error during processing.
func (l *Logger) LogError(requestID, phase string, err error) error {
	return l.write(Event{
		Timestamp: time.Now(),
		Type:      EventTypeError,
		RequestID: requestID,
		Phase:     phase,
		Data: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

// Close closes the audit logger and flushes any pending writes.
func (l *Logger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var errs []error

	if err := l.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush audit log: %w", err))
	}

	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log file: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing audit log: %v", errs)
	}

	return nil
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
