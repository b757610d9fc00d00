package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal audit line: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func TestLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if err := l.LogRequestStart("req-1", "full_diagnosis", "risk_management", "2024-03-15"); err != nil {
		t.Fatal(err)
	}
	if err := l.LogPhaseStart("req-1", "detect"); err != nil {
		t.Fatal(err)
	}
	if err := l.LogModelRequest("req-1", "detect", "anthropic", "claude-sonnet-4-5-20250929", 1200, 150, "end_turn"); err != nil {
		t.Fatal(err)
	}
	if err := l.LogToolComplete("req-1", "detect", "compare_metrics", true, 42, "compared record_count"); err != nil {
		t.Fatal(err)
	}
	if err := l.LogRequestComplete("req-1", true, 3*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, path)
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	if events[0].Type != EventTypeRequestStart {
		t.Errorf("first event type %q", events[0].Type)
	}
	if events[0].RequestID != "req-1" {
		t.Errorf("request id %q", events[0].RequestID)
	}
	if events[2].Data["total_tokens"].(float64) != 1350 {
		t.Errorf("total tokens %v", events[2].Data["total_tokens"])
	}
	if events[4].Data["duration_ms"].(float64) != 3000 {
		t.Errorf("duration %v", events[4].Data["duration_ms"])
	}
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l1, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l1.LogPhaseStart("req-1", "detect"); err != nil {
		t.Fatal(err)
	}
	if err := l1.Close(); err != nil {
		t.Fatal(err)
	}

	l2, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l2.LogPhaseStart("req-2", "detect"); err != nil {
		t.Fatal(err)
	}
	if err := l2.Close(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].RequestID != "req-2" {
		t.Errorf("second event request id %q", events[1].RequestID)
	}
}

func TestToolArgsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	big := make([]byte, 2000)
	for i := range big {
		big[i] = 'a'
	}
	args, _ := json.Marshal(map[string]string{"blob": string(big)})

	if err := l.LogToolStart("req-1", "detect", "get_error_details", args); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, path)
	got := events[0].Data["args"].(string)
	if len(got) > 600 {
		t.Errorf("args not truncated: %d bytes", len(got))
	}
}
