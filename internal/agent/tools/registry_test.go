package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestTruncateResult_NilResult(t *testing.T) {
	result := truncateResult(nil, MaxToolResponseBytes)
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestTruncateResult_NilData(t *testing.T) {
	original := &Result{
		Success: true,
		Summary: "test",
	}
	result := truncateResult(original, MaxToolResponseBytes)
	if result != original {
		t.Errorf("expected original result to be returned unchanged")
	}
}

func TestTruncateResult_SmallData(t *testing.T) {
	original := &Result{
		Success: true,
		Data:    map[string]string{"key": "value"},
		Summary: "small data",
	}
	result := truncateResult(original, MaxToolResponseBytes)
	if result != original {
		t.Errorf("expected original result to be returned unchanged for small data")
	}
}

func TestTruncateResult_LargeData(t *testing.T) {
	largeString := strings.Repeat("x", 2000)
	original := &Result{
		Success:         true,
		Data:            map[string]string{"large": largeString},
		Summary:         "large data",
		ExecutionTimeMs: 100,
	}

	maxBytes := 1024
	result := truncateResult(original, maxBytes)

	if result == original {
		t.Error("expected truncated result to be different from original")
	}
	if !result.Success {
		t.Error("expected success to be preserved")
	}
	if !strings.Contains(result.Summary, "TRUNCATED") {
		t.Errorf("expected summary to mention truncation, got %q", result.Summary)
	}

	truncated, ok := result.Data.(*truncatedData)
	if !ok {
		t.Fatalf("expected truncatedData, got %T", result.Data)
	}
	if !truncated.Truncated {
		t.Error("expected Truncated flag to be set")
	}
	if len(truncated.PartialData) > maxBytes {
		t.Errorf("partial data exceeds limit: %d bytes", len(truncated.PartialData))
	}
}

type echoTool struct {
	name string
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes input" }
func (t *echoTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *echoTool) Execute(ctx context.Context, input json.RawMessage) (*Result, error) {
	return &Result{Success: true, Data: string(input)}, nil
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&echoTool{name: "echo"})

	result := r.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	if !result.Success {
		t.Fatalf("execute failed: %s", result.Error)
	}
	if result.Data != `{"a":1}` {
		t.Errorf("unexpected data: %v", result.Data)
	}
}

func TestRegistryExecute_UnknownTool(t *testing.T) {
	r := NewRegistry(nil)

	result := r.Execute(context.Background(), "missing", nil)
	if result.Success {
		t.Error("expected failure for unknown tool")
	}
	if !strings.Contains(result.Error, "not found") {
		t.Errorf("unexpected error: %s", result.Error)
	}
}

func TestToProviderTools(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&echoTool{name: "echo"})

	defs := r.ToProviderTools()
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Name != "echo" {
		t.Errorf("unexpected name: %s", defs[0].Name)
	}
	if defs[0].InputSchema == nil {
		t.Error("expected input schema")
	}
}
