package orchestrator

import (
	"encoding/json"
	"strings"
)

// Response interpretation is fail-soft: the model's output is untrusted
// text, and a malformed response must never crash a request. Detection
// degrades to "no issues found", diagnosis to confidence "unknown". The
// verbatim output is preserved in RawOutput either way so operators can see
// what the model actually said.

// InterpretDetection parses the detection-phase model output.
func InterpretDetection(raw string) *DetectionResult {
	result := &DetectionResult{
		Issues:    []Issue{},
		RawOutput: raw,
	}

	payload, ok := extractJSONObject(raw)
	if !ok {
		return result
	}

	var parsed struct {
		HasIssues bool    `json:"has_issues"`
		Issues    []Issue `json:"issues"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return result
	}

	// has_issues with an empty list (or vice versa) is reconciled in favor
	// of the issue list, which is what drives planning.
	result.HasIssues = parsed.HasIssues && len(parsed.Issues) > 0
	if result.HasIssues {
		result.Issues = parsed.Issues
	}

	return result
}

// InterpretDiagnosis parses the diagnosis-phase model output.
func InterpretDiagnosis(raw string) *DiagnosisResult {
	result := &DiagnosisResult{
		Confidence:         "unknown",
		SupportingEvidence: []string{},
		RawOutput:          raw,
	}

	payload, ok := extractJSONObject(raw)
	if !ok {
		return result
	}

	var parsed struct {
		RootCause          string   `json:"root_cause"`
		Confidence         string   `json:"confidence"`
		SupportingEvidence []string `json:"supporting_evidence"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return result
	}

	if parsed.RootCause == "" {
		return result
	}

	result.RootCause = parsed.RootCause
	if isKnownConfidence(parsed.Confidence) {
		result.Confidence = parsed.Confidence
	}
	if parsed.SupportingEvidence != nil {
		result.SupportingEvidence = parsed.SupportingEvidence
	}

	return result
}

func isKnownConfidence(c string) bool {
	switch c {
	case "high", "medium", "low":
		return true
	}
	return false
}

// extractJSONObject finds the outermost JSON object in the text. Models
// occasionally wrap their JSON in prose or markdown fences; everything
// outside the braces is ignored.
func extractJSONObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := raw[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}
