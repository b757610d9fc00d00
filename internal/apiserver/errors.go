package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/opsight/opsight/internal/agent/orchestrator"
	"github.com/opsight/opsight/internal/evidence"
)

// errorResponse is the JSON error record returned by every endpoint.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Phase   string `json:"phase,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeWorkflowError maps an orchestrator failure onto an HTTP status. The
// error kind, not the message, decides the status so clients can branch on
// it.
func writeWorkflowError(w http.ResponseWriter, err error) {
	pe, ok := orchestrator.AsPhaseError(err)
	if !ok {
		if evidence.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch pe.Kind {
	case orchestrator.ErrInvalidRequest:
		status = http.StatusBadRequest
	case orchestrator.ErrEvidenceUnavailable:
		status = http.StatusServiceUnavailable
	case orchestrator.ErrModelTimeout:
		status = http.StatusGatewayTimeout
	case orchestrator.ErrModelUnavailable:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, errorResponse{
		Error:   string(pe.Kind),
		Message: pe.Err.Error(),
		Phase:   pe.Phase,
	})
}

// writeEvidenceError maps a direct evidence endpoint failure.
func writeEvidenceError(w http.ResponseWriter, err error) {
	switch {
	case evidence.IsValidation(err):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case evidence.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "EVIDENCE_UNAVAILABLE", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
