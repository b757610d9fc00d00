package apiserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/opsight/opsight/internal/agent/orchestrator"
)

// agentRequest is the JSON body of the agent endpoints. The mode comes from
// the route, not the body.
type agentRequest struct {
	System string `json:"system"`
	Date   string `json:"date"`
	Query  string `json:"query,omitempty"`
}

func (s *Server) handleDetectIssues(w http.ResponseWriter, r *http.Request) {
	s.runAgent(w, r, orchestrator.ModeIssueDetection)
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	s.runAgent(w, r, orchestrator.ModeFullDiagnosis)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.runAgent(w, r, orchestrator.ModeCustomQuery)
}

func (s *Server) runAgent(w http.ResponseWriter, r *http.Request, mode orchestrator.Mode) {
	var body agentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed JSON body: "+err.Error())
		return
	}

	result, err := s.orchestrator.Execute(r.Context(), &orchestrator.Request{
		Mode:          mode,
		System:        body.System,
		Date:          body.Date,
		SpecificQuery: body.Query,
	})
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleLogs serves GET /api/v1/logs/{system}/{date}.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/logs/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "expected /api/v1/logs/{system}/{date}")
		return
	}

	summary, err := s.data.LogSummary(r.Context(), parts[0], parts[1])
	if err != nil {
		writeEvidenceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleCompareData serves
// GET /api/v1/compare-data/{system}/{table}?date1=&date2=.
func (s *Server) handleCompareData(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/v1/compare-data/")
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "expected /api/v1/compare-data/{system}/{table}")
		return
	}

	date1 := r.URL.Query().Get("date1")
	date2 := r.URL.Query().Get("date2")
	if date1 == "" || date2 == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "date1 and date2 query parameters are required")
		return
	}

	comparison, err := s.data.TableCompare(r.Context(), parts[1], date1, date2)
	if err != nil {
		writeEvidenceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comparison)
}

// splitPath strips the route prefix and splits the remainder into non-empty
// segments.
func splitPath(path, prefix string) []string {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
