package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/stacker/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Plan and portfolio
	mux.HandleFunc("/api/plan", s.handlePlan)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)

	// Executions
	mux.HandleFunc("/api/executions/trigger", s.handleExecutionTrigger)
	mux.HandleFunc("/api/executions/", s.routeExecutions) // handles {ymCycle} and {ymCycle}/confirm
	mux.HandleFunc("/api/executions", s.handleExecutionList)
}

// routeExecutions dispatches /api/executions/{ymCycle}[/confirm].
// The cycle key contains '#', which clients send as %23.
func (s *Server) routeExecutions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/executions/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "ymCycle is required in path")
		return
	}

	if ymCycle, ok := strings.CutSuffix(path, "/confirm"); ok {
		s.handleExecutionConfirm(w, r, ymCycle)
		return
	}
	if strings.Contains(path, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.handleExecution(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, common.CurrentBuild())
}
