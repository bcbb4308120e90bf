package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/stacker/internal/allocation"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/bobmcallan/stacker/internal/models"
	"github.com/bobmcallan/stacker/internal/schedule"
	"github.com/bobmcallan/stacker/internal/services/execution"
	"github.com/bobmcallan/stacker/internal/services/plan"
	"github.com/bobmcallan/stacker/internal/services/portfolio"
)

// requireUser returns the caller's user ID, writing 401 when none was resolved.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := common.ResolveUserID(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return userID, true
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, plan.ErrInvalidPlan):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), execution.CodeInvalidPlan)
	case errors.Is(err, portfolio.ErrInvalidPortfolio):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "INVALID_PORTFOLIO")
	case errors.Is(err, execution.ErrExecutionConfirmed):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		var verr *allocation.ValidationError
		if errors.As(err, &verr) {
			WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), string(verr.Kind))
			return
		}
		s.logger.Error().Err(err).Msg("Request failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- plan ---

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		p, err := s.app.PlanService.GetActivePlan(r.Context(), userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "No active plan")
			return
		}
		WriteJSON(w, http.StatusOK, p)
		return
	}

	var p models.Plan
	if !DecodeJSON(w, r, &p) {
		return
	}
	p.UserID = userID
	saved, err := s.app.PlanService.SavePlan(r.Context(), &p)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}

// --- portfolio ---

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		p, err := s.app.PortfolioService.GetActivePortfolio(r.Context(), userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if p == nil {
			WriteError(w, http.StatusNotFound, "No active portfolio")
			return
		}
		WriteJSON(w, http.StatusOK, p)
		return
	}

	var p models.Portfolio
	if !DecodeJSON(w, r, &p) {
		return
	}
	p.UserID = userID
	saved, err := s.app.PortfolioService.SavePortfolio(r.Context(), &p)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}

// --- executions ---

// triggerRequest is the body of POST /api/executions/trigger. Force is a
// pointer so an omitted field can default to true.
type triggerRequest struct {
	DryRun bool  `json:"dryRun"`
	Force  *bool `json:"force"`
}

// triggerStatus maps a run outcome to an HTTP status. Every outcome carries
// the full result body.
func triggerStatus(result *models.ProcessResult) int {
	switch result.Status {
	case models.ProcessStatusCreated:
		if result.DryRun {
			return http.StatusOK
		}
		return http.StatusCreated
	case models.ProcessStatusError:
		switch result.ErrorCode {
		case execution.CodePriceFetchFailed, execution.CodeInvalidExchangeRate:
			return http.StatusBadGateway
		case execution.CodeStorage:
			return http.StatusInternalServerError
		default:
			return http.StatusUnprocessableEntity
		}
	default:
		return http.StatusOK
	}
}

func (s *Server) handleExecutionTrigger(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req triggerRequest
	if !DecodeOptionalJSON(w, r, &req) {
		return
	}
	opts := models.ProcessOptions{DryRun: req.DryRun, Force: true}
	if req.Force != nil {
		opts.Force = *req.Force
	}

	result := s.app.ExecutionService.Process(r.Context(), userID, opts)
	WriteJSON(w, triggerStatus(result), result)
}

func (s *Server) handleExecutionList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = schedule.YearMonth(schedule.Today(time.Now(), s.app.Config.LoadLocation()))
	}
	if _, err := schedule.PreviousYearMonth(month); err != nil {
		WriteError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	list, err := s.app.ExecutionService.ListExecutions(r.Context(), userID, month)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"month":      month,
		"executions": list,
	})
}

func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request, ymCycle string) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if _, _, err := schedule.ParseYMCycle(ymCycle); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.ExecutionService.DeleteExecution(r.Context(), userID, ymCycle); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	exec, err := s.app.ExecutionService.GetExecution(r.Context(), userID, ymCycle)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, exec)
}

func (s *Server) handleExecutionConfirm(w http.ResponseWriter, r *http.Request, ymCycle string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if _, _, err := schedule.ParseYMCycle(ymCycle); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	if !DecodeOptionalJSON(w, r, &req) {
		return
	}

	exec, err := s.app.ExecutionService.ConfirmExecution(r.Context(), userID, ymCycle, req.Note)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, exec)
}
