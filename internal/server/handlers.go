package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- Tasks ---

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.orch.CreateTask(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"task": task})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := models.TaskStatus(r.URL.Query().Get("status"))
	tasks, err := s.tasks.List(status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.orch.Claim(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) handleFulfillTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitFulfillmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.orch.Fulfill(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) handleScoreTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitScoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.orch.Score(r.Context(), r.PathValue("id"), req)
	if err != nil && !errors.Is(err, types.ErrEscrow) {
		s.writeError(w, err)
		return
	}
	body := map[string]any{"task": res.Task, "autoApproved": res.AutoApproved}
	if err != nil {
		// Decision committed; only settlement is pending.
		body["settlementError"] = err.Error()
		s.writeJSON(w, http.StatusBadGateway, body)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleVerifyTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitVerificationRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.orch.Verify(r.Context(), r.PathValue("id"), req)
	if err != nil && !errors.Is(err, types.ErrEscrow) {
		s.writeError(w, err)
		return
	}
	body := map[string]any{
		"task":            res.Task,
		"outcome":         res.Outcome,
		"supervisorDelta": res.SupervisorDelta,
	}
	if res.NewTask != nil {
		body["newTask"] = res.NewTask
	}
	if err != nil {
		body["settlementError"] = err.Error()
		s.writeJSON(w, http.StatusBadGateway, body)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

// --- Legacy single-resolver flow ---

func (s *Server) handleAnswerTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitAnswerRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.orch.Answer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) handleConfirmTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orch.Confirm(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, types.ErrEscrow) {
		s.writeError(w, err)
		return
	}
	body := map[string]any{"task": task}
	if err != nil {
		body["settlementError"] = err.Error()
		s.writeJSON(w, http.StatusBadGateway, body)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRejectTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orch.Reject(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, types.ErrEscrow) {
		s.writeError(w, err)
		return
	}
	body := map[string]any{"task": task}
	if err != nil {
		body["settlementError"] = err.Error()
		s.writeJSON(w, http.StatusBadGateway, body)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

// --- Agents & trust ---

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterAgentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := models.ValidateStruct(req); err != nil {
		s.writeError(w, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()})
		return
	}
	reg := s.registry.Register(req)
	s.writeJSON(w, http.StatusCreated, map[string]any{"agent": reg, "trust": s.trust.GetOrCreate(reg.AgentID)})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	if role := r.URL.Query().Get("role"); role != "" {
		s.writeJSON(w, http.StatusOK, map[string]any{"agents": s.registry.ListByRole(models.AgentRole(role))})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": s.registry.List()})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry.Get(r.PathValue("agentId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agent": reg, "trust": s.trust.GetOrCreate(reg.AgentID)})
}

func (s *Server) handleListTrust(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"records": s.trust.List()})
}

func (s *Server) handleGetTrust(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentId")
	rec, ok := s.trust.Get(agentID)
	if !ok {
		s.writeError(w, types.NewAgentError(types.ErrNotFound, agentID, "no trust record"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"record": rec, "tier": s.trust.TierInfo(agentID)})
}

// --- Calibration ---

func (s *Server) handleListCalibrationTasks(w http.ResponseWriter, r *http.Request) {
	supervisorID := r.URL.Query().Get("supervisorAgentId")
	if supervisorID == "" {
		s.writeError(w, types.NewAgentError(types.ErrValidation, "", "supervisorAgentId is required"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"calibrationTasks": s.calibrations.ListFor(supervisorID)})
}

func (s *Server) handleScoreCalibrationTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitCalibrationScoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.orch.ScoreCalibration(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"attempt": res.Attempt, "tier": res.Tier})
}

// --- Audit ---

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"events": s.broker.Log()})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}})
		return
	}
	if taskID := r.URL.Query().Get("taskId"); taskID != "" {
		entries, err := s.ledger.ListByTask(taskID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.ledger.List(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// --- Helpers ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, types.NewTaskError(types.ErrValidation, "", "invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, types.ErrIdentityMismatch), errors.Is(err, types.ErrCapabilityDenied):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrEscrow):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}
