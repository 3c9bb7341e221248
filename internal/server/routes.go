package server

import "net/http"

// routes sets up all API endpoints
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Task lifecycle
	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/tasks/{id}/claim", s.handleClaimTask)
	mux.HandleFunc("POST /api/tasks/{id}/fulfill", s.handleFulfillTask)
	mux.HandleFunc("POST /api/tasks/{id}/score", s.handleScoreTask)
	mux.HandleFunc("POST /api/tasks/{id}/verify", s.handleVerifyTask)

	// Legacy single-resolver flow
	mux.HandleFunc("POST /api/tasks/{id}/answer", s.handleAnswerTask)
	mux.HandleFunc("POST /api/tasks/{id}/confirm", s.handleConfirmTask)
	mux.HandleFunc("POST /api/tasks/{id}/reject", s.handleRejectTask)

	// Agents & trust
	mux.HandleFunc("POST /api/agents/register", s.handleRegisterAgent)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/agents/{agentId}", s.handleGetAgent)
	mux.HandleFunc("GET /api/trust", s.handleListTrust)
	mux.HandleFunc("GET /api/trust/{agentId}", s.handleGetTrust)

	// Calibration track
	mux.HandleFunc("GET /api/calibration-tasks", s.handleListCalibrationTasks)
	mux.HandleFunc("POST /api/calibration-tasks/{id}/score", s.handleScoreCalibrationTask)

	// Audit
	mux.HandleFunc("GET /api/audit", s.handleAuditLog)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)

	return s.loggingMiddleware(mux)
}
