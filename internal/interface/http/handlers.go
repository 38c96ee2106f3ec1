package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tutorlink/tutorlink-gamification/internal/application/command"
	"github.com/tutorlink/tutorlink-gamification/internal/application/query"
	"github.com/tutorlink/tutorlink-gamification/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":    "TutorLink Gamification API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":       "/health",
			"leaderboard":  "/api/v1/leaderboard",
			"gamification": "/api/v1/students/{id}/gamification",
			"login_event":  "/api/v1/students/{id}/login-event",
			"xp_awards":    "/api/v1/students/{id}/xp-awards",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecordLogin handles POST /api/v1/students/{id}/login-event.
// Idempotent per UTC day: repeat logins return 200 with counted=false.
func (s *Server) handleRecordLogin(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.RecordLoginHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Login handler not configured")
		return
	}

	var req LoginEventRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Invalid request body", validationDetails(err))
		return
	}

	cmd := command.RecordLoginCommand{StudentID: studentID}
	if req.At != nil {
		cmd.At = *req.At
	}

	result, err := s.deps.RecordLoginHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record login", studentID)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}

	writeJSON(w, status, NewLoginEventResponse(result))
}

// handleAwardXP handles POST /api/v1/students/{id}/xp-awards.
func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.AwardXPHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Award handler not configured")
		return
	}

	var req AwardXPRequest
	if err := decodeJSON(r, &req, false); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Invalid award request", validationDetails(err))
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	result, err := s.deps.AwardXPHandler.Handle(r.Context(), command.AwardXPCommand{
		StudentID: studentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to award xp", studentID)
		return
	}

	writeJSON(w, http.StatusOK, NewAwardXPResponse(result))
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetGamification handles GET /api/v1/students/{id}/gamification.
// The optional history query parameter includes that many recent awards.
func (s *Server) handleGetGamification(w http.ResponseWriter, r *http.Request) {
	studentID := r.PathValue("id")
	if studentID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Student ID is required")
		return
	}

	if s.deps.GetGamificationHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Gamification handler not configured")
		return
	}

	q := query.GetGamificationQuery{
		StudentID:    studentID,
		HistoryLimit: getQueryParamInt(r, "history", 0),
	}

	view, err := s.deps.GetGamificationHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get gamification state", studentID)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleGetLeaderboard handles GET /api/v1/leaderboard.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Limit: getQueryParamInt(r, "limit", 0),
	}

	view, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get leaderboard", "")
		return
	}

	meta := &ResponseMeta{
		TotalCount: view.Total,
		FromCache:  view.FromCache,
	}

	writeJSONWithMeta(w, r, http.StatusOK, LeaderboardResponse{
		Entries: view.Entries,
		Total:   view.Total,
	}, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED ERROR HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError logs the failure and writes the mapped HTTP error.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg, studentID string) {
	status, code, message := mapDomainError(err)

	fields := []logger.Field{
		logger.Err(err),
		logger.Int("status", status),
		logger.String("request_id", getRequestID(r.Context())),
	}
	if studentID != "" {
		fields = append(fields, logger.StudentID(studentID))
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(logMsg, fields...)
	} else {
		s.logger.Warn(logMsg, fields...)
	}

	writeJSONError(w, status, code, message)
}
