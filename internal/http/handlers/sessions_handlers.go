package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"voltflow/internal/http/middleware"
	"voltflow/internal/service"
)

// SessionsHandlers exposes the session lifecycle over HTTP.
type SessionsHandlers struct {
	svc    *service.SessionsService
	logger *zap.Logger
}

// NewSessionsHandlers returns the handler set.
func NewSessionsHandlers(svc *service.SessionsService, logger *zap.Logger) *SessionsHandlers {
	return &SessionsHandlers{svc: svc, logger: logger}
}

type startSessionRequest struct {
	StationID         string  `json:"station_id"`
	ConnectorID       int     `json:"connector_id"`
	ConnectorType     string  `json:"connector_type"`
	BatteryLevelStart float64 `json:"battery_level_start"`
}

// Start handles POST /api/sessions/start.
func (h *SessionsHandlers) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.svc.StartSession(r.Context(), userID, service.StartSessionInput{
		StationID:         req.StationID,
		ConnectorID:       req.ConnectorID,
		ConnectorType:     req.ConnectorType,
		BatteryLevelStart: req.BatteryLevelStart,
	})
	if err != nil {
		h.logError("start session failed", userID, err)
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, session)
}

type updateSessionRequest struct {
	BatteryLevel float64  `json:"battery_level"`
	EnergyKWh    *float64 `json:"energy_kwh"`
}

// Update handles PUT /api/sessions/update.
func (h *SessionsHandlers) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.svc.UpdateSession(r.Context(), userID, service.UpdateSessionInput{
		BatteryLevel: req.BatteryLevel,
		EnergyKWh:    req.EnergyKWh,
	})
	if err != nil {
		h.logError("update session failed", userID, err)
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

type endSessionRequest struct {
	SessionID       int64    `json:"session_id"`
	BatteryLevelEnd *float64 `json:"battery_level_end"`
	Rating          *int     `json:"rating"`
}

// End handles POST /api/sessions/end.
func (h *SessionsHandlers) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req endSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.svc.EndSession(r.Context(), userID, service.EndSessionInput{
		SessionID:       req.SessionID,
		BatteryLevelEnd: req.BatteryLevelEnd,
		Rating:          req.Rating,
	})
	if err != nil {
		h.logError("end session failed", userID, err)
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

type cancelSessionRequest struct {
	SessionID int64 `json:"session_id"`
}

// Cancel handles POST /api/sessions/cancel.
func (h *SessionsHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req cancelSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.svc.CancelSession(r.Context(), userID, req.SessionID)
	if err != nil {
		h.logError("cancel session failed", userID, err)
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

// Active handles GET /api/sessions/active. A missing active session is a
// 200 with null data, not an error.
func (h *SessionsHandlers) Active(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.svc.GetActiveSession(r.Context(), userID)
	if err != nil {
		h.logError("get active session failed", userID, err)
		writeServiceError(w, err)
		return
	}
	if session == nil {
		writeData(w, http.StatusOK, nil)
		return
	}
	writeData(w, http.StatusOK, session)
}

// History handles GET /api/sessions with optional status/limit/offset
// query parameters.
func (h *SessionsHandlers) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	sessions, err := h.svc.ListSessions(r.Context(), userID, q.Get("status"), limit, offset)
	if err != nil {
		h.logError("list sessions failed", userID, err)
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, sessions)
}

func (h *SessionsHandlers) logError(msg string, userID int64, err error) {
	if service.IsDependency(err) {
		h.logger.Error(msg, zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	h.logger.Debug(msg, zap.Int64("user_id", userID), zap.Error(err))
}
