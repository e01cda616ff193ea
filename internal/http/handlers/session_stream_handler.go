package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voltflow/internal/http/middleware"
	"voltflow/internal/service"
)

const streamWriteTimeout = 10 * time.Second

// SessionStreamHandler pushes real-time session progress over a
// websocket: one GetActive projection per interval until the session
// leaves Active or the client disconnects.
type SessionStreamHandler struct {
	svc      *service.SessionsService
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewSessionStreamHandler returns the handler.
func NewSessionStreamHandler(svc *service.SessionsService, interval time.Duration, logger *zap.Logger) *SessionStreamHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &SessionStreamHandler{
		svc:      svc,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles GET /api/sessions/active/stream.
func (h *SessionStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		session, err := h.svc.GetActiveSession(ctx, userID)
		if err != nil {
			h.logger.Warn("session stream lookup failed", zap.Int64("user_id", userID), zap.Error(err))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if session == nil {
			_ = conn.WriteJSON(map[string]interface{}{"active": false})
			return
		}
		if err := conn.WriteJSON(map[string]interface{}{"active": true, "session": session}); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
