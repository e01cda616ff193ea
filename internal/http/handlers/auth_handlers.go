package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"voltflow/internal/auth"
)

// AuthHandlers exposes signup and login.
type AuthHandlers struct {
	svc    *auth.Service
	logger *zap.Logger
}

// NewAuthHandlers returns the handler set.
func NewAuthHandlers(svc *auth.Service, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{svc: svc, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailInUse) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Warn("signup failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}
