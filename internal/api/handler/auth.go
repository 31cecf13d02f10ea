package handler

import (
	"net/http"

	"github.com/mcoot/capitalduel/internal/api/middleware"
	"github.com/mcoot/capitalduel/internal/api/request"
	"github.com/mcoot/capitalduel/internal/api/response"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/auth"
	"github.com/mcoot/capitalduel/internal/services/session"
)

// AuthHandler handles login and account endpoints
type AuthHandler struct {
	authService *auth.Service
	coordinator *session.Coordinator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, coordinator *session.Coordinator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		coordinator: coordinator,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), model.Username(req.Username), req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := middleware.GetSession(r.Context()); session != nil {
		h.authService.InvalidateSession(session.Token)
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/auth/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	user, err := h.authService.GetUser(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(user, h.coordinator.IsOnline(username)))
}

// SetPassword handles PUT /api/v1/auth/password
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req request.SetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	username := middleware.MustGetUsername(r.Context())
	if err := h.authService.SetPassword(r.Context(), username, req.Password); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}
