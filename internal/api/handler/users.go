package handler

import (
	"net/http"

	"github.com/mcoot/capitalduel/internal/api/response"
	"github.com/mcoot/capitalduel/internal/services/auth"
	"github.com/mcoot/capitalduel/internal/services/session"
)

// UsersHandler handles user search
type UsersHandler struct {
	authService *auth.Service
	coordinator *session.Coordinator
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(authService *auth.Service, coordinator *session.Coordinator) *UsersHandler {
	return &UsersHandler{
		authService: authService,
		coordinator: coordinator,
	}
}

// Search handles GET /api/v1/users?query=
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.SearchUsers(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.UserSearchResponse{Users: make([]response.UserSearchResult, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, response.UserSearchResult{
			Username: string(u.Username),
			Online:   h.coordinator.IsOnline(u.Username),
		})
	}

	response.JSON(w, http.StatusOK, resp)
}
