package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/capitalduel/internal/api/middleware"
	"github.com/mcoot/capitalduel/internal/api/response"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/session"
)

// RoomsHandler serves room state and activity stats
type RoomsHandler struct {
	coordinator *session.Coordinator
}

// NewRoomsHandler creates a new rooms handler
func NewRoomsHandler(coordinator *session.Coordinator) *RoomsHandler {
	return &RoomsHandler{coordinator: coordinator}
}

// Get handles GET /api/v1/rooms/{room}
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())
	id := model.RoomID(mux.Vars(r)["room"])

	snapshot, err := h.coordinator.RoomState(r.Context(), username, id)
	if err != nil {
		WriteError(w, err)
		return
	}

	prompt := h.coordinator.PromptView(snapshot.Prompt)
	response.JSON(w, http.StatusOK, response.RoomStateFromSnapshot(snapshot, prompt))
}

// Stats handles GET /api/v1/stats
func (h *RoomsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.StatsFromSession(h.coordinator.Stats()))
}
