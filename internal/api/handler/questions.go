package handler

import (
	"net/http"

	"github.com/mcoot/capitalduel/internal/api/middleware"
	"github.com/mcoot/capitalduel/internal/api/request"
	"github.com/mcoot/capitalduel/internal/api/response"
	"github.com/mcoot/capitalduel/internal/services/questions"
)

// QuestionsHandler handles question bank endpoints
type QuestionsHandler struct {
	questions *questions.Service
}

// NewQuestionsHandler creates a new questions handler
func NewQuestionsHandler(questions *questions.Service) *QuestionsHandler {
	return &QuestionsHandler{questions: questions}
}

// Get handles GET /api/v1/questions
func (h *QuestionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	qs, err := h.questions.Fetch(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.QuestionsFromModel(qs))
}

// Replace handles PUT /api/v1/questions
func (h *QuestionsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req request.ReplaceQuestionsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	username := middleware.MustGetUsername(r.Context())
	qs, err := h.questions.Replace(r.Context(), username, req.Questions)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.QuestionsFromModel(qs))
}

// UseDefaults handles POST /api/v1/questions/default
func (h *QuestionsHandler) UseDefaults(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	qs, err := h.questions.UseDefaults(r.Context(), username)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.QuestionsFromModel(qs))
}
