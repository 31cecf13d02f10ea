package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/capitalduel/internal/api/handler"
	"github.com/mcoot/capitalduel/internal/api/middleware"
	"github.com/mcoot/capitalduel/internal/api/response"
	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/services/auth"
	"github.com/mcoot/capitalduel/internal/services/questions"
	"github.com/mcoot/capitalduel/internal/services/session"
	"github.com/mcoot/capitalduel/internal/transport/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	Clock            clock.Clock
	AuthService      *auth.Service
	QuestionsService *questions.Service
	Coordinator      *session.Coordinator
	WebSocket        ws.Config
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Coordinator)
	questionsHandler := handler.NewQuestionsHandler(cfg.QuestionsService)
	usersHandler := handler.NewUsersHandler(cfg.AuthService, cfg.Coordinator)
	roomsHandler := handler.NewRoomsHandler(cfg.Coordinator)
	wsHandler := ws.NewHandler(cfg.Coordinator, middleware.GetUsername, cfg.Clock, cfg.WebSocket, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Public routes
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/stats", roomsHandler.Stats).Methods(http.MethodGet)

	// Account routes
	account := api.PathPrefix("/auth").Subrouter()
	account.Use(authMiddleware)
	account.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)
	account.HandleFunc("/me", authHandler.GetMe).Methods(http.MethodGet)
	account.HandleFunc("/password", authHandler.SetPassword).Methods(http.MethodPut)

	// Everything else requires a session
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/questions", questionsHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/questions", questionsHandler.Replace).Methods(http.MethodPut)
	protected.HandleFunc("/questions/default", questionsHandler.UseDefaults).Methods(http.MethodPost)
	protected.HandleFunc("/users", usersHandler.Search).Methods(http.MethodGet)
	protected.HandleFunc("/rooms/{room}", roomsHandler.Get).Methods(http.MethodGet)
	protected.Handle("/ws", wsHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
