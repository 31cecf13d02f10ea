package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mcoot/capitalduel/internal/api/apierr"
	"github.com/mcoot/capitalduel/internal/dependencies/clock"
	"github.com/mcoot/capitalduel/internal/model"
	"github.com/mcoot/capitalduel/internal/services/presence"
)

// Coordinator receives connection lifecycle and client messages
type Coordinator interface {
	Connect(identity model.Username, conn presence.Conn)
	Disconnect(identity model.Username, conn presence.Conn)
	HandleMessage(ctx context.Context, identity model.Username, conn presence.Conn, msg model.ClientMessage) error
}

// IdentityFunc returns the authenticated user for a request
type IdentityFunc func(ctx context.Context) (model.Username, bool)

// Handler upgrades authenticated requests to websocket connections
type Handler struct {
	coordinator Coordinator
	identify    IdentityFunc
	upgrader    websocket.Upgrader
	clock       clock.Clock
	cfg         Config
	logger      *slog.Logger
}

// NewHandler creates a websocket handler
func NewHandler(coordinator Coordinator, identify IdentityFunc, clk clock.Clock, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Handler{
		coordinator: coordinator,
		identify:    identify,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.checkOrigin,
		},
		clock:  clk,
		cfg:    cfg,
		logger: logger,
	}
}

// ServeHTTP handles GET /ws. It blocks for the lifetime of the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, ok := h.identify(r.Context())
	if !ok {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", slog.String("username", string(username)), slog.Any("error", err))
		return
	}

	conn := newConnection(wsConn, username, h.clock, h.cfg, h.logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go conn.writePump()
	h.coordinator.Connect(username, conn)
	conn.logger.Info("websocket connected")

	conn.readPump(func(data []byte) {
		h.handle(ctx, conn, data)
	})

	h.coordinator.Disconnect(username, conn)
	conn.Close()
	conn.logger.Info("websocket disconnected")
}

func (h *Handler) handle(ctx context.Context, conn *Connection, data []byte) {
	var msg model.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(conn, apierr.NewInvalidRequestError("malformed message"))
		return
	}

	if err := h.coordinator.HandleMessage(ctx, conn.username, conn, msg); err != nil {
		conn.logger.Debug("client message rejected",
			slog.String("message_type", string(msg.Type)),
			slog.Any("error", err),
		)
		h.reply(conn, err)
	}
}

func (h *Handler) reply(conn *Connection, err error) {
	conn.Send(apierr.Event(err, h.clock.Now()))
}
